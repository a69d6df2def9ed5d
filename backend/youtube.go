package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
	"github.com/wader/goutubedl"
)

// YouTube resolution.
//
// The downloader API answers in several shapes depending on the backend
// it proxies to, so every field is looked up along a fallback chain.

var (
	youtubeAudioPaths = []string{"data.audio", "data.audios.0"}
	youtubeVideoPaths = []string{"data.video", "data.videos.0", "data.result.video"}
	youtubeTitlePaths = []string{"data.title", "data.result.title", "data.meta.title", "title"}
)

func (r *Resolver) resolveYouTube(ctx context.Context, videoURL string) (*MediaDescriptor, error) {
	doc, err := r.youTubeDocument(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	return extractYouTube(doc)
}

// youTubeDocument returns the raw downloader reply for videoURL. Without a
// configured downloader API the document is synthesized from yt-dlp.
func (r *Resolver) youTubeDocument(ctx context.Context, videoURL string) ([]byte, error) {
	if r.youtubeAPI == "" {
		return r.ytdlp(ctx, videoURL)
	}

	apiURL := fmt.Sprintf("%s?url=%s", r.youtubeAPI, url.QueryEscape(videoURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, newError(KindInternal, "failed to create youtube request", err)
	}
	req.Header.Set("Accept", "application/json")

	return doUpstream(r.client, req, "youtube downloader")
}

// extractYouTube normalizes a downloader document. Missing fields are nil,
// never an error; only a body that is not JSON at all is rejected.
func extractYouTube(doc []byte) (*MediaDescriptor, error) {
	if !gjson.ValidBytes(doc) {
		return nil, upstreamError("youtube downloader returned malformed JSON", doc, nil)
	}
	return &MediaDescriptor{
		Audio: firstString(doc, youtubeAudioPaths...),
		Video: firstString(doc, youtubeVideoPaths...),
		Title: firstString(doc, youtubeTitlePaths...),
		Raw:   json.RawMessage(doc),
	}, nil
}

// firstString returns the first non-empty string found along paths. An
// object hit is accepted if it carries a "url" member.
func firstString(doc []byte, paths ...string) *string {
	for _, p := range paths {
		res := gjson.GetBytes(doc, p)
		if res.IsObject() {
			res = res.Get("url")
		}
		if res.Type == gjson.String && res.String() != "" {
			s := res.String()
			return &s
		}
	}
	return nil
}

// ytdlpDocument asks yt-dlp for the video's metadata and renders it in
// the downloader document shape.
func ytdlpDocument(ctx context.Context, videoURL string) ([]byte, error) {
	result, err := goutubedl.New(ctx, videoURL, goutubedl.Options{
		Type: goutubedl.TypeSingle,
	})
	if err != nil {
		return nil, upstreamError("yt-dlp failed to fetch metadata", nil, err)
	}
	return ytdlpDocumentFromInfo(result.RawJSON)
}

// ytdlpDocumentFromInfo picks formats from yt-dlp's info JSON: the last
// audio-only format (yt-dlp lists worst to best) becomes "audio", the last
// muxed format becomes "video". Formats without a url are skipped.
func ytdlpDocumentFromInfo(info []byte) ([]byte, error) {
	if !gjson.ValidBytes(info) {
		return nil, upstreamError("yt-dlp returned malformed JSON", info, nil)
	}

	var audioURL, muxedURL string
	for _, f := range gjson.GetBytes(info, "formats").Array() {
		u := f.Get("url").String()
		if u == "" {
			continue
		}
		acodec, vcodec := f.Get("acodec").String(), f.Get("vcodec").String()
		hasAudio := acodec != "" && acodec != "none"
		hasVideo := vcodec != "" && vcodec != "none"
		switch {
		case hasAudio && !hasVideo:
			audioURL = u
		case hasAudio && hasVideo:
			muxedURL = u
		}
	}

	data := map[string]any{}
	if title := gjson.GetBytes(info, "title").String(); title != "" {
		data["title"] = title
	}
	if audioURL != "" {
		data["audio"] = audioURL
	}
	if muxedURL != "" {
		data["video"] = muxedURL
	}

	doc, err := json.Marshal(map[string]any{"source": "yt-dlp", "data": data})
	if err != nil {
		return nil, newError(KindInternal, "failed to encode yt-dlp document", err)
	}
	return doc, nil
}
