package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

// ============================================================================
// Audio Acquirer
// ============================================================================

// DetectionRequest carries exactly one input: an uploaded file already in
// the scratch directory, or a remote URL to resolve and download.
type DetectionRequest struct {
	Upload *TempFile
	URL    string
}

// UploadedFile wraps an upload owned by the caller.
func UploadedFile(t *TempFile) DetectionRequest {
	return DetectionRequest{Upload: t}
}

// RemoteURL wraps a source URL.
func RemoteURL(u string) DetectionRequest {
	return DetectionRequest{URL: strings.TrimSpace(u)}
}

// downloadTargetPaths is the selection order over the combined document:
// audio before video, then bare urls.
var downloadTargetPaths = []string{
	"result.audio", "data.audio",
	"result.video", "data.video",
	"data.url", "result.url",
}

// Acquirer turns a DetectionRequest into a local audio file within the
// size ceiling.
type Acquirer struct {
	resolver *Resolver
	scratch  *ScratchDir
	client   *http.Client
	maxBytes int64
	metrics  *Metrics
}

// NewAcquirer builds an Acquirer. client is used for media downloads; if
// nil, one is built from cfg.DownloadTimeout.
func NewAcquirer(cfg *Config, resolver *Resolver, scratch *ScratchDir, client *http.Client, metrics *Metrics) (*Acquirer, error) {
	if client == nil {
		c, err := NewHTTPClient(cfg.DownloadTimeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return &Acquirer{
		resolver: resolver,
		scratch:  scratch,
		client:   client,
		maxBytes: cfg.MaxAudioBytes,
		metrics:  metrics,
	}, nil
}

// MaxBytes returns the size ceiling.
func (a *Acquirer) MaxBytes() int64 {
	return a.maxBytes
}

// Acquire returns a guard for the local audio file.
//
// For an upload the caller's own guard is returned and it is never
// released here, even when the file is rejected as too large; the upload
// belongs to whoever saved it. Files downloaded here are released on
// every failure path, and on success ownership moves to the caller.
func (a *Acquirer) Acquire(ctx context.Context, req DetectionRequest) (*TempFile, error) {
	switch {
	case req.Upload != nil:
		if err := a.checkSize(req.Upload.Path()); err != nil {
			return nil, err
		}
		return req.Upload, nil
	case req.URL != "":
		return a.acquireRemote(ctx, req.URL)
	default:
		return nil, newError(KindBadRequest, "Upload a file or provide url in 'url' field.", nil)
	}
}

func (a *Acquirer) acquireRemote(ctx context.Context, sourceURL string) (*TempFile, error) {
	doc, err := a.descriptorDocument(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	target := firstString(doc, downloadTargetPaths...)
	if target == nil {
		return nil, &Error{Kind: KindNotFound, Message: "No downloadable media found for url.", Upstream: doc}
	}

	tmp, err := a.download(ctx, *target)
	if err != nil {
		return nil, err
	}
	if err := a.checkSize(tmp.Path()); err != nil {
		tmp.Release()
		return nil, err
	}
	return tmp, nil
}

// descriptorDocument builds the JSON document download targets are picked
// from. YouTube goes to the downloader directly so its native "data"
// shape is available next to the normalized "result"; every other
// platform goes through Resolve.
func (a *Acquirer) descriptorDocument(ctx context.Context, sourceURL string) ([]byte, error) {
	doc := map[string]any{}

	if IsYouTubeURL(sourceURL) {
		raw, desc, err := a.youTubeDescriptor(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
		doc["result"] = desc
		if data := gjson.GetBytes(raw, "data"); data.Exists() {
			doc["data"] = json.RawMessage(data.Raw)
		}
	} else {
		desc, err := a.resolver.Resolve(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
		doc["result"] = desc
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, newError(KindInternal, "failed to encode descriptor", err)
	}
	return out, nil
}

// youTubeDescriptor returns the downloader document and its descriptor,
// recorded in the resolve metrics like any other resolution.
func (a *Acquirer) youTubeDescriptor(ctx context.Context, sourceURL string) ([]byte, *MediaDescriptor, error) {
	raw, desc, err := a.fetchYouTube(ctx, sourceURL)
	a.resolver.metrics.observeResolve(PlatformYouTube, err)
	if err != nil {
		Logger.Warn("resolve failed", "platform", PlatformYouTube, "url", sourceURL, "error", err)
		return nil, nil, err
	}
	return raw, desc, nil
}

func (a *Acquirer) fetchYouTube(ctx context.Context, sourceURL string) ([]byte, *MediaDescriptor, error) {
	if err := ValidateMediaURL(sourceURL); err != nil {
		return nil, nil, err
	}
	raw, err := a.resolver.youTubeDocument(ctx, sourceURL)
	if err != nil {
		return nil, nil, err
	}
	desc, err := extractYouTube(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, desc, nil
}

// download streams mediaURL into a new scratch file. At most maxBytes+1
// bytes are written so oversized media is detected without filling the disk.
func (a *Acquirer) download(ctx context.Context, mediaURL string) (*TempFile, error) {
	if err := ValidateMediaURL(mediaURL); err != nil {
		return nil, upstreamError("resolved media url is invalid", []byte(mediaURL), err)
	}
	parsed, _ := url.Parse(mediaURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, newError(KindInternal, "failed to create download request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, upstreamError("media download failed", nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, upstreamError(fmt.Sprintf("media download returned status %d", resp.StatusCode), body, nil)
	}
	if resp.ContentLength > a.maxBytes {
		return nil, a.tooLarge()
	}

	tmp, f, err := a.scratch.Create(path.Ext(parsed.Path))
	if err != nil {
		return nil, newError(KindInternal, "failed to create temp file", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(resp.Body, a.maxBytes+1))
	closeErr := f.Close()
	if copyErr != nil {
		tmp.Release()
		return nil, upstreamError("media download interrupted", nil, copyErr)
	}
	if closeErr != nil {
		tmp.Release()
		return nil, newError(KindInternal, "failed to write temp file", closeErr)
	}

	Logger.Debug("media downloaded", "path", tmp.Path(), "bytes", n)
	return tmp, nil
}

func (a *Acquirer) checkSize(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return newError(KindInternal, "failed to stat audio file", err)
	}
	if info.Size() > a.maxBytes {
		return a.tooLarge()
	}
	a.metrics.observeAcquired(info.Size())
	return nil
}

func (a *Acquirer) tooLarge() error {
	return newError(KindPayloadTooLarge, fmt.Sprintf("File too large. Max %d MB.", a.maxBytes>>20), nil)
}
