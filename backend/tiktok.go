package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/buger/jsonparser"
)

// TikTok resolution through a tikwm-compatible API: {code, msg, data:{music, play, title}}.
// A non-zero code is a hard failure.

func (r *Resolver) resolveTikTok(ctx context.Context, videoURL string) (*MediaDescriptor, error) {
	apiURL := fmt.Sprintf("%s?url=%s&hd=1", r.tiktokAPI, url.QueryEscape(videoURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, newError(KindInternal, "failed to create tiktok request", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := doUpstream(r.client, req, "tiktok")
	if err != nil {
		return nil, err
	}
	return extractTikTok(body)
}

func extractTikTok(body []byte) (*MediaDescriptor, error) {
	code, err := jsonparser.GetInt(body, "code")
	if err != nil {
		return nil, upstreamError("tiktok returned a malformed response", body, err)
	}
	if code != 0 {
		msg, _ := jsonparser.GetString(body, "msg")
		return nil, upstreamError(fmt.Sprintf("tiktok returned code %d: %s", code, msg), body, nil)
	}

	field := func(key string) *string {
		v, err := jsonparser.GetString(body, "data", key)
		if err != nil {
			return nil
		}
		return strPtr(v)
	}

	return &MediaDescriptor{
		Audio: field("music"),
		Video: field("play"),
		Title: field("title"),
		Raw:   json.RawMessage(body),
	}, nil
}
