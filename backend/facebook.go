package backend

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Facebook resolution scrapes an HTML download page. It never yields
// audio, and a page without any .mp4 link is still a successful (empty)
// descriptor.

var facebookMP4Regex = regexp.MustCompile(`href="([^"]*\.mp4[^"]*)"`)

func (r *Resolver) resolveFacebook(ctx context.Context, videoURL string) (*MediaDescriptor, error) {
	form := url.Values{}
	form.Set(r.facebookFormField, videoURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.facebookScraper, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(KindInternal, "failed to create facebook request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")

	page, err := doUpstream(r.client, req, "facebook scraper")
	if err != nil {
		return nil, err
	}
	return extractFacebook(page), nil
}

func extractFacebook(page []byte) *MediaDescriptor {
	desc := &MediaDescriptor{}

	if m := facebookMP4Regex.FindSubmatch(page); len(m) > 1 {
		desc.Video = strPtr(html.UnescapeString(string(m[1])))
	}

	raw, err := json.Marshal(string(page))
	if err == nil {
		desc.Raw = raw
	}
	return desc
}
