package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ============================================================================
// Media Resolver
// ============================================================================

// MediaDescriptor is the normalized result of resolving a source URL.
// Missing fields are nil and serialize as JSON null.
type MediaDescriptor struct {
	Audio *string         `json:"audio"`
	Video *string         `json:"video"`
	Title *string         `json:"title"`
	Raw   json.RawMessage `json:"raw"`
}

// HasMedia reports whether at least one downloadable URL was found.
func (d *MediaDescriptor) HasMedia() bool {
	return d != nil && (d.Audio != nil || d.Video != nil)
}

// Resolver maps source URLs to MediaDescriptors by calling the upstream
// that serves each platform.
type Resolver struct {
	client            *http.Client
	youtubeAPI        string
	tiktokAPI         string
	facebookScraper   string
	facebookFormField string
	metrics           *Metrics

	// ytdlp produces a YouTube document when no downloader API is set.
	ytdlp func(ctx context.Context, videoURL string) ([]byte, error)
}

// NewResolver builds a Resolver from cfg. client is used for every
// upstream call; if nil, one is built from cfg.
func NewResolver(cfg *Config, client *http.Client, metrics *Metrics) (*Resolver, error) {
	if client == nil {
		c, err := NewHTTPClient(cfg.UpstreamTimeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return &Resolver{
		client:            client,
		youtubeAPI:        cfg.YouTubeAPIURL,
		tiktokAPI:         cfg.TikTokAPIURL,
		facebookScraper:   cfg.FacebookScraper,
		facebookFormField: cfg.FacebookFormField,
		metrics:           metrics,
		ytdlp:             ytdlpDocument,
	}, nil
}

// Resolve classifies rawURL and returns its normalized descriptor.
// Unsupported URLs fail with KindUnsupportedPlatform before any network
// call is made.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*MediaDescriptor, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, newError(KindBadRequest, "Missing 'url' query parameter.", nil)
	}

	platform := ClassifyURL(rawURL)
	if platform == PlatformUnsupported {
		err := newError(KindUnsupportedPlatform, "Unsupported platform. Supported: YouTube, TikTok, Facebook.", nil)
		r.metrics.observeResolve(platform, err)
		return nil, err
	}
	if err := ValidateMediaURL(rawURL); err != nil {
		r.metrics.observeResolve(platform, err)
		return nil, err
	}

	start := time.Now()
	var (
		desc *MediaDescriptor
		err  error
	)
	switch platform {
	case PlatformYouTube:
		desc, err = r.resolveYouTube(ctx, rawURL)
	case PlatformTikTok:
		desc, err = r.resolveTikTok(ctx, rawURL)
	case PlatformFacebook:
		desc, err = r.resolveFacebook(ctx, rawURL)
	}
	r.metrics.observeResolve(platform, err)

	if err != nil {
		Logger.Warn("resolve failed", "platform", platform, "url", rawURL, "error", err)
		return nil, err
	}
	Logger.Debug("resolved media", "platform", platform, "audio", desc.Audio != nil, "video", desc.Video != nil, "took", time.Since(start))
	return desc, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
