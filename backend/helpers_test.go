package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// roundTripFunc lets a test intercept outbound requests.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// noNetworkClient fails the test on any outbound request.
func noNetworkClient(t *testing.T) *http.Client {
	t.Helper()
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Errorf("unexpected network call to %s", r.URL)
		return nil, errors.New("network disabled in test")
	})}
}

// upstream is an httptest server that counts hits.
type upstream struct {
	*httptest.Server
	hits atomic.Int32
}

func newUpstream(t *testing.T, h http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := GetDefaultConfig()
	cfg.UploadDir = t.TempDir()
	cfg.UpstreamTimeout = 5 * time.Second
	cfg.DownloadTimeout = 5 * time.Second
	cfg.RecognitionTimeout = 5 * time.Second
	cfg.RecognitionKey = "test-key"
	cfg.YouTubeAPIURL = "http://youtube.invalid"
	cfg.TikTokAPIURL = "http://tiktok.invalid"
	cfg.FacebookScraper = "http://facebook.invalid"
	return cfg
}

func testResolver(t *testing.T, cfg *Config, client *http.Client) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg, client, NewMetrics())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	r.ytdlp = func(ctx context.Context, videoURL string) ([]byte, error) {
		t.Errorf("unexpected yt-dlp call for %s", videoURL)
		return nil, errors.New("yt-dlp disabled in test")
	}
	return r
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, got, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
