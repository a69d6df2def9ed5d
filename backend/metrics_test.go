package backend

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/media", "200")
	m.observeResolve(PlatformTikTok, nil)
	m.observeDetect(errors.New("x"))
	m.observeAcquired(10)
}

func TestMetrics_ResolveOutcomes(t *testing.T) {
	m := NewMetrics()
	m.observeResolve(PlatformTikTok, nil)
	m.observeResolve(PlatformTikTok, upstreamError("code -1", nil, nil))
	m.observeResolve(PlatformTikTok, upstreamError("code -1", nil, nil))

	if got := testutil.ToFloat64(m.resolutions.WithLabelValues("tiktok", "success")); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.resolutions.WithLabelValues("tiktok", "UpstreamError")); got != 2 {
		t.Errorf("expected 2 upstream errors, got %v", got)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP("POST", "/song-detect", "413")

	expected := `
# HELP songdetect_http_requests_total HTTP requests by route and status code.
# TYPE songdetect_http_requests_total counter
songdetect_http_requests_total{method="POST",route="/song-detect",status="413"} 1
`
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "songdetect_http_requests_total"); err != nil {
		t.Error(err)
	}
}
