package backend

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	probeTimeout = 10 * time.Second
	probeTTL     = 5 * time.Minute
)

// ServiceStatus represents the reachability of one upstream.
type ServiceStatus struct {
	Status    string    `json:"status"` // "up", "down", "unconfigured"
	CheckedAt time.Time `json:"checkedAt"`
}

// StatusProbe HEADs the configured upstreams and caches the result so
// /status can be polled without hammering them.
type StatusProbe struct {
	client    *http.Client
	endpoints map[string]string
	ttl       time.Duration

	mu      sync.RWMutex
	entries map[string]ServiceStatus
}

// NewStatusProbe probes the YouTube downloader, TikTok API, Facebook
// scraper and recognition API from cfg.
func NewStatusProbe(cfg *Config, client *http.Client) (*StatusProbe, error) {
	if client == nil {
		var err error
		client, err = NewHTTPClient(probeTimeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
	}
	return &StatusProbe{
		client: client,
		endpoints: map[string]string{
			"youtube":     cfg.YouTubeAPIURL,
			"tiktok":      cfg.TikTokAPIURL,
			"facebook":    cfg.FacebookScraper,
			"recognition": cfg.RecognitionURL,
		},
		ttl:     probeTTL,
		entries: make(map[string]ServiceStatus),
	}, nil
}

// Check returns the status of every upstream, probing in parallel the
// ones whose cached result has expired. result is shared with the probe
// goroutines, so every write to it holds mu.
func (p *StatusProbe) Check(ctx context.Context) map[string]ServiceStatus {
	result := make(map[string]ServiceStatus, len(p.endpoints))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, endpoint := range p.endpoints {
		if endpoint == "" {
			mu.Lock()
			result[name] = ServiceStatus{Status: "unconfigured", CheckedAt: time.Now()}
			mu.Unlock()
			continue
		}

		p.mu.RLock()
		cached, ok := p.entries[name]
		p.mu.RUnlock()
		if ok && time.Since(cached.CheckedAt) < p.ttl {
			mu.Lock()
			result[name] = cached
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(name, endpoint string) {
			defer wg.Done()

			status := p.probe(ctx, endpoint)

			p.mu.Lock()
			p.entries[name] = status
			p.mu.Unlock()

			mu.Lock()
			result[name] = status
			mu.Unlock()
		}(name, endpoint)
	}

	wg.Wait()
	return result
}

// probe treats any answer below 500 as up; scrapers and APIs often reject
// a bare HEAD with 4xx while still being reachable.
func (p *StatusProbe) probe(ctx context.Context, endpoint string) ServiceStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return ServiceStatus{Status: "down", CheckedAt: time.Now()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		Logger.Debug("upstream probe failed", "endpoint", endpoint, "error", err)
		return ServiceStatus{Status: "down", CheckedAt: time.Now()}
	}
	defer resp.Body.Close()

	status := "up"
	if resp.StatusCode >= 500 {
		status = "down"
	}
	return ServiceStatus{Status: status, CheckedAt: time.Now()}
}
