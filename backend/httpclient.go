package backend

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	userAgent = "rebel-song-detect/1.0"

	// maxUpstreamBody bounds how much of a JSON/HTML upstream reply is read.
	maxUpstreamBody = 4 << 20
)

// NewHTTPClient returns an *http.Client configured with the given timeout
// and optionally routed through a proxy.
//
// proxyURL examples:
//   - "" (empty): no proxy
//   - "http://host:8080"
//   - "socks5://host:1080"
func NewHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
		}

		switch parsed.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		case "socks5":
			dialer, err := proxy.FromURL(parsed, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.Proxy = nil
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q (use http, https, or socks5)", parsed.Scheme)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// doUpstream sends req and returns the body of a 2xx reply. Non-2xx
// replies become an UpstreamError carrying the body.
func doUpstream(client *http.Client, req *http.Request, service string) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		Logger.Warn("upstream request failed", "service", service, "error", err)
		return nil, upstreamError(service+" request failed", nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, upstreamError("failed to read "+service+" response", nil, err)
	}

	Logger.Debug("upstream response", "service", service, "status", resp.StatusCode, "latency", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		Logger.Warn("upstream returned error status", "service", service, "status", resp.StatusCode)
		return nil, upstreamError(fmt.Sprintf("%s returned status %d", service, resp.StatusCode), body, nil)
	}
	return body, nil
}
