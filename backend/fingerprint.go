package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// ============================================================================
// Fingerprint Client
// ============================================================================

// FingerprintClient submits base64-encoded audio to the remote
// recognition API. The reply is passed through untouched.
type FingerprintClient struct {
	endpoint  string
	apiKey    string
	keyHeader string
	field     string
	client    *http.Client
	metrics   *Metrics
}

// NewFingerprintClient builds a client from the startup configuration.
// A missing key is not an error here: Detect reports it as Unconfigured so
// the rest of the server keeps working.
func NewFingerprintClient(cfg *Config, client *http.Client, metrics *Metrics) (*FingerprintClient, error) {
	if client == nil {
		c, err := NewHTTPClient(cfg.RecognitionTimeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return &FingerprintClient{
		endpoint:  cfg.RecognitionURL,
		apiKey:    cfg.RecognitionKey,
		keyHeader: cfg.RecognitionKeyHeader,
		field:     cfg.RecognitionField,
		client:    client,
		metrics:   metrics,
	}, nil
}

// Configured reports whether both the endpoint and the API key are set.
func (f *FingerprintClient) Configured() bool {
	return f.apiKey != "" && f.endpoint != ""
}

func (f *FingerprintClient) unconfigured() error {
	if f.apiKey == "" {
		return newError(KindUnconfigured, "Recognition API key is not configured.", nil)
	}
	return newError(KindUnconfigured, "Recognition API url is not configured.", nil)
}

// Detect reads filePath, submits it and returns the raw match payload.
// Nothing is sent when the client is unconfigured.
func (f *FingerprintClient) Detect(ctx context.Context, filePath string) (json.RawMessage, error) {
	if !f.Configured() {
		err := f.unconfigured()
		f.metrics.observeDetect(err)
		return nil, err
	}

	payload, err := f.detect(ctx, filePath)
	f.metrics.observeDetect(err)
	return payload, err
}

func (f *FingerprintClient) detect(ctx context.Context, filePath string) (json.RawMessage, error) {
	audio, err := os.ReadFile(filePath)
	if err != nil {
		return nil, newError(KindInternal, "failed to read audio file", err)
	}

	body, err := json.Marshal(map[string]string{
		f.field: base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		return nil, newError(KindInternal, "failed to encode recognition request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindInternal, "failed to create recognition request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(f.keyHeader, f.apiKey)

	start := time.Now()
	reply, err := doUpstream(f.client, req, "recognition api")
	if err != nil {
		if KindOf(err) == KindTimeout {
			return nil, &Error{Kind: KindTimeout, Message: "Recognition API timed out.", Err: err}
		}
		return nil, err
	}
	Logger.Info("recognition finished", "bytes", len(audio), "took", time.Since(start))

	if gjson.ValidBytes(reply) {
		return json.RawMessage(reply), nil
	}
	quoted, err := json.Marshal(string(reply))
	if err != nil {
		return nil, newError(KindInternal, "failed to encode recognition reply", err)
	}
	return quoted, nil
}
