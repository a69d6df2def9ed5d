package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempAudio(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return p
}

func TestFingerprint_Unconfigured(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		key      string
	}{
		{"missing key", "http://recognize.invalid", ""},
		{"missing endpoint", "", "k"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.RecognitionURL = tc.endpoint
			cfg.RecognitionKey = tc.key

			fc, err := NewFingerprintClient(cfg, noNetworkClient(t), nil)
			if err != nil {
				t.Fatalf("NewFingerprintClient failed: %v", err)
			}
			if fc.Configured() {
				t.Fatal("expected client to be unconfigured")
			}
			_, err = fc.Detect(context.Background(), writeTempAudio(t, []byte("a")))
			assertKind(t, err, KindUnconfigured)
		})
	}
}

func TestFingerprint_SendsBase64AndKey(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33, 0x00, 0xff, 0x10}
	reply := `{"status":"success","result":{"artist":"Rick Astley","title":"Never Gonna Give You Up"}}`

	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(body["audio"])
		if err != nil {
			t.Fatalf("audio is not base64: %v", err)
		}
		if string(decoded) != string(audio) {
			t.Errorf("audio payload mismatch")
		}
		io.WriteString(w, reply)
	})

	cfg := testConfig(t)
	cfg.RecognitionURL = up.URL
	fc, _ := NewFingerprintClient(cfg, nil, NewMetrics())

	got, err := fc.Detect(context.Background(), writeTempAudio(t, audio))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if string(got) != reply {
		t.Errorf("payload must be passed through verbatim, got %s", got)
	}
}

func TestFingerprint_CustomHeaderAndField(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "test-key" {
			t.Errorf("custom header not used")
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["data"]; !ok {
			t.Errorf("custom field not used: %v", body)
		}
		io.WriteString(w, `{}`)
	})

	cfg := testConfig(t)
	cfg.RecognitionURL = up.URL
	cfg.RecognitionKeyHeader = "X-RapidAPI-Key"
	cfg.RecognitionField = "data"
	fc, _ := NewFingerprintClient(cfg, nil, nil)

	if _, err := fc.Detect(context.Background(), writeTempAudio(t, []byte("x"))); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
}

func TestFingerprint_NonJSONReplyIsQuoted(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "no match")
	})
	cfg := testConfig(t)
	cfg.RecognitionURL = up.URL
	fc, _ := NewFingerprintClient(cfg, nil, nil)

	got, err := fc.Detect(context.Background(), writeTempAudio(t, []byte("x")))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if string(got) != `"no match"` {
		t.Errorf("expected quoted string, got %s", got)
	}
}

func TestFingerprint_UpstreamError(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid key"}`)
	})
	cfg := testConfig(t)
	cfg.RecognitionURL = up.URL
	fc, _ := NewFingerprintClient(cfg, nil, nil)

	_, err := fc.Detect(context.Background(), writeTempAudio(t, []byte("x")))
	assertKind(t, err, KindUpstream)
	if string(UpstreamBody(err)) != `{"error":"invalid key"}` {
		t.Errorf("unexpected upstream body %q", UpstreamBody(err))
	}
}

func TestFingerprint_Timeout(t *testing.T) {
	release := make(chan struct{})
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	cfg := testConfig(t)
	cfg.RecognitionURL = up.URL
	cfg.RecognitionTimeout = 50 * time.Millisecond
	fc, _ := NewFingerprintClient(cfg, nil, nil)

	_, err := fc.Detect(context.Background(), writeTempAudio(t, []byte("x")))
	assertKind(t, err, KindTimeout)
}
