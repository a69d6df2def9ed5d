package backend

import (
	"strings"
	"testing"
)

// ============================================================================
// ValidateMediaURL
// ============================================================================

func TestValidateMediaURL_Valid(t *testing.T) {
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.tiktok.com/@a/video/123",
		"http://fb.watch/abc/",
	}
	for _, u := range cases {
		t.Run(u, func(t *testing.T) {
			if err := ValidateMediaURL(u); err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
		})
	}
}

func TestValidateMediaURL_Invalid(t *testing.T) {
	cases := []struct {
		url    string
		reason string
	}{
		{"javascript:alert(1)", "javascript scheme"},
		{"ftp://youtube.com/watch?v=xxx", "ftp scheme"},
		{"https://" + strings.Repeat("a", 2050), "too long"},
		{"", "empty"},
		{"just-text", "no scheme"},
		{"https:///path-only", "no host"},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			err := ValidateMediaURL(tc.url)
			if err == nil {
				t.Fatalf("expected error for %q (%s), got nil", tc.url, tc.reason)
			}
			if KindOf(err) != KindBadRequest {
				t.Errorf("expected BadRequest, got %s", KindOf(err))
			}
		})
	}
}

// ============================================================================
// ValidateUploadDir
// ============================================================================

func TestValidateUploadDir(t *testing.T) {
	cases := []struct {
		path    string
		wantErr bool
	}{
		{"uploads", false},
		{"/tmp/songdetect", false},
		{"/etc", true},
		{"/etc/songdetect", true},
		{"/proc/self", true},
		{"/etcetera", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			err := ValidateUploadDir(tc.path)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateUploadDir(%q) error = %v, wantErr %v", tc.path, err, tc.wantErr)
			}
		})
	}
}
