package backend

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const maxURLLength = 2048

// systemPaths are directories that must never be used as scratch space.
var systemPaths = []string{"/etc", "/root", "/proc", "/sys", "/bin", "/sbin", "/usr/bin", "/dev", "/boot"}

// ValidateMediaURL checks that a source URL is well formed before any
// upstream is contacted. Platform support is decided separately by
// ClassifyURL.
func ValidateMediaURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return newError(KindBadRequest, "url is empty", nil)
	}
	if len(rawURL) > maxURLLength {
		return newError(KindBadRequest, fmt.Sprintf("url exceeds maximum length of %d characters", maxURLLength), nil)
	}

	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return newError(KindBadRequest, "invalid url format", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return newError(KindBadRequest, fmt.Sprintf("url must use http or https, got %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return newError(KindBadRequest, "url has no host", nil)
	}
	return nil
}

// ValidateUploadDir rejects scratch directories that overlap with system
// directories.
func ValidateUploadDir(path string) error {
	clean := filepath.Clean(path)
	for _, sys := range systemPaths {
		if clean == sys || strings.HasPrefix(clean, sys+"/") {
			return fmt.Errorf("upload directory cannot be a system path (%s)", sys)
		}
	}
	return nil
}
