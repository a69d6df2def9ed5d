package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScratchDir is the directory temp audio files are written to. Names are
// timestamp + random so concurrent requests never collide.
type ScratchDir struct {
	dir string
}

// NewScratchDir creates dir if it is missing.
func NewScratchDir(dir string) (*ScratchDir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &ScratchDir{dir: dir}, nil
}

// Path returns the directory path.
func (s *ScratchDir) Path() string {
	return s.dir
}

// Create makes a new empty temp file. The caller owns the returned guard
// and must Release it on every exit path.
func (s *ScratchDir) Create(ext string) (*TempFile, *os.File, error) {
	path, err := s.newPath(ext)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &TempFile{path: path}, f, nil
}

// Reserve returns a guard for a new, not-yet-created path in the scratch
// directory, for writers that create the file themselves.
func (s *ScratchDir) Reserve(ext string) (*TempFile, error) {
	path, err := s.newPath(ext)
	if err != nil {
		return nil, err
	}
	return &TempFile{path: path}, nil
}

func (s *ScratchDir) newPath(ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.New().String()[:8], sanitizeExt(ext))
	return filepath.Join(s.dir, name), nil
}

// Count returns the number of regular files currently in the directory.
func (s *ScratchDir) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// TempFile guards a scratch file. Release is idempotent and safe to defer
// more than once; deletion errors are logged and otherwise ignored.
type TempFile struct {
	path string
	once sync.Once
}

// ExistingFile wraps a file that already exists, e.g. a path given on the
// command line. Release deletes it, so only the file's owner may call it.
func ExistingFile(path string) *TempFile {
	return &TempFile{path: path}
}

// Path returns the file path.
func (t *TempFile) Path() string {
	return t.path
}

// Release deletes the file.
func (t *TempFile) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			Logger.Debug("temp file cleanup failed", "path", t.path, "error", err)
		}
	})
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".bin"
		}
	}
	if len(ext) > 6 {
		return ".bin"
	}
	return ext
}
