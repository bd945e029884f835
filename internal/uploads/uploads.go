// Package uploads stores citizen attachments on disk under sanitized names
// and derives the media flags persisted on a manifestation.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Store writes and reads attachment files rooted at a single directory.
// Stored names are timestamp-prefixed and sanitized; the original client
// filename never appears verbatim on disk.
type Store struct {
	dir string
}

// NewStore ensures dir exists and returns a store rooted at it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save streams r to disk and returns the stored relative name.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := SanitizeName(filename)
	stored := fmt.Sprintf("%d-%s", time.Now().UnixNano(), name)

	dst, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return stored, nil
}

// Open returns the stored file for serving. The name is flattened to its
// base component so a crafted path cannot escape the upload directory.
func (s *Store) Open(name string) (*os.File, error) {
	return os.Open(filepath.Join(s.dir, filepath.Base(name)))
}

// Remove deletes a stored file. Used when an analyze-only request already
// streamed its attachments to disk.
func (s *Store) Remove(name string) error {
	return os.Remove(filepath.Join(s.dir, filepath.Base(name)))
}

// SanitizeName replaces every character outside [a-zA-Z0-9.-] with an
// underscore.
func SanitizeName(filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "file"
	}
	return unsafeChars.ReplaceAllString(name, "_")
}

// MediaFlags derives the persisted media summary from attachment MIME
// types. Computed once at submission time, never recomputed.
func MediaFlags(mimeTypes []string) (hasAudio, hasVideo bool, imageCount int) {
	for _, mt := range mimeTypes {
		switch {
		case strings.HasPrefix(mt, "audio/"):
			hasAudio = true
		case strings.HasPrefix(mt, "video/"):
			hasVideo = true
		case strings.HasPrefix(mt, "image/"):
			imageCount++
		}
	}
	return hasAudio, hasVideo, imageCount
}
