// Package media stores event captures and face images on local disk, where the HTTP
// server publishes them under /uploads/ for browsers and for the terminal to fetch.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// URLPrefix path the uploads directory is served under.
const URLPrefix = "/uploads/"

// Storage directory-backed file store.
type Storage struct {
	dir           string
	publicBaseURL string
	logger        *zap.Logger
}

// NewStorage creates dir when missing.
func NewStorage(dir, publicBaseURL string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir %s: %w", dir, err)
	}
	return &Storage{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.Named("media"),
	}, nil
}

// Dir root directory, for the static file handler.
func (s *Storage) Dir() string { return s.dir }

// Save writes r under name. The file appears complete or not at all.
func (s *Storage) Save(name string, r io.Reader) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid media name %q", name)
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	// CreateTemp creates 0600
	_ = os.Chmod(tmpName, 0o644)
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// Remove deletes name; a file that is already gone is not an error.
func (s *Storage) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to remove media file", zap.String("name", name), zap.Error(err))
		return err
	}
	return nil
}

// Exists reports whether name is stored.
func (s *Storage) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, filepath.Base(name)))
	return err == nil
}

// Ref server-relative reference, as stored on events.
func (s *Storage) Ref(name string) string { return URLPrefix + name }

// PublicURL absolute URL the terminal can fetch.
func (s *Storage) PublicURL(name string) string { return s.publicBaseURL + URLPrefix + name }

// ExtFor file extension for an uploaded image, from its file name or content type.
func ExtFor(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "bmp"):
		return ".bmp"
	default:
		return ".jpg"
	}
}
