package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore hosts media in a directory served under PathPrefix.
type LocalStore struct {
	rootDir string
	baseURL string
}

func NewLocalStore(rootDir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("media root directory is required")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media root directory: %w", err)
	}

	return &LocalStore{rootDir: rootDir, baseURL: baseURL}, nil
}

func (s *LocalStore) Upload(_ context.Context, localPath string) (*Asset, error) {
	mimeType, size, err := inspectFile(localPath)
	if err != nil {
		return nil, err
	}

	key := newObjectKey(mimeType)
	absPath, err := s.resolveStoragePath(key)
	if err != nil {
		return nil, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening media file: %w", err)
	}
	defer src.Close()

	if _, err := writeAtomically(absPath, src); err != nil {
		return nil, err
	}

	return &Asset{
		Key:       key,
		URL:       URL(s.baseURL, key),
		MimeType:  mimeType,
		SizeBytes: size,
	}, nil
}

func (s *LocalStore) Delete(_ context.Context, rawURL string) error {
	if !strings.HasPrefix(rawURL, URL(s.baseURL, "")) {
		return nil
	}
	key, ok := ParseKey(rawURL)
	if !ok {
		return nil
	}

	absPath, err := s.resolveStoragePath(key)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting media file: %w", err)
	}

	return nil
}

// Open returns the stored object for key.
func (s *LocalStore) Open(key string) (*os.File, error) {
	absPath, err := s.resolveStoragePath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(absPath)
}

func (s *LocalStore) resolveStoragePath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.rootDir, clean), nil
}

func writeAtomically(absPath string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating media directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), "media-write-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temporary media file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	written, err := io.Copy(tmpFile, src)
	if err != nil {
		return 0, fmt.Errorf("writing media file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temporary media file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return 0, fmt.Errorf("finalizing media file: %w", err)
	}

	return written, nil
}
