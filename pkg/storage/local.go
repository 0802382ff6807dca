package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Storage interface for local filesystem.
type LocalStorage struct {
	basePath   string
	publicPath string
}

// LocalConfig holds configuration for local storage.
type LocalConfig struct {
	BasePath   string `mapstructure:"base_path"`
	PublicPath string `mapstructure:"public_path"` // URL prefix the files are served under
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	publicPath := cfg.PublicPath
	if publicPath == "" {
		publicPath = "/uploads"
	}

	return &LocalStorage{
		basePath:   absPath,
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

// fullPath returns the filesystem path for key, refusing keys that escape basePath.
func (s *LocalStorage) fullPath(key string) (string, error) {
	cleanKey := filepath.Clean("/" + key)
	if cleanKey == "/" {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return filepath.Join(s.basePath, cleanKey), nil
}

// Write stores content atomically through a temp file in the target directory.
func (s *LocalStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, err := s.fullPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	committed = true
	return nil
}

// Read opens the file stored under key.
func (s *LocalStorage) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes the file stored under key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if a file is stored under key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// GetURL returns the public path the file is served under. expires is ignored.
func (s *LocalStorage) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	u := url.URL{Path: path.Join(s.publicPath, key)}
	return u.EscapedPath(), nil
}

// BasePath returns the directory files are stored in.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// PublicPath returns the URL prefix files are served under.
func (s *LocalStorage) PublicPath() string {
	return s.publicPath
}
