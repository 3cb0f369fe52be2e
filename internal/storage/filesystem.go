package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/infra"
)

// FileStore relocates remote media onto the local filesystem and serves it
// back through a static base URL. It is intended for development and
// single-node deployments where an object storage service is not available.
type FileStore struct {
	basePath   string
	baseURL    string
	httpClient *http.Client
	logger     infra.Logger
}

// NewFileStore initializes a FileStore rooted at basePath. Stable URLs are
// produced by joining baseURL with the storage key.
func NewFileStore(basePath, baseURL string, logger infra.Logger) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath:   basePath,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Relocate downloads the remote asset and persists it under the collection
// directory, returning the stable URL. Errors propagate so the caller can
// decide to keep the remote URL; this store never retries.
func (s *FileStore) Relocate(ctx context.Context, remoteURL, collection string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	data, ext, err := s.download(ctx, remoteURL)
	if err != nil {
		return "", err
	}
	key, err := sanitizeKey(path.Join(collection, uuid.NewString()+ext))
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	s.logger.Debug().Str("key", key).Str("source", remoteURL).Msg("storage: relocated asset")
	return s.baseURL + "/" + key, nil
}

func (s *FileStore) download(ctx context.Context, remoteURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(remoteURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("storage: invalid remote url: %s", remoteURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("storage: read asset: %w", err)
	}
	return data, extensionFor(resp.Header.Get("Content-Type"), parsed.Path), nil
}

func extensionFor(contentType, urlPath string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	}
	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" {
		return ext
	}
	return ".bin"
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
