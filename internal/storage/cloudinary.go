package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"server/internal/infra"
)

// CloudinaryStore relocates remote media by handing the URL to Cloudinary's
// upload API, which fetches and stores the asset itself. No bytes pass
// through this process.
type CloudinaryStore struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	preset     string
	httpClient *http.Client
	logger     infra.Logger
	now        func() time.Time
}

// CloudinaryOptions configures the store.
type CloudinaryOptions struct {
	CloudName  string
	APIKey     string
	APISecret  string
	Preset     string
	HTTPClient *http.Client
	Logger     infra.Logger
}

// NewCloudinaryStore validates credentials and constructs the store.
func NewCloudinaryStore(opts CloudinaryOptions) (*CloudinaryStore, error) {
	if strings.TrimSpace(opts.CloudName) == "" {
		return nil, errors.New("storage: cloudinary cloud name is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, errors.New("storage: cloudinary api credentials are required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &CloudinaryStore{
		cloudName:  opts.CloudName,
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		preset:     opts.Preset,
		httpClient: httpClient,
		logger:     opts.Logger,
		now:        time.Now,
	}, nil
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Relocate submits the remote URL to the auto-upload endpoint and returns the
// secure URL of the stored copy. Errors propagate; callers fall back to the
// remote URL.
func (s *CloudinaryStore) Relocate(ctx context.Context, remoteURL, collection string) (string, error) {
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return "", errors.New("storage: remote url is required")
	}
	form := url.Values{
		"file":      []string{remoteURL},
		"api_key":   []string{s.apiKey},
		"timestamp": []string{strconv.FormatInt(s.now().Unix(), 10)},
	}
	if collection != "" {
		form.Set("folder", collection)
	}
	if s.preset != "" {
		form.Set("upload_preset", s.preset)
	}
	form.Set("signature", s.sign(form))

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", s.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("storage: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: upload request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("storage: read upload response: %w", err)
	}
	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("storage: decode upload response: %w", err)
	}
	if resp.StatusCode >= 300 || decoded.Error.Message != "" {
		return "", fmt.Errorf("storage: upload rejected: status %d: %s", resp.StatusCode, decoded.Error.Message)
	}
	stable := decoded.SecureURL
	if stable == "" {
		stable = decoded.URL
	}
	if stable == "" {
		return "", errors.New("storage: upload response missing url")
	}
	s.logger.Debug().Str("source", remoteURL).Str("url", stable).Msg("storage: relocated asset to cloudinary")
	return stable, nil
}

// sign produces the request signature: the sha1 hex digest of the sorted
// non-auth form fields joined with the API secret.
func (s *CloudinaryStore) sign(form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		if k == "file" || k == "api_key" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+form.Get(k))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + s.apiSecret))
	return hex.EncodeToString(sum[:])
}
