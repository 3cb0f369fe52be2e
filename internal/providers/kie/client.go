package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that a call was attempted without a credential.
var ErrMissingAPIKey = errors.New("kie: api key is required")

// Options configures the upstream API client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the upstream generation API. It is
// stateless: every call takes the API key to use, so the credential pool can
// swap keys between requests without touching the client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Envelope is the upstream response wrapper shared by all endpoints.
type Envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// ErrorMessage extracts the upstream failure message, trying msg, message and
// error in priority order.
func (e *Envelope) ErrorMessage() string {
	for _, msg := range []string{e.Msg, e.Message, e.Error} {
		if s := strings.TrimSpace(msg); s != "" {
			return s
		}
	}
	return ""
}

type creditData struct {
	Credit  *float64 `json:"credit"`
	Credits *float64 `json:"credits"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai/api/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// CreditBalance queries the remaining quota for one API key. Any transport,
// decode or upstream failure is returned alongside a zero balance; callers
// in the credential pool absorb the error and store the zero.
func (c *Client) CreditBalance(ctx context.Context, apiKey string) (float64, error) {
	if strings.TrimSpace(apiKey) == "" {
		return 0, ErrMissingAPIKey
	}
	env, err := c.get(ctx, apiKey, "/chat/credit", nil)
	if err != nil {
		return 0, fmt.Errorf("kie: credit probe: %w", err)
	}
	if env.Code != http.StatusOK {
		return 0, fmt.Errorf("kie: credit probe rejected: code %d: %s", env.Code, env.ErrorMessage())
	}
	var data creditData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			// Some deployments return the number bare instead of an object.
			var bare float64
			if json.Unmarshal(env.Data, &bare) == nil {
				return bare, nil
			}
			return 0, fmt.Errorf("kie: decode credit payload: %w", err)
		}
	}
	switch {
	case data.Credit != nil:
		return *data.Credit, nil
	case data.Credits != nil:
		return *data.Credits, nil
	}
	return 0, errors.New("kie: credit payload missing credit field")
}

// Submit posts a generation request to the given path and returns the raw
// envelope. A non-200 envelope code is not an error here; the gateway decides
// how to classify the rejection.
func (c *Client) Submit(ctx context.Context, apiKey, path string, body any) (*Envelope, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("kie: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kie: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return c.do(req)
}

// TaskStatus fetches the raw status payload for a previously submitted task.
// The body is returned untouched; normalization happens elsewhere.
func (c *Client) TaskStatus(ctx context.Context, apiKey, path, taskID string) ([]byte, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	query := url.Values{"taskId": []string{taskID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("kie: build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie: status request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kie: read status response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kie: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	c.logger.Debug().Str("task_id", taskID).Str("path", path).Msg("kie: fetched task status")
	return raw, nil
}

func (c *Client) get(ctx context.Context, apiKey, path string, query url.Values) (*Envelope, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}
