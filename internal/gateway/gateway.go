package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/kie"
)

// Pool resolves the credential used for upstream calls.
type Pool interface {
	Current(ctx context.Context) (*domain.Credential, error)
}

// Upstream is the subset of the provider client the gateway needs.
type Upstream interface {
	CreditBalance(ctx context.Context, apiKey string) (float64, error)
	Submit(ctx context.Context, apiKey, path string, body any) (*kie.Envelope, error)
	TaskStatus(ctx context.Context, apiKey, path, taskID string) ([]byte, error)
}

// Normalizer maps a raw status payload to the uniform result contract.
type Normalizer interface {
	Normalize(ctx context.Context, jobType domain.JobType, raw []byte) (domain.NormalizedResult, error)
}

// Endpoints carries the submit and status paths for one job type.
type Endpoints struct {
	Submit string
	Status string
}

// endpointsByType maps each job type to its upstream paths. The per-type
// paths mirror the upstream API layout.
var endpointsByType = map[domain.JobType]Endpoints{
	domain.JobTypeImage: {Submit: "/flux/kontext/generate", Status: "/flux/kontext/record-info"},
	domain.JobTypeCover: {Submit: "/gpt4o-image/generate", Status: "/gpt4o-image/record-info"},
	domain.JobTypeMusic: {Submit: "/suno/generate", Status: "/suno/record-info"},
	domain.JobTypeVideo: {Submit: "/runway/generate", Status: "/runway/record-detail"},
}

// Gateway issues generation and status calls against the upstream using
// whichever credential the pool designates current. It distinguishes quota
// exhaustion from other upstream rejections so callers can surface an
// actionable message.
type Gateway struct {
	pool        Pool
	upstream    Upstream
	normalizer  Normalizer
	fallbackKey string
	logger      infra.Logger
}

// Options wires a Gateway.
type Options struct {
	Pool       Pool
	Upstream   Upstream
	Normalizer Normalizer
	// FallbackKey is the static key used when the pool has no credential at
	// all. Empty disables the fallback.
	FallbackKey string
	Logger      infra.Logger
}

func New(opts Options) *Gateway {
	return &Gateway{
		pool:        opts.Pool,
		upstream:    opts.Upstream,
		normalizer:  opts.Normalizer,
		fallbackKey: opts.FallbackKey,
		logger:      opts.Logger,
	}
}

// EndpointsFor returns the upstream paths for a job type.
func EndpointsFor(jobType domain.JobType) (Endpoints, error) {
	ep, ok := endpointsByType[jobType]
	if !ok {
		return Endpoints{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedJobType, jobType)
	}
	return ep, nil
}

// SubmitResult carries the upstream acknowledgement of a submitted job.
type SubmitResult struct {
	TaskID string          `json:"taskId"`
	Raw    json.RawMessage `json:"-"`
}

// Submit starts a generation job of the given type. On an upstream rejection
// it probes the live balance of the credential that was used: a depleted
// balance maps to ErrInsufficientCredits, anything else to ErrUpstream.
func (g *Gateway) Submit(ctx context.Context, jobType domain.JobType, body map[string]any) (*SubmitResult, error) {
	ep, err := EndpointsFor(jobType)
	if err != nil {
		return nil, err
	}
	apiKey, err := g.resolveKey(ctx)
	if err != nil {
		return nil, err
	}
	env, err := g.upstream.Submit(ctx, apiKey, ep.Submit, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if env.Code != http.StatusOK {
		return nil, g.classifyRejection(ctx, apiKey, env)
	}
	var ack struct {
		TaskID string `json:"taskId"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &ack); err != nil {
			return nil, fmt.Errorf("%w: decode submit ack: %v", domain.ErrUpstream, err)
		}
	}
	g.logger.Info().Str("job_type", string(jobType)).Str("task_id", ack.TaskID).Msg("gateway: job submitted")
	return &SubmitResult{TaskID: ack.TaskID, Raw: env.Data}, nil
}

// PollStatus fetches the raw status payload from the type-appropriate
// endpoint and delegates normalization.
func (g *Gateway) PollStatus(ctx context.Context, jobType domain.JobType, taskID string) (domain.NormalizedResult, error) {
	ep, err := EndpointsFor(jobType)
	if err != nil {
		return domain.NormalizedResult{}, err
	}
	apiKey, err := g.resolveKey(ctx)
	if err != nil {
		return domain.NormalizedResult{}, err
	}
	raw, err := g.upstream.TaskStatus(ctx, apiKey, ep.Status, taskID)
	if err != nil {
		return domain.NormalizedResult{}, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	return g.normalizer.Normalize(ctx, jobType, raw)
}

// resolveKey asks the pool for the current credential, falling back to the
// configured static key when the pool is exhausted and one is available.
func (g *Gateway) resolveKey(ctx context.Context) (string, error) {
	cred, err := g.pool.Current(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoCredentialAvailable) && g.fallbackKey != "" {
			g.logger.Warn().Msg("gateway: pool exhausted, using fallback credential")
			return g.fallbackKey, nil
		}
		return "", err
	}
	return cred.APIKey, nil
}

// classifyRejection turns a non-200 envelope into the right error kind. The
// live balance of the credential decides between quota exhaustion and an
// opaque upstream failure.
func (g *Gateway) classifyRejection(ctx context.Context, apiKey string, env *kie.Envelope) error {
	balance, probeErr := g.upstream.CreditBalance(ctx, apiKey)
	if probeErr == nil && balance <= 0 {
		return fmt.Errorf("%w: upstream code %d", domain.ErrInsufficientCredits, env.Code)
	}
	msg := env.ErrorMessage()
	if msg == "" {
		msg = "upstream rejected the request"
	}
	return fmt.Errorf("%w: code %d: %s", domain.ErrUpstream, env.Code, msg)
}
