package credpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
)

// DefaultCreditThreshold is the minimum balance for a credential to count as
// active when no threshold is configured.
const DefaultCreditThreshold = 10

// Prober queries the upstream for the remaining quota of one API key.
type Prober interface {
	CreditBalance(ctx context.Context, apiKey string) (float64, error)
}

// AlertSink receives deduplicated operator notifications.
type AlertSink interface {
	Record(ctx context.Context, category domain.AlertCategory, message string)
}

// Manager owns the credential pool: cached balances, the derived active flag
// and the single current designation. All state lives in the repository so
// multiple service instances stay consistent; the manager itself is stateless
// and safe for concurrent use.
type Manager struct {
	repo      domain.CredentialRepository
	prober    Prober
	sink      AlertSink
	threshold float64
	logger    infra.Logger
	now       func() time.Time
}

// NewManager wires a pool manager. A non-positive threshold falls back to
// DefaultCreditThreshold.
func NewManager(repo domain.CredentialRepository, prober Prober, sink AlertSink, threshold float64, logger infra.Logger) *Manager {
	if threshold <= 0 {
		threshold = DefaultCreditThreshold
	}
	return &Manager{
		repo:      repo,
		prober:    prober,
		sink:      sink,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Threshold returns the configured minimum usable balance.
func (m *Manager) Threshold() float64 {
	return m.threshold
}

// AddCredential probes the key synchronously and stores it. A probe failure
// degrades to a zero balance instead of rejecting the credential, so an
// exhausted or temporarily unreachable key is still registered (inactive).
// The first credential in an empty pool becomes current.
func (m *Manager) AddCredential(ctx context.Context, apiKey, name string) (*domain.Credential, error) {
	credits, err := m.prober.CreditBalance(ctx, apiKey)
	if err != nil {
		m.logger.Warn().Err(err).Str("name", name).Msg("pool: probe failed on add, storing with zero balance")
		credits = 0
	}
	count, err := m.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count credentials: %w", err)
	}
	probedAt := m.now()
	cred := &domain.Credential{
		ID:           uuid.NewString(),
		Name:         name,
		APIKey:       apiKey,
		Credits:      credits,
		Active:       credits >= m.threshold,
		Current:      count == 0,
		LastProbedAt: &probedAt,
	}
	if err := m.repo.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	m.logger.Info().
		Str("credential_id", cred.ID).
		Float64("credits", credits).
		Bool("current", cred.Current).
		Msg("pool: credential added")
	return cred, nil
}

// Current returns the designated current credential if it is active. When no
// active credential holds the designation it promotes the best candidate and
// persists the promotion. Returns ErrNoCredentialAvailable when the pool has
// no active credential at all.
func (m *Manager) Current(ctx context.Context) (*domain.Credential, error) {
	cred, err := m.repo.GetCurrent(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load current credential: %w", err)
	}
	if cred != nil && cred.Active {
		return cred, nil
	}
	promoted, err := m.Failover(ctx)
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return nil, domain.ErrNoCredentialAvailable
	}
	return promoted, nil
}

// RefreshAll re-probes every credential and updates balances in place. The
// loop is deliberately not atomic across credentials: each row update is
// independently consistent and the next refresh converges. If the refresh
// leaves no current-and-active credential, a failover is triggered.
func (m *Manager) RefreshAll(ctx context.Context) error {
	creds, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}
	for i := range creds {
		cred := &creds[i]
		credits, probeErr := m.prober.CreditBalance(ctx, cred.APIKey)
		if probeErr != nil {
			m.logger.Warn().Err(probeErr).Str("credential_id", cred.ID).Msg("pool: probe failed, treating balance as zero")
			credits = 0
		}
		active := credits >= m.threshold
		if err := m.repo.UpdateBalance(ctx, cred.ID, credits, active, m.now()); err != nil {
			m.logger.Error().Err(err).Str("credential_id", cred.ID).Msg("pool: balance update failed")
			continue
		}
		cred.Credits = credits
		cred.Active = active
	}

	current, err := m.repo.GetCurrent(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load current credential: %w", err)
	}
	if current == nil || !current.Active {
		if _, err := m.Failover(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Failover clears the current designation and promotes the active credential
// with the highest balance, ties broken by lowest identifier so the choice is
// deterministic. When no candidate exists it raises one deduplicated alert
// and returns nil.
func (m *Manager) Failover(ctx context.Context) (*domain.Credential, error) {
	if err := m.repo.ClearCurrent(ctx); err != nil {
		return nil, fmt.Errorf("clear current flag: %w", err)
	}
	candidates, err := m.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active credentials: %w", err)
	}
	if len(candidates) == 0 {
		m.sink.Record(ctx, domain.AlertNoUsableCredential, "all upstream credentials are exhausted or inactive")
		m.logger.Warn().Msg("pool: failover found no usable credential")
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Credits != candidates[j].Credits {
			return candidates[i].Credits > candidates[j].Credits
		}
		return candidates[i].ID < candidates[j].ID
	})
	best := candidates[0]
	if err := m.repo.SetCurrent(ctx, best.ID); err != nil {
		return nil, fmt.Errorf("promote credential: %w", err)
	}
	best.Current = true
	m.logger.Info().
		Str("credential_id", best.ID).
		Float64("credits", best.Credits).
		Msg("pool: failover promoted credential")
	return &best, nil
}

// ProbeAndReconcile re-probes one credential and reconciles pool state with
// the fresh balance: dropping below threshold deactivates it (and fails over
// when it was current); recovering above threshold promotes it when nothing
// else is active.
func (m *Manager) ProbeAndReconcile(ctx context.Context, id string) (float64, error) {
	cred, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	credits, probeErr := m.prober.CreditBalance(ctx, cred.APIKey)
	if probeErr != nil {
		m.logger.Warn().Err(probeErr).Str("credential_id", id).Msg("pool: probe failed, treating balance as zero")
		credits = 0
	}
	active := credits >= m.threshold
	if err := m.repo.UpdateBalance(ctx, id, credits, active, m.now()); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	switch {
	case !active && cred.Current:
		if _, err := m.Failover(ctx); err != nil {
			return credits, err
		}
	case active:
		others, err := m.repo.ListActive(ctx)
		if err != nil {
			return credits, fmt.Errorf("list active credentials: %w", err)
		}
		anyCurrent := false
		for _, other := range others {
			if other.Current {
				anyCurrent = true
				break
			}
		}
		if !anyCurrent {
			if err := m.repo.ClearCurrent(ctx); err != nil {
				return credits, fmt.Errorf("clear current flag: %w", err)
			}
			if err := m.repo.SetCurrent(ctx, id); err != nil {
				return credits, fmt.Errorf("promote credential: %w", err)
			}
			m.logger.Info().Str("credential_id", id).Msg("pool: recovered credential promoted")
		}
	}
	return credits, nil
}

// Remove deletes a credential and fails over when it held the current
// designation.
func (m *Manager) Remove(ctx context.Context, id string) error {
	cred, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	m.logger.Info().Str("credential_id", id).Msg("pool: credential removed")
	if cred.Current {
		if _, err := m.Failover(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SetCurrent is the operator override: it force-designates a credential as
// current regardless of its balance and does not touch the active flag. The
// resulting current-but-inactive state is intentional and surfaced to
// operators rather than silently corrected.
func (m *Manager) SetCurrent(ctx context.Context, id string) error {
	if _, err := m.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := m.repo.ClearCurrent(ctx); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	if err := m.repo.SetCurrent(ctx, id); err != nil {
		return fmt.Errorf("set current flag: %w", err)
	}
	m.logger.Info().Str("credential_id", id).Msg("pool: operator override set current")
	return nil
}

// List returns every credential in the pool.
func (m *Manager) List(ctx context.Context) ([]domain.Credential, error) {
	return m.repo.List(ctx)
}
