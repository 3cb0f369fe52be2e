package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
)

// Sink records operator notifications with per-category deduplication: while
// an unread alert of a category exists inside the rolling window, further
// records of that category are dropped.
type Sink struct {
	repo   domain.AlertRepository
	window time.Duration
	logger infra.Logger
	now    func() time.Time
}

// NewSink constructs a sink over the given repository. A non-positive window
// falls back to one hour.
func NewSink(repo domain.AlertRepository, window time.Duration, logger infra.Logger) *Sink {
	if window <= 0 {
		window = time.Hour
	}
	return &Sink{repo: repo, window: window, logger: logger, now: time.Now}
}

// Record stores an alert unless an unread one of the same category was
// created within the dedup window. Persistence failures are logged and
// swallowed; alerting must never fail the operation that raised it.
func (s *Sink) Record(ctx context.Context, category domain.AlertCategory, message string) {
	since := s.now().Add(-s.window)
	exists, err := s.repo.UnreadExistsSince(ctx, category, since)
	if err != nil {
		s.logger.Error().Err(err).Str("category", string(category)).Msg("alerts: dedup lookup failed")
		return
	}
	if exists {
		return
	}
	alert := &domain.Alert{
		ID:        uuid.NewString(),
		Category:  category,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("category", string(category)).Msg("alerts: record failed")
		return
	}
	s.logger.Warn().Str("category", string(category)).Msg(message)
}
