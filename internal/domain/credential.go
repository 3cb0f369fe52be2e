package domain

import "time"

// Credential is one upstream API key together with its cached quota state.
type Credential struct {
	ID           string
	Name         string
	APIKey       string
	Credits      float64
	Active       bool
	Current      bool
	LastProbedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UsableAt reports whether the cached balance meets the given threshold.
// Active is always recomputed from this predicate when a balance is written.
func (c *Credential) UsableAt(threshold float64) bool {
	return c.Credits >= threshold
}
