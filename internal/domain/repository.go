package domain

import (
	"context"
	"time"
)

// CredentialRepository defines persistence for pool credentials. Every
// mutation is a discrete single-row update; the store is the source of truth
// for the single-current invariant.
type CredentialRepository interface {
	Create(ctx context.Context, cred *Credential) error
	GetByID(ctx context.Context, id string) (*Credential, error)
	List(ctx context.Context) ([]Credential, error)
	ListActive(ctx context.Context) ([]Credential, error)
	GetCurrent(ctx context.Context) (*Credential, error)
	// UpdateBalance writes credits, the derived active flag and the probe
	// timestamp for one credential.
	UpdateBalance(ctx context.Context, id string, credits float64, active bool, probedAt time.Time) error
	// ClearCurrent removes the current designation from every credential.
	ClearCurrent(ctx context.Context) error
	// SetCurrent marks one credential current. Callers clear first.
	SetCurrent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// AlertRepository persists operator alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *Alert) error
	// UnreadExistsSince reports whether an unread alert of the category was
	// created at or after the given instant.
	UnreadExistsSince(ctx context.Context, category AlertCategory, since time.Time) (bool, error)
	List(ctx context.Context, limit int) ([]Alert, error)
	MarkRead(ctx context.Context, id string) error
}
