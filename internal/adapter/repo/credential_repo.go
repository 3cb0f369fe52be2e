package repo

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// CredentialRepositoryPG implements domain.CredentialRepository over Postgres.
type CredentialRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCredentialRepository creates a credential repository backed by PostgreSQL.
func NewCredentialRepository(sql infra.SQLExecutor) *CredentialRepositoryPG {
	return &CredentialRepositoryPG{sql: sql}
}

const credentialColumns = `id, name, api_key, credits, active, "current", last_probed_at, created_at, updated_at`

// Create inserts a new credential row.
func (r *CredentialRepositoryPG) Create(ctx context.Context, cred *domain.Credential) error {
	query := `
INSERT INTO credentials (id, name, api_key, credits, active, "current", last_probed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.sql.Exec(ctx, query,
		cred.ID,
		cred.Name,
		cred.APIKey,
		cred.Credits,
		cred.Active,
		cred.Current,
		cred.LastProbedAt,
	)
	return err
}

// GetByID fetches one credential by its identifier.
func (r *CredentialRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1;`
	row := r.sql.QueryRow(ctx, query, id)
	return scanCredential(row)
}

// GetCurrent fetches the credential holding the current designation.
func (r *CredentialRepositoryPG) GetCurrent(ctx context.Context) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE "current" LIMIT 1;`
	row := r.sql.QueryRow(ctx, query)
	return scanCredential(row)
}

// List returns every credential ordered for stable display.
func (r *CredentialRepositoryPG) List(ctx context.Context) ([]domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials ORDER BY created_at, id;`
	return r.list(ctx, query)
}

// ListActive returns the credentials whose cached balance meets the
// threshold, ordered by balance descending then identifier ascending so the
// failover choice is deterministic.
func (r *CredentialRepositoryPG) ListActive(ctx context.Context) ([]domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE active ORDER BY credits DESC, id ASC;`
	return r.list(ctx, query)
}

// UpdateBalance writes a fresh probe result for one credential.
func (r *CredentialRepositoryPG) UpdateBalance(ctx context.Context, id string, credits float64, active bool, probedAt time.Time) error {
	query := `
UPDATE credentials
SET credits = $2,
    active = $3,
    last_probed_at = $4,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.sql.Exec(ctx, query, id, credits, active, probedAt)
	return err
}

// ClearCurrent removes the current designation from every credential.
func (r *CredentialRepositoryPG) ClearCurrent(ctx context.Context) error {
	query := `UPDATE credentials SET "current" = FALSE, updated_at = NOW() WHERE "current";`
	_, err := r.sql.Exec(ctx, query)
	return err
}

// SetCurrent marks one credential current.
func (r *CredentialRepositoryPG) SetCurrent(ctx context.Context, id string) error {
	query := `UPDATE credentials SET "current" = TRUE, updated_at = NOW() WHERE id = $1;`
	_, err := r.sql.Exec(ctx, query, id)
	return err
}

// Delete removes a credential row.
func (r *CredentialRepositoryPG) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM credentials WHERE id = $1;`
	_, err := r.sql.Exec(ctx, query, id)
	return err
}

// Count returns the number of stored credentials.
func (r *CredentialRepositoryPG) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM credentials;`
	var count int
	if err := r.sql.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CredentialRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.Credential, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var creds []domain.Credential
	for rows.Next() {
		var cred domain.Credential
		if err := rows.Scan(
			&cred.ID,
			&cred.Name,
			&cred.APIKey,
			&cred.Credits,
			&cred.Active,
			&cred.Current,
			&cred.LastProbedAt,
			&cred.CreatedAt,
			&cred.UpdatedAt,
		); err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*domain.Credential, error) {
	var cred domain.Credential
	if err := row.Scan(
		&cred.ID,
		&cred.Name,
		&cred.APIKey,
		&cred.Credits,
		&cred.Active,
		&cred.Current,
		&cred.LastProbedAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}
