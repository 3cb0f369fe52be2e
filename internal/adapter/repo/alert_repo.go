package repo

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// AlertRepositoryPG implements domain.AlertRepository over Postgres.
type AlertRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAlertRepository creates an alert repository backed by PostgreSQL.
func NewAlertRepository(sql infra.SQLExecutor) *AlertRepositoryPG {
	return &AlertRepositoryPG{sql: sql}
}

// Create inserts a new alert row.
func (r *AlertRepositoryPG) Create(ctx context.Context, alert *domain.Alert) error {
	query := `
INSERT INTO alerts (id, category, message, read, created_at)
VALUES ($1, $2, $3, FALSE, $4);
`
	_, err := r.sql.Exec(ctx, query, alert.ID, alert.Category, alert.Message, alert.CreatedAt)
	return err
}

// UnreadExistsSince reports whether an unread alert of the category was
// created at or after the given instant.
func (r *AlertRepositoryPG) UnreadExistsSince(ctx context.Context, category domain.AlertCategory, since time.Time) (bool, error) {
	query := `
SELECT EXISTS (
	SELECT 1 FROM alerts
	WHERE category = $1 AND NOT read AND created_at >= $2
);
`
	var exists bool
	if err := r.sql.QueryRow(ctx, query, category, since).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns the most recent alerts.
func (r *AlertRepositoryPG) List(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, category, message, read, created_at
FROM alerts
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.sql.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		if err := rows.Scan(&alert.ID, &alert.Category, &alert.Message, &alert.Read, &alert.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkRead flags one alert as read.
func (r *AlertRepositoryPG) MarkRead(ctx context.Context, id string) error {
	query := `UPDATE alerts SET read = TRUE WHERE id = $1;`
	tag, err := r.sql.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
