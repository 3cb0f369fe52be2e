package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/domain"
)

type stubExecutor struct {
	scan    func(dest ...any) error
	rowErr  error
	execTag pgconn.CommandTag
	execErr error
	query   string
	exec    struct {
		query string
		args  []any
	}
	row struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.row.query = query
	s.row.args = args
	return stubRow{scan: s.scan, err: s.rowErr}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.query = query
	return nil, errors.New("not implemented")
}

type stubRow struct {
	scan func(dest ...any) error
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan != nil {
		return r.scan(dest...)
	}
	return errors.New("no scan stub")
}

func credentialScan(cred domain.Credential) func(dest ...any) error {
	return func(dest ...any) error {
		if len(dest) != 9 {
			return errors.New("unexpected column count")
		}
		*dest[0].(*string) = cred.ID
		*dest[1].(*string) = cred.Name
		*dest[2].(*string) = cred.APIKey
		*dest[3].(*float64) = cred.Credits
		*dest[4].(*bool) = cred.Active
		*dest[5].(*bool) = cred.Current
		*dest[6].(**time.Time) = cred.LastProbedAt
		*dest[7].(*time.Time) = cred.CreatedAt
		*dest[8].(*time.Time) = cred.UpdatedAt
		return nil
	}
}

func TestCredentialGetByID(t *testing.T) {
	want := domain.Credential{ID: "cred-1", Name: "primary", APIKey: "key", Credits: 55, Active: true}
	exec := &stubExecutor{scan: credentialScan(want)}
	repo := NewCredentialRepository(exec)

	got, err := repo.GetByID(context.Background(), "cred-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ID != "cred-1" || got.Credits != 55 || !got.Active {
		t.Fatalf("unexpected credential %+v", got)
	}
	if len(exec.row.args) != 1 || exec.row.args[0] != "cred-1" {
		t.Fatalf("unexpected query args %v", exec.row.args)
	}
}

func TestCredentialGetByIDNotFound(t *testing.T) {
	repo := NewCredentialRepository(&stubExecutor{rowErr: pgx.ErrNoRows})
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialGetCurrentNotFound(t *testing.T) {
	repo := NewCredentialRepository(&stubExecutor{rowErr: pgx.ErrNoRows})
	if _, err := repo.GetCurrent(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialCreateArgs(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewCredentialRepository(exec)
	probed := time.Now()
	cred := &domain.Credential{
		ID: "cred-1", Name: "primary", APIKey: "key", Credits: 80,
		Active: true, Current: true, LastProbedAt: &probed,
	}
	if err := repo.Create(context.Background(), cred); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(exec.exec.args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(exec.exec.args))
	}
	if exec.exec.args[2] != "key" {
		t.Fatalf("api key not passed, args %v", exec.exec.args)
	}
}

func TestCredentialUpdateBalanceArgs(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewCredentialRepository(exec)
	probed := time.Now()
	if err := repo.UpdateBalance(context.Background(), "cred-1", 3.5, false, probed); err != nil {
		t.Fatalf("UpdateBalance error: %v", err)
	}
	if len(exec.exec.args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(exec.exec.args))
	}
	if exec.exec.args[1] != 3.5 || exec.exec.args[2] != false {
		t.Fatalf("unexpected args %v", exec.exec.args)
	}
}

func TestCredentialListActiveOrdering(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewCredentialRepository(exec)
	// The stub fails the query; only the statement shape is inspected.
	_, _ = repo.ListActive(context.Background())
	if !strings.Contains(exec.query, "ORDER BY credits DESC, id ASC") {
		t.Fatalf("failover ordering must be deterministic, got %q", exec.query)
	}
}

func TestCredentialClearCurrentQuery(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewCredentialRepository(exec)
	if err := repo.ClearCurrent(context.Background()); err != nil {
		t.Fatalf("ClearCurrent error: %v", err)
	}
	if !strings.Contains(exec.exec.query, `"current" = FALSE`) {
		t.Fatalf("unexpected query %q", exec.exec.query)
	}
}

func TestCredentialCount(t *testing.T) {
	exec := &stubExecutor{scan: func(dest ...any) error {
		*dest[0].(*int) = 4
		return nil
	}}
	repo := NewCredentialRepository(exec)
	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}
}
