// Package postgres implements domain.Store on PostgreSQL with pgx. Row locks
// taken by the GetForUpdate methods serialize concurrent transitions of one
// entity.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/leasekeep/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// works inside and outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	repos
}

var _ domain.Store = (*Store)(nil) //nolint:gochecknoglobals // compile-time check

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{pool: pool, repos: repos{db: pool}}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx runs fn in a read-committed transaction. fn's error rolls it back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repos) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, repos{db: tx})
	})
	if err != nil {
		return fmt.Errorf("postgres.Store.InTx: %w", err)
	}
	return nil
}

type repos struct {
	db dbtx
}

func (r repos) Properties() domain.PropertyRepository      { return &PropertyRepo{db: r.db} }
func (r repos) Units() domain.UnitRepository               { return &UnitRepo{db: r.db} }
func (r repos) Tenants() domain.TenantRepository           { return &TenantRepo{db: r.db} }
func (r repos) Staff() domain.StaffRepository              { return &StaffRepo{db: r.db} }
func (r repos) Users() domain.UserRepository               { return &UserRepo{db: r.db} }
func (r repos) Leases() domain.LeaseRepository             { return &LeaseRepo{db: r.db} }
func (r repos) Ledger() domain.LedgerRepository            { return &LedgerRepo{db: r.db} }
func (r repos) Payments() domain.PaymentRepository         { return &PaymentRepo{db: r.db} }
func (r repos) Maintenance() domain.MaintenanceRepository  { return &MaintenanceRepo{db: r.db} }
func (r repos) Applications() domain.ApplicationRepository { return &ApplicationRepo{db: r.db} }
func (r repos) Outbox() domain.OutboxRepository            { return &OutboxRepo{db: r.db} }
func (r repos) Audit() domain.AuditRepository              { return &AuditRepo{db: r.db} }

const uniqueViolation = "23505"

// mapErr translates driver errors into domain errors.
func mapErr(caller string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", caller, domain.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", caller, err)
}

// mustAffect maps an UPDATE that touched no row to ErrNotFound.
func mustAffect(caller string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(caller, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	return nil
}
