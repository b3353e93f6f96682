package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/leasekeep/internal/domain"
)

type PropertyRepo struct{ db dbtx }

func (r *PropertyRepo) Create(ctx context.Context, p *domain.Property) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO properties (id, user_id, name, address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.UserID, p.Name, p.Address, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapErr("propertyRepo.Create", err)
	}
	return nil
}

func (r *PropertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, address, created_at, updated_at FROM properties WHERE id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr("propertyRepo.GetByID", err)
	}
	return &p, nil
}

func (r *PropertyRepo) ListIDsByOwner(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM properties WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, mapErr("propertyRepo.ListIDsByOwner", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, mapErr("propertyRepo.ListIDsByOwner", err)
	}
	return ids, nil
}

type UnitRepo struct{ db dbtx }

func (r *UnitRepo) Create(ctx context.Context, u *domain.Unit) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO units (id, property_id, number, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.PropertyID, u.Number, u.Status, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapErr("unitRepo.Create", err)
	}
	return nil
}

func (r *UnitRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Unit, error) {
	var u domain.Unit
	err := r.db.QueryRow(ctx,
		`SELECT id, property_id, number, status, created_at, updated_at FROM units WHERE id = $1`, id,
	).Scan(&u.ID, &u.PropertyID, &u.Number, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr("unitRepo.GetByID", err)
	}
	return &u, nil
}

func (r *UnitRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UnitStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE units SET status = $1, updated_at = now() WHERE id = $2`, status, id,
	)
	return mustAffect("unitRepo.UpdateStatus", tag, err)
}

type TenantRepo struct{ db dbtx }

const tenantColumns = `id, unit_id, user_id, first_name, last_name, email, phone, created_at, updated_at`

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UnitID, t.UserID, t.FirstName, t.LastName, t.Email, t.Phone, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return mapErr("tenantRepo.Create", err)
	}
	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return r.get(ctx, "tenantRepo.GetByID", `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

func (r *TenantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Tenant, error) {
	return r.get(ctx, "tenantRepo.GetByUserID", `SELECT `+tenantColumns+` FROM tenants WHERE user_id = $1`, userID)
}

func (r *TenantRepo) get(ctx context.Context, caller, query string, arg uuid.UUID) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.UnitID, &t.UserID, &t.FirstName, &t.LastName, &t.Email, &t.Phone, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(caller, err)
	}
	return &t, nil
}

type StaffRepo struct{ db dbtx }

func (r *StaffRepo) Create(ctx context.Context, s *domain.Staff) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO staff (id, property_id, user_id, name, email, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.PropertyID, s.UserID, s.Name, s.Email, s.CreatedAt,
	)
	if err != nil {
		return mapErr("staffRepo.Create", err)
	}
	return nil
}

func (r *StaffRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Staff, error) {
	var s domain.Staff
	err := r.db.QueryRow(ctx,
		`SELECT id, property_id, user_id, name, email, created_at FROM staff WHERE id = $1`, id,
	).Scan(&s.ID, &s.PropertyID, &s.UserID, &s.Name, &s.Email, &s.CreatedAt)
	if err != nil {
		return nil, mapErr("staffRepo.GetByID", err)
	}
	return &s, nil
}

func (r *StaffRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Staff, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, property_id, user_id, name, email, created_at FROM staff WHERE user_id = $1 ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, mapErr("staffRepo.ListByUser", err)
	}
	defer rows.Close()

	var out []*domain.Staff
	for rows.Next() {
		var s domain.Staff
		if err := rows.Scan(&s.ID, &s.PropertyID, &s.UserID, &s.Name, &s.Email, &s.CreatedAt); err != nil {
			return nil, mapErr("staffRepo.ListByUser: scan", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("staffRepo.ListByUser: rows", err)
	}
	return out, nil
}

type UserRepo struct{ db dbtx }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.Name, u.CreatedAt,
	)
	if err != nil {
		return mapErr("userRepo.Create", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, mapErr("userRepo.GetByID", err)
	}
	return &u, nil
}
