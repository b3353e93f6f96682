package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/leasekeep/internal/domain"
)

type MaintenanceRepo struct{ db dbtx }

const maintenanceColumns = `id, property_id, unit_id, tenant_id, staff_id, title, description, priority, status,
	requested_at, updated_at, completed_at`

func (r *MaintenanceRepo) Create(ctx context.Context, m *domain.MaintenanceRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO maintenance_requests (`+maintenanceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.PropertyID, m.UnitID, m.TenantID, m.StaffID, m.Title, m.Description, m.Priority, m.Status,
		m.RequestedAt, m.UpdatedAt, m.CompletedAt,
	)
	if err != nil {
		return mapErr("maintenanceRepo.Create", err)
	}
	return nil
}

func (r *MaintenanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	rows, err := r.db.Query(ctx, `SELECT `+maintenanceColumns+` FROM maintenance_requests WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr("maintenanceRepo.GetByID", err)
	}
	return collectOne(rows, scanMaintenance, "maintenanceRepo.GetByID")
}

func (r *MaintenanceRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	rows, err := r.db.Query(ctx, `SELECT `+maintenanceColumns+` FROM maintenance_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapErr("maintenanceRepo.GetForUpdate", err)
	}
	return collectOne(rows, scanMaintenance, "maintenanceRepo.GetForUpdate")
}

func (r *MaintenanceRepo) Update(ctx context.Context, m *domain.MaintenanceRequest) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE maintenance_requests SET staff_id = $1, priority = $2, status = $3, updated_at = $4, completed_at = $5
		 WHERE id = $6`,
		m.StaffID, m.Priority, m.Status, m.UpdatedAt, m.CompletedAt, m.ID,
	)
	return mustAffect("maintenanceRepo.Update", tag, err)
}

func (r *MaintenanceRepo) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*domain.MaintenanceRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+maintenanceColumns+` FROM maintenance_requests
		 WHERE property_id = $1
		 ORDER BY requested_at DESC
		 LIMIT 1000`,
		propertyID,
	)
	if err != nil {
		return nil, mapErr("maintenanceRepo.ListByProperty", err)
	}
	return collectAll(rows, scanMaintenance, "maintenanceRepo.ListByProperty")
}

func scanMaintenance(row pgx.CollectableRow) (*domain.MaintenanceRequest, error) {
	var m domain.MaintenanceRequest
	err := row.Scan(
		&m.ID, &m.PropertyID, &m.UnitID, &m.TenantID, &m.StaffID, &m.Title, &m.Description, &m.Priority, &m.Status,
		&m.RequestedAt, &m.UpdatedAt, &m.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type ApplicationRepo struct{ db dbtx }

const applicationColumns = `id, property_id, unit_id, applicant_id, applicant_name, applicant_email, message,
	status, decision_note, created_at, updated_at`

func (r *ApplicationRepo) Create(ctx context.Context, a *domain.Application) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO applications (`+applicationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.PropertyID, a.UnitID, a.ApplicantID, a.ApplicantName, a.ApplicantEmail, a.Message,
		a.Status, a.DecisionNote, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapErr("applicationRepo.Create", err)
	}
	return nil
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	rows, err := r.db.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr("applicationRepo.GetByID", err)
	}
	return collectOne(rows, scanApplication, "applicationRepo.GetByID")
}

func (r *ApplicationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	rows, err := r.db.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapErr("applicationRepo.GetForUpdate", err)
	}
	return collectOne(rows, scanApplication, "applicationRepo.GetForUpdate")
}

func (r *ApplicationRepo) Update(ctx context.Context, a *domain.Application) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE applications SET status = $1, decision_note = $2, updated_at = $3 WHERE id = $4`,
		a.Status, a.DecisionNote, a.UpdatedAt, a.ID,
	)
	return mustAffect("applicationRepo.Update", tag, err)
}

func scanApplication(row pgx.CollectableRow) (*domain.Application, error) {
	var a domain.Application
	err := row.Scan(
		&a.ID, &a.PropertyID, &a.UnitID, &a.ApplicantID, &a.ApplicantName, &a.ApplicantEmail, &a.Message,
		&a.Status, &a.DecisionNote, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
