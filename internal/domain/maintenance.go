package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MaintenanceStatus string

const (
	MaintenanceStatusOpen       MaintenanceStatus = "open"
	MaintenanceStatusAssigned   MaintenanceStatus = "assigned"
	MaintenanceStatusInProgress MaintenanceStatus = "in_progress"
	MaintenanceStatusCompleted  MaintenanceStatus = "completed"
	MaintenanceStatusCancelled  MaintenanceStatus = "cancelled"
)

// ValidTransition checks if a maintenance state transition is allowed.
// Allowed: open->assigned, assigned->in_progress, in_progress->completed,
// open->cancelled, assigned->cancelled. Work in progress cannot be cancelled.
func (s MaintenanceStatus) ValidTransition(to MaintenanceStatus) bool {
	switch s {
	case MaintenanceStatusOpen:
		return to == MaintenanceStatusAssigned || to == MaintenanceStatusCancelled
	case MaintenanceStatusAssigned:
		return to == MaintenanceStatusInProgress || to == MaintenanceStatusCancelled
	case MaintenanceStatusInProgress:
		return to == MaintenanceStatusCompleted
	default:
		return false
	}
}

type MaintenancePriority string

const (
	MaintenancePriorityLow    MaintenancePriority = "low"
	MaintenancePriorityMedium MaintenancePriority = "medium"
	MaintenancePriorityHigh   MaintenancePriority = "high"
)

type MaintenanceRequest struct {
	ID          uuid.UUID
	PropertyID  uuid.UUID
	UnitID      uuid.UUID
	TenantID    uuid.UUID
	StaffID     *uuid.UUID
	Title       string
	Description string
	Priority    MaintenancePriority
	Status      MaintenanceStatus
	RequestedAt time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type MaintenanceRepository interface {
	Create(ctx context.Context, m *MaintenanceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*MaintenanceRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*MaintenanceRequest, error)
	Update(ctx context.Context, m *MaintenanceRequest) error
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*MaintenanceRequest, error)
}
