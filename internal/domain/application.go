package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusDenied    ApplicationStatus = "denied"
)

func (s ApplicationStatus) ValidTransition(to ApplicationStatus) bool {
	return s == ApplicationStatusSubmitted &&
		(to == ApplicationStatusApproved || to == ApplicationStatusDenied)
}

// Application is a prospective tenant's request to rent a unit.
type Application struct {
	ID             uuid.UUID
	PropertyID     uuid.UUID
	UnitID         uuid.UUID
	ApplicantID    uuid.UUID
	ApplicantName  string
	ApplicantEmail string
	Message        string
	Status         ApplicationStatus
	DecisionNote   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ApplicationRepository interface {
	Create(ctx context.Context, a *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Application, error)
	Update(ctx context.Context, a *Application) error
}
