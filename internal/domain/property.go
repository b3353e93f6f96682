package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Property is the root of the authorization tree. UserID (the landlord) never
// changes after creation.
type Property struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UnitStatus string

const (
	UnitStatusAvailable   UnitStatus = "available"
	UnitStatusRented      UnitStatus = "rented"
	UnitStatusMaintenance UnitStatus = "maintenance"
)

type Unit struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	Number     string
	Status     UnitStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Tenant is a renter. UserID links the tenant to a login and is nil for
// tenants managed entirely by their landlord.
type Tenant struct {
	ID        uuid.UUID
	UnitID    uuid.UUID
	UserID    *uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Tenant) FullName() string {
	if t.LastName == "" {
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}

type Staff struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	UserID     uuid.UUID
	Name       string
	Email      string
	CreatedAt  time.Time
}

type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	CreatedAt time.Time
}

type PropertyRepository interface {
	Create(ctx context.Context, p *Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*Property, error)
	ListIDsByOwner(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type UnitRepository interface {
	Create(ctx context.Context, u *Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UnitStatus) error
}

type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Tenant, error)
}

type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Staff, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
