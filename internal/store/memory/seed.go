package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

// Fixture is one seeded property: a landlord, an available unit with a tenant
// who can log in, a staff member, and an admin. Tests across packages build
// on it.
type Fixture struct {
	Store *Store

	Admin      domain.Principal
	Landlord   domain.Principal
	TenantUser domain.Principal
	StaffUser  domain.Principal

	Property *domain.Property
	Unit     *domain.Unit
	Tenant   *domain.Tenant
	Staff    *domain.Staff
}

// Seed creates a fresh store holding one Fixture.
func Seed(ctx context.Context, now time.Time) (*Fixture, error) {
	f := &Fixture{Store: New()}
	if err := f.seed(ctx, now); err != nil {
		return nil, fmt.Errorf("memory.Seed: %w", err)
	}
	return f, nil
}

func (f *Fixture) seed(ctx context.Context, now time.Time) error {
	landlordID, tenantUserID, staffUserID := uuid.New(), uuid.New(), uuid.New()
	f.Admin = domain.Principal{UserID: uuid.New(), Roles: []string{domain.RoleAdmin}}
	f.Landlord = domain.Principal{UserID: landlordID, Roles: []string{domain.RoleLandlord}}
	f.TenantUser = domain.Principal{UserID: tenantUserID, Roles: []string{domain.RoleTenant}}
	f.StaffUser = domain.Principal{UserID: staffUserID, Roles: []string{domain.RoleStaff}}

	for _, u := range []*domain.User{
		{ID: landlordID, Email: "landlord@example.com", Name: "Lana Lord", CreatedAt: now},
		{ID: tenantUserID, Email: "tenant@example.com", Name: "Tom Tenant", CreatedAt: now},
		{ID: staffUserID, Email: "staff@example.com", Name: "Sam Staff", CreatedAt: now},
	} {
		if err := f.Store.Users().Create(ctx, u); err != nil {
			return err
		}
	}

	f.Property = &domain.Property{ID: uuid.New(), UserID: landlordID, Name: "Maple Court", Address: "1 Maple St", CreatedAt: now, UpdatedAt: now}
	if err := f.Store.Properties().Create(ctx, f.Property); err != nil {
		return err
	}

	var err error
	if f.Unit, err = f.AddUnit(ctx, "1A", now); err != nil {
		return err
	}

	f.Tenant = &domain.Tenant{
		ID: uuid.New(), UnitID: f.Unit.ID, UserID: &tenantUserID,
		FirstName: "Tom", LastName: "Tenant", Email: "tenant@example.com", Phone: "+6281100000",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := f.Store.Tenants().Create(ctx, f.Tenant); err != nil {
		return err
	}

	f.Staff = &domain.Staff{ID: uuid.New(), PropertyID: f.Property.ID, UserID: staffUserID, Name: "Sam Staff", Email: "staff@example.com", CreatedAt: now}
	return f.Store.Staff().Create(ctx, f.Staff)
}

// AddUnit adds an available unit to the fixture property.
func (f *Fixture) AddUnit(ctx context.Context, number string, now time.Time) (*domain.Unit, error) {
	u := &domain.Unit{ID: uuid.New(), PropertyID: f.Property.ID, Number: number, Status: domain.UnitStatusAvailable, CreatedAt: now, UpdatedAt: now}
	if err := f.Store.Units().Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AddTenant adds a tenant without a login on the given unit.
func (f *Fixture) AddTenant(ctx context.Context, unitID uuid.UUID, email string, now time.Time) (*domain.Tenant, error) {
	t := &domain.Tenant{ID: uuid.New(), UnitID: unitID, FirstName: "Other", LastName: "Tenant", Email: email, CreatedAt: now, UpdatedAt: now}
	if err := f.Store.Tenants().Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
