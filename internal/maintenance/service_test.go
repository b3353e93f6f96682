package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/maintenance"
	"github.com/gosuda/leasekeep/internal/scope"
	"github.com/gosuda/leasekeep/internal/store/memory"
)

var now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // fixed test clock

func setup(t *testing.T) (*memory.Fixture, *maintenance.Service) {
	t.Helper()
	f, err := memory.Seed(context.Background(), now)
	require.NoError(t, err)
	svc := maintenance.NewService(f.Store, scope.NewResolver(f.Store),
		maintenance.WithClock(func() time.Time { return now }))
	return f, svc
}

func submit(t *testing.T, f *memory.Fixture, svc *maintenance.Service) *domain.MaintenanceRequest {
	t.Helper()
	m, err := svc.Submit(context.Background(), f.TenantUser, maintenance.NewRequest{
		Title:       "Leaking tap",
		Description: "Kitchen tap drips all night",
	})
	require.NoError(t, err)
	return m
}

func TestSubmit(t *testing.T) {
	t.Parallel()
	f, svc := setup(t)

	m := submit(t, f, svc)
	assert.Equal(t, domain.MaintenanceStatusOpen, m.Status)
	assert.Equal(t, domain.MaintenancePriorityMedium, m.Priority)
	assert.Equal(t, f.Tenant.ID, m.TenantID)
	assert.Equal(t, f.Unit.ID, m.UnitID)
	assert.Equal(t, f.Property.ID, m.PropertyID)
	assert.Nil(t, m.CompletedAt)
}

func TestSubmit_Rejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing title", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		_, err := svc.Submit(ctx, f.TenantUser, maintenance.NewRequest{})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown priority", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		_, err := svc.Submit(ctx, f.TenantUser, maintenance.NewRequest{Title: "x", Priority: "urgent"})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("tenant cannot file for another tenant", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		unit, err := f.AddUnit(ctx, "2B", now)
		require.NoError(t, err)
		other, err := f.AddTenant(ctx, unit.ID, "other@example.com", now)
		require.NoError(t, err)

		_, err = svc.Submit(ctx, f.TenantUser, maintenance.NewRequest{TenantID: other.ID, Title: "Broken window"})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("landlord cannot submit", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		_, err := svc.Submit(ctx, f.Landlord, maintenance.NewRequest{TenantID: f.Tenant.ID, Title: "Broken window"})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	f, svc := setup(t)
	ctx := context.Background()
	m := submit(t, f, svc)

	m, err := svc.Assign(ctx, f.Landlord, m.ID, f.Staff.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceStatusAssigned, m.Status)
	require.NotNil(t, m.StaffID)
	assert.Equal(t, f.Staff.ID, *m.StaffID)

	m, err = svc.Start(ctx, f.StaffUser, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceStatusInProgress, m.Status)

	_, err = svc.Cancel(ctx, f.Landlord, m.ID)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te, "in progress requests cannot be cancelled")

	m, err = svc.Complete(ctx, f.StaffUser, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceStatusCompleted, m.Status)
	require.NotNil(t, m.CompletedAt)
	assert.Equal(t, now, *m.CompletedAt)

	for _, op := range []func(context.Context, domain.Principal, uuid.UUID) (*domain.MaintenanceRequest, error){
		svc.Start, svc.Complete, svc.Cancel,
	} {
		_, err = op(ctx, f.Admin, m.ID)
		require.ErrorAs(t, err, &te)
	}

	var statuses []string
	for _, n := range f.Store.Pending() {
		if n.Kind == domain.NotificationMaintenanceStatus {
			statuses = append(statuses, n.Data["status"])
		}
	}
	assert.ElementsMatch(t, []string{"assigned", "in_progress", "completed"}, statuses)
}

func TestAssign_InvalidStaff(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown staff", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		m := submit(t, f, svc)
		_, err := svc.Assign(ctx, f.Landlord, m.ID, uuid.New())
		require.ErrorIs(t, err, domain.ErrInvalidAssignment)
	})

	t.Run("staff of another property", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		m := submit(t, f, svc)

		otherProperty := &domain.Property{ID: uuid.New(), UserID: uuid.New(), Name: "Birch Hall", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, f.Store.Properties().Create(ctx, otherProperty))
		outsider := &domain.Staff{ID: uuid.New(), PropertyID: otherProperty.ID, UserID: uuid.New(), Name: "Olly", CreatedAt: now}
		require.NoError(t, f.Store.Staff().Create(ctx, outsider))

		_, err := svc.Assign(ctx, f.Landlord, m.ID, outsider.ID)
		require.ErrorIs(t, err, domain.ErrInvalidAssignment)

		got, err := svc.Get(ctx, f.Landlord, m.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MaintenanceStatusOpen, got.Status)
		assert.Nil(t, got.StaffID)
	})

	t.Run("staff cannot assign", func(t *testing.T) {
		t.Parallel()
		f, svc := setup(t)
		m := submit(t, f, svc)
		_, err := svc.Assign(ctx, f.StaffUser, m.ID, f.Staff.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestListByProperty(t *testing.T) {
	t.Parallel()
	f, svc := setup(t)
	ctx := context.Background()

	unit, err := f.AddUnit(ctx, "2B", now)
	require.NoError(t, err)
	other, err := f.AddTenant(ctx, unit.ID, "other@example.com", now)
	require.NoError(t, err)

	mine := submit(t, f, svc)
	_, err = svc.Submit(ctx, f.Admin, maintenance.NewRequest{TenantID: other.ID, Title: "Heater"})
	require.NoError(t, err)

	all, err := svc.ListByProperty(ctx, f.Landlord, f.Property.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	all, err = svc.ListByProperty(ctx, f.StaffUser, f.Property.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := svc.ListByProperty(ctx, f.TenantUser, f.Property.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	stranger := domain.Principal{UserID: uuid.New(), Roles: []string{domain.RoleLandlord}}
	_, err = svc.ListByProperty(ctx, stranger, f.Property.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}
