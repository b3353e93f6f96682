package lease_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/lease"
	"github.com/gosuda/leasekeep/internal/ledger"
	"github.com/gosuda/leasekeep/internal/scope"
	"github.com/gosuda/leasekeep/internal/store/memory"
)

var now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // fixed test clock

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	f      *memory.Fixture
	svc    *lease.Service
	ledger *ledger.Ledger
	events *recordingPublisher
}

func setup(t *testing.T, policy domain.TenancyPolicy) *env {
	t.Helper()
	f, err := memory.Seed(context.Background(), now)
	require.NoError(t, err)
	clock := func() time.Time { return now }
	resolver := scope.NewResolver(f.Store)
	l := ledger.New(f.Store, resolver, policy, ledger.WithClock(clock))
	events := &recordingPublisher{}
	svc := lease.NewService(f.Store, resolver, l, lease.WithClock(clock), lease.WithEvents(events))
	return &env{f: f, svc: svc, ledger: l, events: events}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *env) newLease(t *testing.T, deposit string, start, end time.Time) *domain.Lease {
	t.Helper()
	l, err := e.svc.Create(context.Background(), e.f.Landlord, lease.NewLease{
		TenantID:  e.f.Tenant.ID,
		StartDate: start,
		EndDate:   end,
		Rent:      decimal.RequireFromString("1000"),
		Deposit:   decimal.RequireFromString(deposit),
	})
	require.NoError(t, err)
	return l
}

func (e *env) unitStatus(t *testing.T) domain.UnitStatus {
	t.Helper()
	u, err := e.f.Store.Units().GetByID(context.Background(), e.f.Unit.ID)
	require.NoError(t, err)
	return u.Status
}

func TestCreate(t *testing.T) {
	t.Parallel()

	valid := func(e *env) lease.NewLease {
		return lease.NewLease{
			TenantID:  e.f.Tenant.ID,
			StartDate: date(2026, 4, 1),
			EndDate:   date(2027, 3, 31),
			Rent:      decimal.RequireFromString("1000"),
			Deposit:   decimal.RequireFromString("500"),
		}
	}

	tests := []struct {
		name    string
		actor   func(e *env) domain.Principal
		mutate  func(in *lease.NewLease)
		wantErr error
	}{
		{name: "landlord", actor: func(e *env) domain.Principal { return e.f.Landlord }},
		{name: "admin", actor: func(e *env) domain.Principal { return e.f.Admin }},
		{
			name:    "tenant is forbidden",
			actor:   func(e *env) domain.Principal { return e.f.TenantUser },
			wantErr: domain.ErrForbidden,
		},
		{
			name: "other landlord is forbidden",
			actor: func(*env) domain.Principal {
				return domain.Principal{UserID: uuid.New(), Roles: []string{domain.RoleLandlord}}
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "end before start",
			actor:   func(e *env) domain.Principal { return e.f.Landlord },
			mutate:  func(in *lease.NewLease) { in.EndDate = date(2026, 3, 1) },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "zero rent",
			actor:   func(e *env) domain.Principal { return e.f.Landlord },
			mutate:  func(in *lease.NewLease) { in.Rent = decimal.Zero },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "negative deposit",
			actor:   func(e *env) domain.Principal { return e.f.Landlord },
			mutate:  func(in *lease.NewLease) { in.Deposit = decimal.RequireFromString("-1") },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "rent with sub-cent precision",
			actor:   func(e *env) domain.Principal { return e.f.Landlord },
			mutate:  func(in *lease.NewLease) { in.Rent = decimal.RequireFromString("950.001") },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "deposit beyond storage range",
			actor:   func(e *env) domain.Principal { return e.f.Landlord },
			mutate:  func(in *lease.NewLease) { in.Deposit = decimal.RequireFromString("1000000000000") },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown tenant",
			actor:   func(e *env) domain.Principal { return e.f.Landlord },
			mutate:  func(in *lease.NewLease) { in.TenantID = uuid.New() },
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := setup(t, domain.TenancyPolicy{})
			in := valid(e)
			if tt.mutate != nil {
				tt.mutate(&in)
			}

			got, err := e.svc.Create(context.Background(), tt.actor(e), in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.LeaseStatusPending, got.Status)
			assert.Equal(t, e.f.Unit.ID, got.UnitID)
			assert.Equal(t, e.f.Property.ID, got.PropertyID)
		})
	}
}

func TestActivate_RequiresDeposit(t *testing.T) {
	t.Parallel()
	e := setup(t, domain.TenancyPolicy{})
	ctx := context.Background()
	l := e.newLease(t, "500", date(2026, 3, 1), date(2027, 2, 28))

	_, err := e.svc.Activate(ctx, e.f.Landlord, l.ID)
	require.ErrorIs(t, err, domain.ErrInvalidLedgerState)

	got, err := e.svc.Get(ctx, e.f.Landlord, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseStatusPending, got.Status)
	assert.Equal(t, domain.UnitStatusAvailable, e.unitStatus(t))

	// The failed attempt rolls back the deposit charge with everything else.
	entries, err := e.f.Store.Ledger().ListByLease(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestActivate_ZeroDeposit(t *testing.T) {
	t.Parallel()
	e := setup(t, domain.TenancyPolicy{})
	ctx := context.Background()
	l := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))

	got, err := e.svc.Activate(ctx, e.f.Landlord, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseStatusActive, got.Status)
	require.NotNil(t, got.ActivatedAt)
	assert.Equal(t, domain.UnitStatusRented, e.unitStatus(t))
	assert.Equal(t, []string{"lease.active"}, e.events.types())

	pending := e.f.Store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.NotificationLeaseConfirmed, pending[0].Kind)
	assert.Equal(t, e.f.Tenant.Email, pending[0].Recipient)

	audit, err := e.f.Store.Audit().ListByResource(ctx, "lease", l.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(audit))
	for _, a := range audit {
		assert.Equal(t, e.f.Landlord.UserID, a.ActorID)
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{"lease.create", "lease.active"}, actions)

	_, err = e.svc.Activate(ctx, e.f.Landlord, l.ID)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
}

func TestActivate_BeforeStartDate(t *testing.T) {
	t.Parallel()
	e := setup(t, domain.TenancyPolicy{})
	l := e.newLease(t, "0", date(2026, 4, 1), date(2027, 3, 31))

	_, err := e.svc.Activate(context.Background(), e.f.Landlord, l.ID)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, e.events.types())
}

func TestTerminate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("active lease releases the unit", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{})
		l := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))
		_, err := e.svc.Activate(ctx, e.f.Landlord, l.ID)
		require.NoError(t, err)

		got, err := e.svc.Terminate(ctx, e.f.Landlord, l.ID, "moved out")
		require.NoError(t, err)
		assert.Equal(t, domain.LeaseStatusTerminated, got.Status)
		assert.Equal(t, "moved out", got.TerminationReason)
		require.NotNil(t, got.EndedAt)
		assert.Equal(t, domain.UnitStatusAvailable, e.unitStatus(t))
		assert.Equal(t, []string{"lease.active", "lease.terminated"}, e.events.types())
	})

	t.Run("unit held while balance is due", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{HoldUnitUntilSettled: true})
		l := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))
		_, err := e.svc.Activate(ctx, e.f.Landlord, l.ID)
		require.NoError(t, err)
		_, err = e.ledger.AccrueMonthlyCharge(ctx, e.f.Landlord, l.ID, "2026-03")
		require.NoError(t, err)

		_, err = e.svc.Terminate(ctx, e.f.Landlord, l.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.UnitStatusRented, e.unitStatus(t))
	})

	t.Run("pending lease cannot be terminated", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{})
		l := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))

		_, err := e.svc.Terminate(ctx, e.f.Landlord, l.ID, "")
		var te *domain.TransitionError
		require.ErrorAs(t, err, &te)
	})

	t.Run("staff is forbidden", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{})
		l := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))
		_, err := e.svc.Activate(ctx, e.f.Landlord, l.ID)
		require.NoError(t, err)

		_, err = e.svc.Terminate(ctx, e.f.StaffUser, l.ID, "")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestRenew(t *testing.T) {
	t.Parallel()
	e := setup(t, domain.TenancyPolicy{})
	ctx := context.Background()
	l := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))

	_, err := e.svc.Renew(ctx, e.f.Landlord, l.ID, date(2028, 2, 29))
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te, "pending leases cannot be renewed")

	_, err = e.svc.Activate(ctx, e.f.Landlord, l.ID)
	require.NoError(t, err)

	_, err = e.svc.Renew(ctx, e.f.Landlord, l.ID, date(2027, 2, 28))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := e.svc.Renew(ctx, e.f.Landlord, l.ID, date(2028, 2, 29))
	require.NoError(t, err)
	assert.Equal(t, date(2028, 2, 29), got.EndDate)
	assert.Equal(t, domain.LeaseStatusActive, got.Status)
	require.NotNil(t, got.RenewedAt)
}

func TestGet_TenantSeesOnlyOwnLease(t *testing.T) {
	t.Parallel()
	e := setup(t, domain.TenancyPolicy{})
	ctx := context.Background()

	unit, err := e.f.AddUnit(ctx, "2B", now)
	require.NoError(t, err)
	other, err := e.f.AddTenant(ctx, unit.ID, "other@example.com", now)
	require.NoError(t, err)

	mine := e.newLease(t, "0", date(2026, 3, 1), date(2027, 2, 28))
	theirs, err := e.svc.Create(ctx, e.f.Landlord, lease.NewLease{
		TenantID: other.ID, StartDate: date(2026, 3, 1), EndDate: date(2027, 2, 28),
		Rent: decimal.RequireFromString("900"),
	})
	require.NoError(t, err)

	_, err = e.svc.Get(ctx, e.f.TenantUser, mine.ID)
	require.NoError(t, err)
	_, err = e.svc.Get(ctx, e.f.TenantUser, theirs.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func activeLease(t *testing.T, e *env, start, end time.Time) *domain.Lease {
	t.Helper()
	ctx := context.Background()
	l := &domain.Lease{
		ID: uuid.New(), TenantID: e.f.Tenant.ID, UnitID: e.f.Unit.ID, PropertyID: e.f.Property.ID,
		StartDate: start, EndDate: end,
		Rent: decimal.RequireFromString("1000"), Deposit: decimal.Zero,
		Status: domain.LeaseStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.f.Store.Leases().Create(ctx, l))
	require.NoError(t, e.f.Store.Units().UpdateStatus(ctx, e.f.Unit.ID, domain.UnitStatusRented))
	return l
}

func TestExpireDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("expires leases past their end date", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{})
		due := activeLease(t, e, date(2025, 3, 11), date(2026, 3, 10))

		report, err := e.svc.ExpireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, lease.ExpiryReport{Expired: 1}, report)

		got, err := e.f.Store.Leases().GetByID(ctx, due.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LeaseStatusExpired, got.Status)
		assert.Equal(t, domain.UnitStatusAvailable, e.unitStatus(t))
		assert.Equal(t, []string{"lease.expired"}, e.events.types())

		report, err = e.svc.ExpireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, lease.ExpiryReport{}, report)
	})

	t.Run("end date today is not due", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{})
		activeLease(t, e, date(2025, 3, 16), date(2026, 3, 15))

		report, err := e.svc.ExpireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, lease.ExpiryReport{}, report)
	})

	t.Run("auto renew extends by the original term", func(t *testing.T) {
		t.Parallel()
		e := setup(t, domain.TenancyPolicy{AutoRenew: true})
		due := activeLease(t, e, date(2025, 3, 11), date(2026, 3, 10))

		report, err := e.svc.ExpireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, lease.ExpiryReport{Renewed: 1}, report)

		got, err := e.f.Store.Leases().GetByID(ctx, due.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LeaseStatusActive, got.Status)
		assert.Equal(t, date(2027, 3, 10), got.EndDate)
		assert.Equal(t, domain.UnitStatusRented, e.unitStatus(t))
	})
}

func TestExpireDue_ConsecutiveRenewals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f, err := memory.Seed(ctx, now)
	require.NoError(t, err)
	current := now
	clock := func() time.Time { return current }
	resolver := scope.NewResolver(f.Store)
	l := ledger.New(f.Store, resolver, domain.TenancyPolicy{AutoRenew: true}, ledger.WithClock(clock))
	svc := lease.NewService(f.Store, resolver, l, lease.WithClock(clock))

	created, err := svc.Create(ctx, f.Landlord, lease.NewLease{
		TenantID:  f.Tenant.ID,
		StartDate: date(2025, 3, 11),
		EndDate:   date(2026, 3, 10),
		Rent:      decimal.RequireFromString("1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, created.Term)

	created.Status = domain.LeaseStatusActive
	require.NoError(t, f.Store.Leases().Update(ctx, created))

	wantEnds := []time.Time{date(2027, 3, 10), date(2028, 3, 10)}
	for i, want := range wantEnds {
		report, err := svc.ExpireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, lease.ExpiryReport{Renewed: 1}, report, "renewal %d", i+1)

		got, err := f.Store.Leases().GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.EndDate, "renewal %d", i+1)
		assert.Equal(t, 12, got.Term)

		current = want.AddDate(0, 0, 2)
	}
}

func TestActivate_UnknownLease(t *testing.T) {
	t.Parallel()
	e := setup(t, domain.TenancyPolicy{})

	_, err := e.svc.Activate(context.Background(), e.f.Landlord, uuid.New())
	require.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}
