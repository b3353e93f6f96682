package payment_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/lease"
	"github.com/gosuda/leasekeep/internal/ledger"
	"github.com/gosuda/leasekeep/internal/payment"
	"github.com/gosuda/leasekeep/internal/scope"
	"github.com/gosuda/leasekeep/internal/store/memory"
)

var start = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // fixed test clock

type mockGateway struct {
	createFunc func(req payment.ChargeRequest) (*payment.Charge, error)
	statusFunc func(ref string) (domain.GatewayStatus, error)
	calls      atomic.Int32
}

func (m *mockGateway) CreateCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	m.calls.Add(1)
	if m.createFunc != nil {
		return m.createFunc(req)
	}
	return &payment.Charge{Token: "snap-" + req.Reference, RedirectURL: "https://pay.example.com/" + req.Reference}, nil
}

func (m *mockGateway) Status(_ context.Context, ref string) (domain.GatewayStatus, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ref)
	}
	return domain.GatewayStatusPending, nil
}

type env struct {
	f       *memory.Fixture
	svc     *payment.Service
	ledger  *ledger.Ledger
	gateway *mockGateway
	clock   *time.Time
}

func setup(t *testing.T) *env {
	t.Helper()
	f, err := memory.Seed(context.Background(), start)
	require.NoError(t, err)

	current := start
	clock := func() time.Time { return current }
	resolver := scope.NewResolver(f.Store)
	l := ledger.New(f.Store, resolver, domain.TenancyPolicy{}, ledger.WithClock(clock))
	leases := lease.NewService(f.Store, resolver, l, lease.WithClock(clock))
	gw := &mockGateway{}
	svc := payment.NewService(f.Store, resolver, l, leases, gw,
		payment.WithClock(clock),
		payment.WithStaleAfter(24*time.Hour),
	)
	return &env{f: f, svc: svc, ledger: l, gateway: gw, clock: &current}
}

func (e *env) addLease(t *testing.T, status domain.LeaseStatus, rent, deposit string) *domain.Lease {
	t.Helper()
	l := &domain.Lease{
		ID: uuid.New(), TenantID: e.f.Tenant.ID, UnitID: e.f.Unit.ID, PropertyID: e.f.Property.ID,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC),
		Rent:      decimal.RequireFromString(rent),
		Deposit:   decimal.RequireFromString(deposit),
		Status:    status, CreatedAt: start, UpdatedAt: start,
	}
	require.NoError(t, e.f.Store.Leases().Create(context.Background(), l))
	return l
}

func (e *env) balance(t *testing.T, leaseID uuid.UUID) domain.Balance {
	t.Helper()
	bal, err := ledger.Balance(context.Background(), e.f.Store, leaseID)
	require.NoError(t, err)
	return bal
}

func (e *env) paymentEntries(t *testing.T, leaseID uuid.UUID) int {
	t.Helper()
	entries, err := e.f.Store.Ledger().ListByLease(context.Background(), leaseID)
	require.NoError(t, err)
	n := 0
	for _, en := range entries {
		if en.Kind == domain.LedgerEntryPayment {
			n++
		}
	}
	return n
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInitiate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("records a pending payment", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

		pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPending, pay.Status)
		assert.NotEmpty(t, pay.GatewayReference)
		assert.Equal(t, "snap-"+pay.GatewayReference, pay.GatewayToken)
		assert.Equal(t, e.f.Tenant.ID, pay.TenantID)
		assert.Equal(t, 0, e.paymentEntries(t, l.ID), "initiation must not touch the ledger")

		got, err := e.svc.Get(ctx, e.f.Landlord, pay.GatewayReference)
		require.NoError(t, err)
		assert.Equal(t, pay.ID, got.ID)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

		for _, a := range []string{"0", "-5"} {
			_, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount(a))
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		}
		assert.Zero(t, e.gateway.calls.Load())
	})

	t.Run("gateway failure leaves nothing behind", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")
		e.gateway.createFunc = func(payment.ChargeRequest) (*payment.Charge, error) {
			return nil, errors.New("connection reset")
		}

		_, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
		require.ErrorIs(t, err, domain.ErrExternalUnavailable)

		pays, err := e.f.Store.Payments().ListByLease(ctx, l.ID)
		require.NoError(t, err)
		assert.Empty(t, pays)
	})

	t.Run("other tenant is forbidden", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		unit, err := e.f.AddUnit(ctx, "2B", start)
		require.NoError(t, err)
		other, err := e.f.AddTenant(ctx, unit.ID, "other@example.com", start)
		require.NoError(t, err)
		l := &domain.Lease{
			ID: uuid.New(), TenantID: other.ID, UnitID: unit.ID, PropertyID: e.f.Property.ID,
			StartDate: start, EndDate: start.AddDate(1, 0, 0), Rent: amount("800"),
			Status: domain.LeaseStatusActive, CreatedAt: start, UpdatedAt: start,
		}
		require.NoError(t, e.f.Store.Leases().Create(ctx, l))

		_, err = e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("800"))
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("deposit covered by payments in flight", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		l := e.addLease(t, domain.LeaseStatusPending, "950", "700")

		first, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("300"))
		require.NoError(t, err)
		second, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("400"))
		require.NoError(t, err)

		_, err = e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("700"))
		require.ErrorIs(t, err, domain.ErrInvalidLedgerState)
		assert.Equal(t, int32(2), e.gateway.calls.Load())

		// Both payments already in flight still reconcile.
		for _, ref := range []string{first.GatewayReference, second.GatewayReference} {
			res, err := e.svc.Confirm(ctx, domain.SystemPrincipal(), ref, domain.GatewayStatusSuccess)
			require.NoError(t, err)
			assert.True(t, res.Applied)
		}
		assert.Equal(t, 2, e.paymentEntries(t, l.ID))
		assert.True(t, e.balance(t, l.ID).Signed.IsZero(), "balance = %s", e.balance(t, l.ID).Signed)

		got, err := e.f.Store.Leases().GetByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LeaseStatusActive, got.Status)
	})

	t.Run("amount beyond two decimals or storage range", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

		for _, a := range []string{"10.001", "1000000000000"} {
			_, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount(a))
			require.ErrorIs(t, err, domain.ErrInvalidInput, a)
		}
		assert.Zero(t, e.gateway.calls.Load())
	})

	t.Run("ended lease is not payable", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		l := e.addLease(t, domain.LeaseStatusExpired, "1000", "0")

		_, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
		require.ErrorIs(t, err, domain.ErrInvalidLedgerState)
	})
}

func TestConfirm_AppliesOnce(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")
	_, err := e.ledger.AccrueMonthlyCharge(ctx, e.f.Landlord, l.ID, "2026-03")
	require.NoError(t, err)

	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	res, err := e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusSuccess)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusConfirmed, res.Payment.Status)
	require.NotNil(t, res.Payment.ConfirmedAt)

	for range 3 {
		res, err = e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusSuccess)
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, domain.PaymentStatusConfirmed, res.Payment.Status)
	}

	// A late failure notification does not undo a confirmed payment.
	res, err = e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusFailure)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, res.Payment.Status)

	assert.Equal(t, 1, e.paymentEntries(t, l.ID))
	assert.True(t, e.balance(t, l.ID).Signed.IsZero())

	receipts := 0
	for _, n := range e.f.Store.Pending() {
		if n.Kind == domain.NotificationPaymentReceived {
			receipts++
		}
	}
	assert.Equal(t, 1, receipts)
}

func TestConfirm_Concurrent(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)
	e.gateway.statusFunc = func(string) (domain.GatewayStatus, error) { return domain.GatewayStatusSuccess, nil }

	const callers = 16
	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	errs := make(chan error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Webhook deliveries race the tenant's client callback.
			var (
				res        *payment.ConfirmResult
				confirmErr error
			)
			if i%2 == 0 {
				res, confirmErr = e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusSuccess)
			} else {
				res, confirmErr = e.svc.Sync(ctx, e.f.TenantUser, pay.GatewayReference)
			}
			if confirmErr != nil {
				errs <- confirmErr
				return
			}
			if res.Applied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, 1, e.paymentEntries(t, l.ID))
	assert.True(t, e.balance(t, l.ID).Signed.Equal(amount("-1000")))
}

func TestConfirm_DepositActivatesLease(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusPending, "950", "700")

	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("700"))
	require.NoError(t, err)

	res, err := e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusSuccess)
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.True(t, e.balance(t, l.ID).Signed.IsZero(), "balance = %s", e.balance(t, l.ID).Signed)

	got, err := e.f.Store.Leases().GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseStatusActive, got.Status)

	unit, err := e.f.Store.Units().GetByID(ctx, e.f.Unit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusRented, unit.Status)

	_, err = e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusSuccess)
	require.NoError(t, err)
	assert.True(t, e.balance(t, l.ID).Signed.IsZero(), "a replay must not post the payment twice")
}

func TestConfirm_Failure(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	res, err := e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusFailure)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusFailed, res.Payment.Status)
	require.NotNil(t, res.Payment.FailedAt)

	for _, status := range []domain.GatewayStatus{domain.GatewayStatusSuccess, domain.GatewayStatusFailure} {
		_, err = e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, status)
		require.ErrorIs(t, err, domain.ErrAlreadyFailed)
	}
	assert.Equal(t, 0, e.paymentEntries(t, l.ID))
}

func TestConfirm_PendingIsNoop(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	res, err := e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, domain.GatewayStatusPending)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
}

func TestSync_TrustsOnlyTheGateway(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")
	_, err := e.ledger.AccrueMonthlyCharge(ctx, e.f.Landlord, l.ID, "2026-03")
	require.NoError(t, err)

	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	// A tenant cannot assert its own payment succeeded.
	_, err = e.svc.Confirm(ctx, e.f.TenantUser, pay.GatewayReference, domain.GatewayStatusSuccess)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.svc.Confirm(ctx, e.f.Landlord, pay.GatewayReference, domain.GatewayStatusSuccess)
	require.ErrorIs(t, err, domain.ErrForbidden)

	var asked []string
	gatewayStatus := domain.GatewayStatusPending
	e.gateway.statusFunc = func(ref string) (domain.GatewayStatus, error) {
		asked = append(asked, ref)
		return gatewayStatus, nil
	}

	res, err := e.svc.Sync(ctx, e.f.TenantUser, pay.GatewayReference)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, 0, e.paymentEntries(t, l.ID))
	assert.True(t, e.balance(t, l.ID).Signed.Equal(amount("1000")))

	gatewayStatus = domain.GatewayStatusSuccess
	res, err = e.svc.Sync(ctx, e.f.TenantUser, pay.GatewayReference)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusConfirmed, res.Payment.Status)

	res, err = e.svc.Sync(ctx, e.f.TenantUser, pay.GatewayReference)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	assert.Equal(t, []string{pay.GatewayReference, pay.GatewayReference, pay.GatewayReference}, asked)
	assert.Equal(t, 1, e.paymentEntries(t, l.ID))
	assert.True(t, e.balance(t, l.ID).Signed.IsZero())
}

func TestSync_Rejections(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")
	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	_, err = e.svc.Sync(ctx, e.f.TenantUser, "lk-unknown")
	require.ErrorIs(t, err, domain.ErrUnknownPayment)

	e.gateway.statusFunc = func(string) (domain.GatewayStatus, error) {
		return "", errors.New("connection reset")
	}
	_, err = e.svc.Sync(ctx, e.f.TenantUser, pay.GatewayReference)
	require.ErrorIs(t, err, domain.ErrExternalUnavailable)

	assert.Equal(t, 0, e.paymentEntries(t, l.ID))
}

func TestConfirm_Rejections(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")
	pay, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	_, err = e.svc.Confirm(ctx, domain.SystemPrincipal(), "lk-unknown", domain.GatewayStatusSuccess)
	require.ErrorIs(t, err, domain.ErrUnknownPayment)

	_, err = e.svc.Confirm(ctx, domain.SystemPrincipal(), pay.GatewayReference, "settled")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.svc.Confirm(ctx, e.f.StaffUser, pay.GatewayReference, domain.GatewayStatusSuccess)
	require.ErrorIs(t, err, domain.ErrForbidden)

	assert.Equal(t, 0, e.paymentEntries(t, l.ID))
}

func TestExpireStale(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx := context.Background()
	l := e.addLease(t, domain.LeaseStatusActive, "1000", "0")

	old, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("1000"))
	require.NoError(t, err)

	*e.clock = start.Add(20 * time.Hour)
	fresh, err := e.svc.Initiate(ctx, e.f.TenantUser, l.ID, amount("500"))
	require.NoError(t, err)

	*e.clock = start.Add(25 * time.Hour)
	n, err := e.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.svc.Get(ctx, e.f.TenantUser, old.GatewayReference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusExpired, got.Status)

	got, err = e.svc.Get(ctx, e.f.TenantUser, fresh.GatewayReference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)

	// The gateway may still settle an expired payment.
	res, err := e.svc.Confirm(ctx, domain.SystemPrincipal(), old.GatewayReference, domain.GatewayStatusSuccess)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, domain.PaymentStatusConfirmed, res.Payment.Status)

	n, err = e.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
