package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/leasekeep/internal/application"
	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/scope"
	"github.com/gosuda/leasekeep/internal/store/memory"
)

var now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // fixed test clock

func setup(t *testing.T) (*memory.Fixture, *application.Service) {
	t.Helper()
	f, err := memory.Seed(context.Background(), now)
	require.NoError(t, err)
	svc := application.NewService(f.Store, scope.NewResolver(f.Store),
		application.WithClock(func() time.Time { return now }))
	return f, svc
}

func apply(t *testing.T, f *memory.Fixture, svc *application.Service) *domain.Application {
	t.Helper()
	applicant := domain.Principal{UserID: uuid.New()}
	a, err := svc.Submit(context.Background(), applicant, application.NewApplication{
		UnitID:         f.Unit.ID,
		ApplicantName:  "Ann Applicant",
		ApplicantEmail: "ann@example.com",
		Message:        "Looking for a one year lease",
	})
	require.NoError(t, err)
	return a
}

func TestSubmit_NotifiesLandlord(t *testing.T) {
	t.Parallel()
	f, svc := setup(t)

	a := apply(t, f, svc)
	assert.Equal(t, domain.ApplicationStatusSubmitted, a.Status)
	assert.Equal(t, f.Property.ID, a.PropertyID)

	pending := f.Store.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.NotificationApplicationSubmitted, pending[0].Kind)
	assert.Equal(t, "landlord@example.com", pending[0].Recipient)
	assert.Equal(t, "Ann Applicant", pending[0].Data["applicant_name"])
}

func TestSubmit_Invalid(t *testing.T) {
	t.Parallel()
	f, svc := setup(t)
	ctx := context.Background()
	p := domain.Principal{UserID: uuid.New()}

	_, err := svc.Submit(ctx, p, application.NewApplication{UnitID: f.Unit.ID, ApplicantName: "Ann", ApplicantEmail: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Submit(ctx, p, application.NewApplication{UnitID: uuid.New(), ApplicantName: "Ann", ApplicantEmail: "ann@example.com"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		decide   func(svc *application.Service) func(context.Context, domain.Principal, uuid.UUID, string) (*domain.Application, error)
		wantKind domain.NotificationKind
		want     domain.ApplicationStatus
	}{
		{
			name: "approve",
			decide: func(svc *application.Service) func(context.Context, domain.Principal, uuid.UUID, string) (*domain.Application, error) {
				return svc.Approve
			},
			wantKind: domain.NotificationApplicationApproved,
			want:     domain.ApplicationStatusApproved,
		},
		{
			name: "deny",
			decide: func(svc *application.Service) func(context.Context, domain.Principal, uuid.UUID, string) (*domain.Application, error) {
				return svc.Deny
			},
			wantKind: domain.NotificationApplicationDenied,
			want:     domain.ApplicationStatusDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, svc := setup(t)
			a := apply(t, f, svc)
			decide := tt.decide(svc)

			_, err := decide(ctx, f.StaffUser, a.ID, "")
			require.ErrorIs(t, err, domain.ErrForbidden)

			got, err := decide(ctx, f.Landlord, a.ID, "see you soon")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, "see you soon", got.DecisionNote)

			_, err = svc.Approve(ctx, f.Landlord, a.ID, "")
			var te *domain.TransitionError
			require.ErrorAs(t, err, &te)

			var kinds []domain.NotificationKind
			for _, n := range f.Store.Pending() {
				kinds = append(kinds, n.Kind)
			}
			assert.Contains(t, kinds, tt.wantKind)
		})
	}
}
