package v1_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/leasekeep/internal/api/v1"
	"github.com/gosuda/leasekeep/internal/application"
	"github.com/gosuda/leasekeep/internal/domain"
)

func TestApplicationRoutes(t *testing.T) {
	t.Parallel()

	unitID := uuid.New()
	appID := uuid.New()
	ctx, _ := landlordCtx()
	_, api := humatest.New(t)
	svc := &mockApplicationService{
		submitFunc: func(_ context.Context, _ domain.Principal, in application.NewApplication) (*domain.Application, error) {
			assert.Equal(t, unitID, in.UnitID)
			assert.Equal(t, "ana@example.com", in.ApplicantEmail)
			return &domain.Application{ID: appID, UnitID: unitID, Status: domain.ApplicationStatusSubmitted}, nil
		},
		approveFunc: func(_ context.Context, _ domain.Principal, id uuid.UUID, note string) (*domain.Application, error) {
			assert.Equal(t, appID, id)
			assert.Equal(t, "welcome", note)
			return &domain.Application{ID: id, Status: domain.ApplicationStatusApproved}, nil
		},
		denyFunc: func(_ context.Context, _ domain.Principal, id uuid.UUID, _ string) (*domain.Application, error) {
			return nil, &domain.TransitionError{Entity: "application", From: "approved", To: "denied"}
		},
	}
	v1.RegisterApplicationRoutes(api, svc)

	resp := api.PostCtx(ctx, "/applications", map[string]any{
		"unit_id":         unitID.String(),
		"applicant_name":  "Ana Applicant",
		"applicant_email": "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = api.PostCtx(ctx, "/applications/"+appID.String()+"/approve", map[string]any{"note": "welcome"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = api.PostCtx(ctx, "/applications/"+appID.String()+"/deny", map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestSubmitApplication_InvalidEmail(t *testing.T) {
	t.Parallel()

	ctx, _ := landlordCtx()
	_, api := humatest.New(t)
	v1.RegisterApplicationRoutes(api, &mockApplicationService{})

	resp := api.PostCtx(ctx, "/applications", map[string]any{
		"unit_id":         uuid.NewString(),
		"applicant_name":  "Ana",
		"applicant_email": "not-an-email",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
