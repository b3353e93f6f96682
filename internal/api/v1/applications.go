package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/application"
	"github.com/gosuda/leasekeep/internal/domain"
)

type SubmitApplicationInput struct {
	Body struct {
		UnitID         uuid.UUID `json:"unit_id" doc:"Unit applied for"`
		ApplicantName  string    `json:"applicant_name" minLength:"1" maxLength:"200"`
		ApplicantEmail string    `json:"applicant_email" format:"email"`
		Message        string    `json:"message,omitempty" maxLength:"2000"`
	}
}

type DecideApplicationInput struct {
	ID   uuid.UUID `path:"id" doc:"Application ID"`
	Body struct {
		Note string `json:"note,omitempty" maxLength:"2000" doc:"Message passed on to the applicant"`
	}
}

type ApplicationOutput struct {
	Body *domain.Application
}

func RegisterApplicationRoutes(api huma.API, svc ApplicationService) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Apply for a unit",
		Tags:          []string{"Applications"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SubmitApplicationInput) (*ApplicationOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		a, err := svc.Submit(ctx, p, application.NewApplication{
			UnitID:         input.Body.UnitID,
			ApplicantName:  input.Body.ApplicantName,
			ApplicantEmail: input.Body.ApplicantEmail,
			Message:        input.Body.Message,
		})
		if err != nil {
			return nil, toHTTPError("submit application", err)
		}
		return &ApplicationOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/approve",
		Summary:     "Approve a rental application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *DecideApplicationInput) (*ApplicationOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		a, err := svc.Approve(ctx, p, input.ID, input.Body.Note)
		if err != nil {
			return nil, toHTTPError("approve application", err)
		}
		return &ApplicationOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deny-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/deny",
		Summary:     "Deny a rental application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *DecideApplicationInput) (*ApplicationOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		a, err := svc.Deny(ctx, p, input.ID, input.Body.Note)
		if err != nil {
			return nil, toHTTPError("deny application", err)
		}
		return &ApplicationOutput{Body: a}, nil
	})
}
