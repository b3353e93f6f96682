package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/maintenance"
)

type SubmitMaintenanceInput struct {
	Body struct {
		TenantID    uuid.UUID `json:"tenant_id,omitempty" doc:"Tenant the request is for; defaults to the caller's own tenancy"`
		Title       string    `json:"title" minLength:"1" maxLength:"200" doc:"Short summary"`
		Description string    `json:"description,omitempty" maxLength:"4000" doc:"Details"`
		Priority    string    `json:"priority,omitempty" enum:"low,medium,high" doc:"Priority, medium when omitted"`
	}
}

type MaintenanceIDInput struct {
	ID uuid.UUID `path:"id" doc:"Maintenance request ID"`
}

type AssignMaintenanceInput struct {
	ID   uuid.UUID `path:"id" doc:"Maintenance request ID"`
	Body struct {
		StaffID uuid.UUID `json:"staff_id" doc:"Staff member to assign"`
	}
}

type PropertyMaintenanceInput struct {
	PropertyID uuid.UUID `path:"propertyID" doc:"Property ID"`
}

type MaintenanceOutput struct {
	Body *domain.MaintenanceRequest
}

type MaintenanceListOutput struct {
	Body []*domain.MaintenanceRequest
}

type maintenanceStep func(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error)

func RegisterMaintenanceRoutes(api huma.API, svc MaintenanceService) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-maintenance",
		Method:        http.MethodPost,
		Path:          "/maintenance",
		Summary:       "Open a maintenance request",
		Tags:          []string{"Maintenance"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SubmitMaintenanceInput) (*MaintenanceOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		m, err := svc.Submit(ctx, p, maintenance.NewRequest{
			TenantID:    input.Body.TenantID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
		})
		if err != nil {
			return nil, toHTTPError("submit maintenance request", err)
		}
		return &MaintenanceOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-maintenance",
		Method:      http.MethodGet,
		Path:        "/maintenance/{id}",
		Summary:     "Get a maintenance request",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, input *MaintenanceIDInput) (*MaintenanceOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		m, err := svc.Get(ctx, p, input.ID)
		if err != nil {
			return nil, toHTTPError("get maintenance request", err)
		}
		return &MaintenanceOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-property-maintenance",
		Method:      http.MethodGet,
		Path:        "/properties/{propertyID}/maintenance",
		Summary:     "List maintenance requests of a property",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, input *PropertyMaintenanceInput) (*MaintenanceListOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		list, err := svc.ListByProperty(ctx, p, input.PropertyID)
		if err != nil {
			return nil, toHTTPError("list maintenance requests", err)
		}
		return &MaintenanceListOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-maintenance",
		Method:      http.MethodPost,
		Path:        "/maintenance/{id}/assign",
		Summary:     "Assign a maintenance request to staff",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, input *AssignMaintenanceInput) (*MaintenanceOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		m, err := svc.Assign(ctx, p, input.ID, input.Body.StaffID)
		if err != nil {
			return nil, toHTTPError("assign maintenance request", err)
		}
		return &MaintenanceOutput{Body: m}, nil
	})

	for _, step := range []struct {
		name string
		verb string
		run  maintenanceStep
	}{
		{name: "start", verb: "Start work on", run: svc.Start},
		{name: "complete", verb: "Complete", run: svc.Complete},
		{name: "cancel", verb: "Cancel", run: svc.Cancel},
	} {
		huma.Register(api, huma.Operation{
			OperationID: step.name + "-maintenance",
			Method:      http.MethodPost,
			Path:        "/maintenance/{id}/" + step.name,
			Summary:     step.verb + " a maintenance request",
			Tags:        []string{"Maintenance"},
		}, func(ctx context.Context, input *MaintenanceIDInput) (*MaintenanceOutput, error) {
			p, err := principalFrom(ctx)
			if err != nil {
				return nil, err
			}
			m, err := step.run(ctx, p, input.ID)
			if err != nil {
				return nil, toHTTPError(step.name+" maintenance request", err)
			}
			return &MaintenanceOutput{Body: m}, nil
		})
	}
}
