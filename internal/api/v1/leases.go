package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/lease"
	"github.com/gosuda/leasekeep/internal/report"
)

type CreateLeaseInput struct {
	Body struct {
		TenantID  uuid.UUID `json:"tenant_id" doc:"Tenant ID"`
		StartDate string    `json:"start_date" format:"date" doc:"First day of the lease"`
		EndDate   string    `json:"end_date" format:"date" doc:"Last day of the lease"`
		Rent      string    `json:"rent" doc:"Monthly rent as a decimal string"`
		Deposit   string    `json:"deposit,omitempty" doc:"Security deposit as a decimal string"`
	}
}

type LeaseIDInput struct {
	ID uuid.UUID `path:"id" doc:"Lease ID"`
}

type LeaseOutput struct {
	Body *domain.Lease
}

type TerminateLeaseInput struct {
	ID   uuid.UUID `path:"id" doc:"Lease ID"`
	Body struct {
		Reason string `json:"reason,omitempty" maxLength:"1000" doc:"Why the lease ended early"`
	}
}

type RenewLeaseInput struct {
	ID   uuid.UUID `path:"id" doc:"Lease ID"`
	Body struct {
		EndDate string `json:"end_date" format:"date" doc:"New last day of the lease"`
	}
}

type BalanceOutput struct {
	Body domain.Balance
}

type StatementOutput struct {
	Body *domain.Statement
}

type StatementFileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type AccrueInput struct {
	ID   uuid.UUID `path:"id" doc:"Lease ID"`
	Body struct {
		Period string `json:"period" pattern:"^[0-9]{4}-[0-9]{2}$" doc:"Billing month, YYYY-MM"`
	}
}

type AccrueOutput struct {
	Body struct {
		Period  domain.Period `json:"period"`
		Created bool          `json:"created" doc:"False when the charge already existed"`
	}
}

func RegisterLeaseRoutes(api huma.API, leases LeaseService, ledger LedgerService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-lease",
		Method:        http.MethodPost,
		Path:          "/leases",
		Summary:       "Create a pending lease",
		Tags:          []string{"Leases"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateLeaseInput) (*LeaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}

		in := lease.NewLease{TenantID: input.Body.TenantID}
		if in.StartDate, err = parseDate("start_date", input.Body.StartDate); err != nil {
			return nil, err
		}
		if in.EndDate, err = parseDate("end_date", input.Body.EndDate); err != nil {
			return nil, err
		}
		if in.Rent, err = parseAmount("rent", input.Body.Rent); err != nil {
			return nil, err
		}
		if input.Body.Deposit != "" {
			if in.Deposit, err = parseAmount("deposit", input.Body.Deposit); err != nil {
				return nil, err
			}
		}

		l, err := leases.Create(ctx, p, in)
		if err != nil {
			return nil, toHTTPError("create lease", err)
		}
		return &LeaseOutput{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lease",
		Method:      http.MethodGet,
		Path:        "/leases/{id}",
		Summary:     "Get a lease by ID",
		Tags:        []string{"Leases"},
	}, func(ctx context.Context, input *LeaseIDInput) (*LeaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		l, err := leases.Get(ctx, p, input.ID)
		if err != nil {
			return nil, toHTTPError("get lease", err)
		}
		return &LeaseOutput{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-lease",
		Method:      http.MethodPost,
		Path:        "/leases/{id}/activate",
		Summary:     "Activate a pending lease once its deposit is paid",
		Tags:        []string{"Leases"},
	}, func(ctx context.Context, input *LeaseIDInput) (*LeaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		l, err := leases.Activate(ctx, p, input.ID)
		if err != nil {
			return nil, toHTTPError("activate lease", err)
		}
		return &LeaseOutput{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "terminate-lease",
		Method:      http.MethodPost,
		Path:        "/leases/{id}/terminate",
		Summary:     "Terminate an active lease",
		Tags:        []string{"Leases"},
	}, func(ctx context.Context, input *TerminateLeaseInput) (*LeaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		l, err := leases.Terminate(ctx, p, input.ID, input.Body.Reason)
		if err != nil {
			return nil, toHTTPError("terminate lease", err)
		}
		return &LeaseOutput{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "renew-lease",
		Method:      http.MethodPost,
		Path:        "/leases/{id}/renew",
		Summary:     "Extend an active lease",
		Tags:        []string{"Leases"},
	}, func(ctx context.Context, input *RenewLeaseInput) (*LeaseOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		end, err := parseDate("end_date", input.Body.EndDate)
		if err != nil {
			return nil, err
		}
		l, err := leases.Renew(ctx, p, input.ID, end)
		if err != nil {
			return nil, toHTTPError("renew lease", err)
		}
		return &LeaseOutput{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lease-balance",
		Method:      http.MethodGet,
		Path:        "/leases/{id}/balance",
		Summary:     "Get the current balance of a lease",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *LeaseIDInput) (*BalanceOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		b, err := ledger.CurrentBalance(ctx, p, input.ID)
		if err != nil {
			return nil, toHTTPError("get balance", err)
		}
		return &BalanceOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lease-statement",
		Method:      http.MethodGet,
		Path:        "/leases/{id}/statement",
		Summary:     "List ledger entries and the balance of a lease",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *LeaseIDInput) (*StatementOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		st, err := ledger.Statement(ctx, p, input.ID)
		if err != nil {
			return nil, toHTTPError("get statement", err)
		}
		return &StatementOutput{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-lease-statement",
		Method:      http.MethodGet,
		Path:        "/leases/{id}/statement.xlsx",
		Summary:     "Download the lease statement as a spreadsheet",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *LeaseIDInput) (*StatementFileOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		st, err := ledger.Statement(ctx, p, input.ID)
		if err != nil {
			return nil, toHTTPError("get statement", err)
		}
		file, err := report.StatementXLSX(st)
		if err != nil {
			return nil, toHTTPError("render statement", err)
		}
		return &StatementFileOutput{
			ContentType:        "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			ContentDisposition: fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, input.ID),
			Body:               file,
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accrue-lease-charge",
		Method:      http.MethodPost,
		Path:        "/leases/{id}/accruals",
		Summary:     "Accrue the monthly rent charge for a period",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *AccrueInput) (*AccrueOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		period, err := domain.ParsePeriod(input.Body.Period)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("period must be YYYY-MM")
		}
		created, err := ledger.AccrueMonthlyCharge(ctx, p, input.ID, period)
		if err != nil {
			return nil, toHTTPError("accrue charge", err)
		}
		out := &AccrueOutput{}
		out.Body.Period = period
		out.Body.Created = created
		return out, nil
	})
}
