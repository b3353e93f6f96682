package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/payment/midtrans"
)

type InitiatePaymentInput struct {
	ID   uuid.UUID `path:"id" doc:"Lease ID"`
	Body struct {
		Amount string `json:"amount" doc:"Amount to pay as a decimal string"`
	}
}

type PaymentOutput struct {
	Body *domain.Payment
}

type PaymentRefInput struct {
	Ref string `path:"ref" minLength:"1" maxLength:"64" doc:"Gateway reference"`
}

type ConfirmPaymentOutput struct {
	Body struct {
		Payment *domain.Payment `json:"payment"`
		Applied bool            `json:"applied" doc:"False when the call changed nothing"`
	}
}

type MidtransWebhookInput struct {
	RawBody []byte
}

type WebhookOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func RegisterPaymentRoutes(api huma.API, payments PaymentService) {
	huma.Register(api, huma.Operation{
		OperationID:   "initiate-payment",
		Method:        http.MethodPost,
		Path:          "/leases/{id}/payments",
		Summary:       "Start a gateway payment against a lease",
		Tags:          []string{"Payments"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *InitiatePaymentInput) (*PaymentOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount("amount", input.Body.Amount)
		if err != nil {
			return nil, err
		}
		pay, err := payments.Initiate(ctx, p, input.ID, amount)
		if err != nil {
			return nil, toHTTPError("initiate payment", err)
		}
		return &PaymentOutput{Body: pay}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-payment",
		Method:      http.MethodGet,
		Path:        "/payments/{ref}",
		Summary:     "Get a payment by gateway reference",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *PaymentRefInput) (*PaymentOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		pay, err := payments.Get(ctx, p, input.Ref)
		if err != nil {
			return nil, toHTTPError("get payment", err)
		}
		return &PaymentOutput{Body: pay}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-payment",
		Method:      http.MethodPost,
		Path:        "/payments/{ref}/confirm",
		Summary:     "Reconcile a payment with its current gateway status",
		Description: "Called by the client after checkout. The outcome is read from the gateway, never from the caller.",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *PaymentRefInput) (*ConfirmPaymentOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		res, err := payments.Sync(ctx, p, input.Ref)
		if err != nil {
			return nil, toHTTPError("confirm payment", err)
		}
		out := &ConfirmPaymentOutput{}
		out.Body.Payment = res.Payment
		out.Body.Applied = res.Applied
		return out, nil
	})
}

// RegisterWebhookRoutes mounts the unauthenticated Midtrans notification
// endpoint. A notification only acts once its signature checks out against
// serverKey; it then confirms as the system principal.
func RegisterWebhookRoutes(api huma.API, payments PaymentService, serverKey string) {
	huma.Register(api, huma.Operation{
		OperationID: "midtrans-notification",
		Method:      http.MethodPost,
		Path:        "/webhooks/midtrans",
		Summary:     "Receive a Midtrans payment notification",
		Tags:        []string{"Webhooks"},
	}, func(ctx context.Context, input *MidtransWebhookInput) (*WebhookOutput, error) {
		var n midtrans.Notification
		if err := json.Unmarshal(input.RawBody, &n); err != nil {
			return nil, huma.Error400BadRequest("malformed notification")
		}
		if !n.Verify(serverKey) {
			log.Warn().Str("payment_ref", n.OrderID).Msg("webhook: rejected notification with bad signature")
			return nil, huma.Error401Unauthorized("invalid signature")
		}

		res, err := payments.Confirm(ctx, domain.SystemPrincipal(), n.OrderID, n.Status())
		if err != nil {
			return nil, toHTTPError("confirm payment", err)
		}

		log.Info().
			Str("payment_ref", n.OrderID).
			Str("transaction_status", n.TransactionStatus).
			Bool("applied", res.Applied).
			Msg("webhook: notification processed")

		out := &WebhookOutput{}
		out.Body.Status = string(res.Payment.Status)
		return out, nil
	})
}
