// Package midtrans adapts the Midtrans Snap and Core APIs to the payment
// gateway interface and verifies Midtrans HTTP notifications.
package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/payment"
)

type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type coreAPI interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// Gateway opens Snap transactions and queries their status.
type Gateway struct {
	snap snapAPI
	core coreAPI
}

var _ payment.Gateway = (*Gateway)(nil) //nolint:gochecknoglobals // compile-time check

func New(serverKey string, production bool) *Gateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var c snap.Client
	c.New(serverKey, env)
	var core coreapi.Client
	core.New(serverKey, env)
	return &Gateway{snap: &c, core: &core}
}

// CreateCharge opens a Snap transaction whose order id is the payment reference.
// Midtrans only takes whole-unit amounts.
func (g *Gateway) CreateCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	if !req.Amount.IsInteger() {
		return nil, fmt.Errorf("midtrans: %w: amount %s has a fractional part", domain.ErrInvalidInput, req.Amount)
	}
	amount := req.Amount.IntPart()
	first, last, _ := strings.Cut(req.CustomerName, " ")

	resp, merr := g.snap.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: first,
			LName: last,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.Reference,
			Name:  "Rent payment",
			Price: amount,
			Qty:   1,
		}},
	})
	if merr != nil {
		return nil, fmt.Errorf("midtrans: create transaction: %w: %s", domain.ErrExternalUnavailable, merr.Message)
	}
	return &payment.Charge{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// Status asks Midtrans for the current outcome of the transaction with order
// id ref. An order Midtrans does not know yet is still pending: the customer
// has not picked a payment method.
func (g *Gateway) Status(_ context.Context, ref string) (domain.GatewayStatus, error) {
	resp, merr := g.core.CheckTransaction(ref)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return domain.GatewayStatusPending, nil
		}
		return "", fmt.Errorf("midtrans: check transaction %s: %w: %s", ref, domain.ErrExternalUnavailable, merr.Message)
	}
	if resp.StatusCode == "404" {
		return domain.GatewayStatusPending, nil
	}
	return MapStatus(resp.TransactionStatus, resp.FraudStatus), nil
}

// Notification is the body of a Midtrans HTTP notification.
type Notification struct {
	TransactionTime   string `json:"transaction_time,omitempty"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id,omitempty"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type,omitempty"`
	FraudStatus       string `json:"fraud_status,omitempty"`
}

// Signature computes SHA512(order_id + status_code + gross_amount + server_key).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether n carries a valid signature for serverKey.
func (n *Notification) Verify(serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.SignatureKey))) == 1
}

// Status maps the Midtrans transaction and fraud status to a gateway status.
func (n *Notification) Status() domain.GatewayStatus {
	return MapStatus(n.TransactionStatus, n.FraudStatus)
}

// MapStatus normalizes a Midtrans transaction status. Captures flagged as a
// fraud challenge stay pending until Midtrans settles or denies them.
func MapStatus(transactionStatus, fraudStatus string) domain.GatewayStatus {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return domain.GatewayStatusSuccess
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "challenge":
			return domain.GatewayStatusPending
		case "deny":
			return domain.GatewayStatusFailure
		default:
			return domain.GatewayStatusSuccess
		}
	case "deny", "cancel", "expire", "failure":
		return domain.GatewayStatusFailure
	default:
		return domain.GatewayStatusPending
	}
}
