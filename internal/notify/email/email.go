// Package email sends templated notification emails through an HTTP email
// provider.
package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/notify"
)

// Config describes the provider endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// Message is the JSON body posted to the provider.
type Message struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Template string            `json:"template"`
	Subject  string            `json:"subject"`
	Fields   map[string]string `json:"fields"`
}

type providerError struct {
	Message string `json:"message"`
}

// Client posts each email to <BaseURL>/messages. It does not retry; the
// dispatcher owns retries.
type Client struct {
	http *resty.Client
	from string
}

var _ notify.Mailer = (*Client)(nil) //nolint:gochecknoglobals // compile-time check

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c, from: cfg.From}
}

func (c *Client) send(ctx context.Context, template, subject, to string, fields map[string]string) error {
	var perr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(Message{From: c.from, To: to, Template: template, Subject: subject, Fields: fields}).
		SetError(&perr).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("email.Client.send %s: %w: %w", template, domain.ErrExternalUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := perr.Message
	if msg == "" {
		msg = resp.Status()
	}
	status := resp.StatusCode()
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError &&
		status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return fmt.Errorf("email.Client.send %s: %w: provider rejected message (%d): %s", template, notify.ErrPermanent, status, msg)
	}
	return fmt.Errorf("email.Client.send %s: %w: provider returned %d: %s", template, domain.ErrExternalUnavailable, status, msg)
}

func (c *Client) SendVerification(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "verification", "Verify your email address", to, fields)
}

func (c *Client) SendApplicationSubmitted(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "application_submitted", "New rental application", to, fields)
}

func (c *Client) SendApplicationApproved(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "application_approved", "Your application was approved", to, fields)
}

func (c *Client) SendApplicationDenied(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "application_denied", "Update on your application", to, fields)
}

func (c *Client) SendLeaseConfirmation(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "lease_confirmation", "Your lease is confirmed", to, fields)
}

func (c *Client) SendPaymentReceipt(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "payment_receipt", "Payment received", to, fields)
}

func (c *Client) SendMaintenanceStatus(ctx context.Context, to string, fields map[string]string) error {
	return c.send(ctx, "maintenance_status", "Maintenance request update", to, fields)
}
