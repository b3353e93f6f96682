// Package application handles rental applications and their review.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/metrics"
	"github.com/gosuda/leasekeep/internal/scope"
)

type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

type Service struct {
	store    domain.Store
	resolver ScopeResolver
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store domain.Store, resolver ScopeResolver, opts ...Option) *Service {
	s := &Service{store: store, resolver: resolver, validate: validator.New(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type NewApplication struct {
	UnitID         uuid.UUID `validate:"required"`
	ApplicantName  string    `validate:"required,max=200"`
	ApplicantEmail string    `validate:"required,email"`
	Message        string    `validate:"max=2000"`
}

// Submit files an application for a unit. Any authenticated principal may
// apply; the landlord of the property is notified.
func (s *Service) Submit(ctx context.Context, p domain.Principal, in NewApplication) (*domain.Application, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("application.Service.Submit: %w: %s", domain.ErrInvalidInput, err.Error())
	}
	unit, err := s.store.Units().GetByID(ctx, in.UnitID)
	if err != nil {
		return nil, fmt.Errorf("application.Service.Submit: unit: %w", err)
	}
	property, err := s.store.Properties().GetByID(ctx, unit.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("application.Service.Submit: property: %w", err)
	}
	landlord, err := s.store.Users().GetByID(ctx, property.UserID)
	if err != nil {
		return nil, fmt.Errorf("application.Service.Submit: landlord: %w", err)
	}

	now := s.now()
	a := &domain.Application{
		ID:             uuid.New(),
		PropertyID:     property.ID,
		UnitID:         unit.ID,
		ApplicantID:    p.UserID,
		ApplicantName:  in.ApplicantName,
		ApplicantEmail: in.ApplicantEmail,
		Message:        in.Message,
		Status:         domain.ApplicationStatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		if err := tx.Applications().Create(ctx, a); err != nil {
			return err
		}
		err := tx.Outbox().Enqueue(ctx, domain.NewNotification(domain.NotificationApplicationSubmitted, landlord.Email, map[string]string{
			"landlord_name":   landlord.Name,
			"property_name":   property.Name,
			"unit_number":     unit.Number,
			"applicant_name":  a.ApplicantName,
			"applicant_email": a.ApplicantEmail,
			"application_id":  a.ID.String(),
		}, now))
		if err != nil {
			return err
		}
		return tx.Audit().Record(ctx, domain.NewAuditEntry(p, "application.submitted", "application", a.ID, a.PropertyID, nil, now))
	})
	if err != nil {
		return nil, fmt.Errorf("application.Service.Submit: %w", err)
	}
	return a, nil
}

func (s *Service) Approve(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error) {
	a, err := s.decide(ctx, p, id, domain.ApplicationStatusApproved, note)
	if err != nil {
		return nil, fmt.Errorf("application.Service.Approve: %w", err)
	}
	return a, nil
}

func (s *Service) Deny(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error) {
	a, err := s.decide(ctx, p, id, domain.ApplicationStatusDenied, note)
	if err != nil {
		return nil, fmt.Errorf("application.Service.Deny: %w", err)
	}
	return a, nil
}

func (s *Service) decide(ctx context.Context, p domain.Principal, id uuid.UUID, to domain.ApplicationStatus, note string) (*domain.Application, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Applications().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sc.Check(scope.CapReviewApplications, current.PropertyID, uuid.Nil); err != nil {
		return nil, err
	}

	kind := domain.NotificationApplicationApproved
	if to == domain.ApplicationStatusDenied {
		kind = domain.NotificationApplicationDenied
	}

	var out *domain.Application
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		a, err := tx.Applications().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.ValidTransition(to) {
			return domain.NewTransitionError("application", a.Status, to, "")
		}
		property, err := tx.Properties().GetByID(ctx, a.PropertyID)
		if err != nil {
			return err
		}

		now := s.now()
		a.Status = to
		a.DecisionNote = note
		a.UpdatedAt = now
		if err := tx.Applications().Update(ctx, a); err != nil {
			return err
		}
		err = tx.Outbox().Enqueue(ctx, domain.NewNotification(kind, a.ApplicantEmail, map[string]string{
			"applicant_name": a.ApplicantName,
			"property_name":  property.Name,
			"note":           note,
			"application_id": a.ID.String(),
		}, now))
		if err != nil {
			return err
		}
		if err := tx.Audit().Record(ctx, domain.NewAuditEntry(p, "application."+string(to), "application", a.ID, a.PropertyID,
			map[string]any{"note": note}, now)); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("application", string(to))
	log.Info().Str("application_id", id.String()).Str("status", string(to)).Msg("application decided")
	return out, nil
}
