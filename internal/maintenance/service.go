// Package maintenance runs the maintenance request workflow:
// open -> assigned -> in_progress -> completed, with cancellation allowed
// until work has started.
package maintenance

import (
	"context"
	"errors"
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
	events   domain.EventPublisher
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

func WithEvents(pub domain.EventPublisher) Option { return func(s *Service) { s.events = pub } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store domain.Store, resolver ScopeResolver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRequest is the input of Submit. TenantID may be left empty when the
// principal is the tenant.
type NewRequest struct {
	TenantID    uuid.UUID
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=4000"`
	Priority    string `validate:"omitempty,oneof=low medium high"`
}

// Submit opens a maintenance request for the tenant's unit.
func (s *Service) Submit(ctx context.Context, p domain.Principal, in NewRequest) (*domain.MaintenanceRequest, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("maintenance.Service.Submit: %w: %s", domain.ErrInvalidInput, err.Error())
	}
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Submit: %w", err)
	}

	var tenant *domain.Tenant
	if in.TenantID != uuid.Nil {
		tenant, err = s.store.Tenants().GetByID(ctx, in.TenantID)
	} else {
		tenant, err = s.store.Tenants().GetByUserID(ctx, p.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Submit: tenant: %w", err)
	}
	unit, err := s.store.Units().GetByID(ctx, tenant.UnitID)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Submit: unit: %w", err)
	}
	if err := sc.Check(scope.CapSubmitMaintenance, unit.PropertyID, tenant.ID); err != nil {
		return nil, fmt.Errorf("maintenance.Service.Submit: %w", err)
	}

	priority := domain.MaintenancePriority(in.Priority)
	if priority == "" {
		priority = domain.MaintenancePriorityMedium
	}
	now := s.now()
	m := &domain.MaintenanceRequest{
		ID:          uuid.New(),
		PropertyID:  unit.PropertyID,
		UnitID:      unit.ID,
		TenantID:    tenant.ID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		Status:      domain.MaintenanceStatusOpen,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		if err := tx.Maintenance().Create(ctx, m); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, domain.NewAuditEntry(p, "maintenance.open", "maintenance", m.ID, m.PropertyID,
			map[string]any{"priority": string(priority)}, now))
	})
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Submit: %w", err)
	}
	domain.Publish(ctx, s.events, event(m))
	return m, nil
}

// Get returns a request visible to p.
func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Get: %w", err)
	}
	m, err := s.store.Maintenance().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Get: %w", err)
	}
	if err := sc.Check(scope.CapViewMaintenance, m.PropertyID, m.TenantID); err != nil {
		return nil, fmt.Errorf("maintenance.Service.Get: %w", err)
	}
	return m, nil
}

// ListByProperty returns the requests of a property. Tenants only get their own.
func (s *Service) ListByProperty(ctx context.Context, p domain.Principal, propertyID uuid.UUID) ([]*domain.MaintenanceRequest, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.ListByProperty: %w", err)
	}

	var onlyTenant uuid.UUID
	if err := sc.Check(scope.CapViewMaintenance, propertyID, uuid.Nil); err != nil {
		tenantID, ok := sc.TenantID(propertyID)
		if !ok || !errors.Is(err, domain.ErrForbidden) {
			return nil, fmt.Errorf("maintenance.Service.ListByProperty: %w", err)
		}
		onlyTenant = tenantID
	}

	all, err := s.store.Maintenance().ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.ListByProperty: %w", err)
	}
	if onlyTenant == uuid.Nil {
		return all, nil
	}
	out := make([]*domain.MaintenanceRequest, 0, len(all))
	for _, m := range all {
		if m.TenantID == onlyTenant {
			out = append(out, m)
		}
	}
	return out, nil
}

// Assign hands an open request to a staff member of the same property.
func (s *Service) Assign(ctx context.Context, p domain.Principal, id, staffID uuid.UUID) (*domain.MaintenanceRequest, error) {
	m, err := s.transition(ctx, p, id, scope.CapManageMaintenance, domain.MaintenanceStatusAssigned,
		func(ctx context.Context, tx domain.Repos, m *domain.MaintenanceRequest) error {
			staff, err := tx.Staff().GetByID(ctx, staffID)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: staff %s does not exist", domain.ErrInvalidAssignment, staffID)
			}
			if err != nil {
				return err
			}
			if staff.PropertyID != m.PropertyID {
				return fmt.Errorf("%w: staff %s does not work at property %s", domain.ErrInvalidAssignment, staffID, m.PropertyID)
			}
			m.StaffID = &staff.ID
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Assign: %w", err)
	}
	return m, nil
}

func (s *Service) Start(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	m, err := s.transition(ctx, p, id, scope.CapProgressMaintenance, domain.MaintenanceStatusInProgress, nil)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Start: %w", err)
	}
	return m, nil
}

// Complete closes a request in progress and stamps CompletedAt.
func (s *Service) Complete(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	m, err := s.transition(ctx, p, id, scope.CapProgressMaintenance, domain.MaintenanceStatusCompleted,
		func(_ context.Context, _ domain.Repos, m *domain.MaintenanceRequest) error {
			at := s.now()
			m.CompletedAt = &at
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Complete: %w", err)
	}
	return m, nil
}

func (s *Service) Cancel(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	m, err := s.transition(ctx, p, id, scope.CapManageMaintenance, domain.MaintenanceStatusCancelled, nil)
	if err != nil {
		return nil, fmt.Errorf("maintenance.Service.Cancel: %w", err)
	}
	return m, nil
}

type mutateFunc func(ctx context.Context, tx domain.Repos, m *domain.MaintenanceRequest) error

func (s *Service) transition(ctx context.Context, p domain.Principal, id uuid.UUID, c scope.Capability, to domain.MaintenanceStatus, fn mutateFunc) (*domain.MaintenanceRequest, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Maintenance().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sc.Check(c, current.PropertyID, current.TenantID); err != nil {
		return nil, err
	}

	var (
		out  *domain.MaintenanceRequest
		from domain.MaintenanceStatus
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		m, err := tx.Maintenance().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !m.Status.ValidTransition(to) {
			return domain.NewTransitionError("maintenance request", m.Status, to, "")
		}
		if fn != nil {
			if err := fn(ctx, tx, m); err != nil {
				return err
			}
		}

		now := s.now()
		from = m.Status
		m.Status = to
		m.UpdatedAt = now
		if err := tx.Maintenance().Update(ctx, m); err != nil {
			return err
		}

		tenant, err := tx.Tenants().GetByID(ctx, m.TenantID)
		if err != nil {
			return fmt.Errorf("tenant: %w", err)
		}
		err = tx.Outbox().Enqueue(ctx, domain.NewNotification(domain.NotificationMaintenanceStatus, tenant.Email, map[string]string{
			"tenant_name": tenant.FullName(),
			"request_id":  m.ID.String(),
			"title":       m.Title,
			"status":      string(m.Status),
		}, now))
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}

		details := map[string]any{"from": string(from), "to": string(to)}
		if m.StaffID != nil {
			details["staff_id"] = m.StaffID.String()
		}
		if err := tx.Audit().Record(ctx, domain.NewAuditEntry(p, "maintenance."+string(to), "maintenance", m.ID, m.PropertyID, details, now)); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("maintenance", string(to))
	log.Info().
		Str("request_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("maintenance transition")
	domain.Publish(ctx, s.events, event(out))
	return out, nil
}

func event(m *domain.MaintenanceRequest) domain.Event {
	return domain.Event{
		Type:       "maintenance." + string(m.Status),
		PropertyID: m.PropertyID,
		EntityID:   m.ID,
		Status:     string(m.Status),
		At:         m.UpdatedAt,
	}
}
