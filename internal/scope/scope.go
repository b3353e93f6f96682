// Package scope resolves which properties a principal may act on and gates
// every core operation on that resolution.
package scope

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

// Capability is an operation class granted through a role on a property.
type Capability string

const (
	CapManageLeases         Capability = "manage_leases"
	CapViewLedger           Capability = "view_ledger"
	CapPay                  Capability = "pay"
	CapSubmitMaintenance    Capability = "submit_maintenance"
	CapManageMaintenance    Capability = "manage_maintenance"
	CapProgressMaintenance  Capability = "progress_maintenance"
	CapViewMaintenance      Capability = "view_maintenance"
	CapReviewApplications   Capability = "review_applications"
	CapWatchProperty        Capability = "watch_property"
	CapOperateNotifications Capability = "operate_notifications"
	CapReconcilePayments    Capability = "reconcile_payments"
)

type grantKind string

const (
	grantOwner  grantKind = "owner"
	grantStaff  grantKind = "staff"
	grantTenant grantKind = "tenant"
)

// roleCapabilities lists what each property-level grant allows.
var roleCapabilities = map[grantKind][]Capability{ //nolint:gochecknoglobals // static policy table
	grantOwner: {
		CapManageLeases, CapViewLedger, CapPay, CapManageMaintenance,
		CapProgressMaintenance, CapViewMaintenance, CapReviewApplications, CapWatchProperty,
	},
	grantStaff: {
		CapProgressMaintenance, CapViewMaintenance, CapWatchProperty,
	},
	grantTenant: {
		CapViewLedger, CapPay, CapSubmitMaintenance, CapViewMaintenance,
	},
}

type grant struct {
	kind     grantKind
	tenantID uuid.UUID // set for tenant grants only
}

// Scope is the resolved authorization of one principal.
type Scope struct {
	Principal domain.Principal
	IsAdmin   bool
	grants    map[uuid.UUID][]grant
}

// PropertyIDs returns every property the principal holds a grant on, sorted.
// Admins get an empty list: their scope is unbounded.
func (s *Scope) PropertyIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.grants))
	for id := range s.grants {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids
}

// OwnedPropertyIDs returns the properties the principal owns as landlord.
func (s *Scope) OwnedPropertyIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range s.PropertyIDs() {
		if slices.ContainsFunc(s.grants[id], func(g grant) bool { return g.kind == grantOwner }) {
			ids = append(ids, id)
		}
	}
	return ids
}

// TenantID returns the tenant record the principal rents through on the
// given property, if any.
func (s *Scope) TenantID(propertyID uuid.UUID) (uuid.UUID, bool) {
	for _, g := range s.grants[propertyID] {
		if g.kind == grantTenant {
			return g.tenantID, true
		}
	}
	return uuid.Nil, false
}

// Contains reports whether propertyID is inside the scope at all.
func (s *Scope) Contains(propertyID uuid.UUID) bool {
	if s.IsAdmin {
		return true
	}
	_, ok := s.grants[propertyID]
	return ok
}

// Check is the single authorization gate. It passes when the principal is an
// admin, or holds a grant on propertyID that carries capability c. Tenant
// grants only ever cover records of their own tenant, so tenantID must be the
// record's tenant (uuid.Nil for property-level records, which tenants never pass).
func (s *Scope) Check(c Capability, propertyID, tenantID uuid.UUID) error {
	if s.IsAdmin {
		return nil
	}
	for _, g := range s.grants[propertyID] {
		if !slices.Contains(roleCapabilities[g.kind], c) {
			continue
		}
		if g.kind == grantTenant && (tenantID == uuid.Nil || g.tenantID != tenantID) {
			continue
		}
		return nil
	}
	return fmt.Errorf("scope: %s on property %s: %w", c, propertyID, domain.ErrForbidden)
}

// Require checks a capability that is not tied to a property.
func (s *Scope) Require(c Capability) error {
	if s.IsAdmin {
		return nil
	}
	return fmt.Errorf("scope: %s: %w", c, domain.ErrForbidden)
}

// Resolver computes scopes from the ownership tree.
type Resolver struct {
	properties domain.PropertyRepository
	units      domain.UnitRepository
	tenants    domain.TenantRepository
	staff      domain.StaffRepository
}

func NewResolver(repos domain.Repos) *Resolver {
	return &Resolver{
		properties: repos.Properties(),
		units:      repos.Units(),
		tenants:    repos.Tenants(),
		staff:      repos.Staff(),
	}
}

// Resolve builds the scope of p. Grants from several roles are merged; a
// principal without any recognised role resolves to an empty scope.
func (r *Resolver) Resolve(ctx context.Context, p domain.Principal) (*Scope, error) {
	s := &Scope{
		Principal: p,
		IsAdmin:   p.HasRole(domain.RoleAdmin),
		grants:    make(map[uuid.UUID][]grant),
	}
	if s.IsAdmin {
		return s, nil
	}

	if p.HasRole(domain.RoleLandlord) {
		ids, err := r.properties.ListIDsByOwner(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("scope.Resolver.Resolve: owned properties: %w", err)
		}
		for _, id := range ids {
			s.grants[id] = append(s.grants[id], grant{kind: grantOwner})
		}
	}

	if p.HasRole(domain.RoleStaff) {
		staff, err := r.staff.ListByUser(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("scope.Resolver.Resolve: staff assignments: %w", err)
		}
		for _, st := range staff {
			s.grants[st.PropertyID] = append(s.grants[st.PropertyID], grant{kind: grantStaff})
		}
	}

	if p.HasRole(domain.RoleTenant) {
		tenant, err := r.tenants.GetByUserID(ctx, p.UserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// A tenant login without a tenant record sees nothing.
		case err != nil:
			return nil, fmt.Errorf("scope.Resolver.Resolve: tenant: %w", err)
		default:
			unit, unitErr := r.units.GetByID(ctx, tenant.UnitID)
			if unitErr != nil {
				return nil, fmt.Errorf("scope.Resolver.Resolve: tenant unit: %w", unitErr)
			}
			s.grants[unit.PropertyID] = append(s.grants[unit.PropertyID], grant{kind: grantTenant, tenantID: tenant.ID})
		}
	}

	return s, nil
}
