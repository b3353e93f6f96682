package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Role labels carried by a verified principal.
const (
	RoleAdmin    = "admin"
	RoleLandlord = "landlord"
	RoleTenant   = "tenant"
	RoleStaff    = "staff"
)

// Principal is the verified caller identity handed to the core by the
// authentication layer.
type Principal struct {
	UserID uuid.UUID
	Roles  []string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// SystemPrincipal acts for the platform itself, e.g. signature-verified
// gateway callbacks and scheduled sweeps.
func SystemPrincipal() Principal {
	return Principal{UserID: uuid.Nil, Roles: []string{RoleAdmin}}
}
