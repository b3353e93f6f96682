package v1

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

type PropertyGrant struct {
	PropertyID uuid.UUID  `json:"property_id"`
	Owner      bool       `json:"owner"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty" doc:"Set when the caller rents on this property"`
}

type ScopeOutput struct {
	Body struct {
		UserID     uuid.UUID       `json:"user_id"`
		Roles      []string        `json:"roles"`
		Admin      bool            `json:"admin" doc:"Admins are not bounded by properties"`
		Properties []PropertyGrant `json:"properties"`
	}
}

// RegisterScopeRoutes exposes the caller's resolved scope.
func RegisterScopeRoutes(api huma.API, resolver ScopeResolver) {
	huma.Register(api, huma.Operation{
		OperationID: "get-scope",
		Method:      http.MethodGet,
		Path:        "/scope",
		Summary:     "Show which properties the caller can act on",
		Tags:        []string{"Scope"},
	}, func(ctx context.Context, _ *struct{}) (*ScopeOutput, error) {
		p, err := principalFrom(ctx)
		if err != nil {
			return nil, err
		}
		sc, err := resolver.Resolve(ctx, p)
		if err != nil {
			return nil, toHTTPError("resolve scope", err)
		}

		out := &ScopeOutput{}
		out.Body.UserID = p.UserID
		out.Body.Roles = p.Roles
		out.Body.Admin = sc.IsAdmin
		owned := sc.OwnedPropertyIDs()
		out.Body.Properties = make([]PropertyGrant, 0, len(owned))
		for _, id := range sc.PropertyIDs() {
			g := PropertyGrant{PropertyID: id, Owner: slices.Contains(owned, id)}
			if tid, ok := sc.TenantID(id); ok {
				g.TenantID = &tid
			}
			out.Body.Properties = append(out.Body.Properties, g)
		}
		return out, nil
	})
}
