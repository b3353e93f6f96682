package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/leasekeep/internal/api/v1"
	"github.com/gosuda/leasekeep/internal/api/ws"
)

func registerAPIRoutes(api huma.API, svc Services) {
	v1.RegisterScopeRoutes(api, svc.Scope)
	v1.RegisterLeaseRoutes(api, svc.Leases, svc.Ledger)
	v1.RegisterPaymentRoutes(api, svc.Payments)
	v1.RegisterMaintenanceRoutes(api, svc.Maintenance)
	v1.RegisterApplicationRoutes(api, svc.Applications)
}

func registerOpsRoutes(api huma.API, svc Services) {
	v1.RegisterNotificationRoutes(api, svc.Notifications)
}

func registerWebhookRoutes(api huma.API, svc Services, serverKey string) {
	v1.RegisterWebhookRoutes(api, svc.Payments, serverKey)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/properties/{propertyID}", hub.ServeProperty)
}
