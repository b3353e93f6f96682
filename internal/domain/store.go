package domain

import "context"

// Repos is the set of repositories visible to a unit of work.
type Repos interface {
	Properties() PropertyRepository
	Units() UnitRepository
	Tenants() TenantRepository
	Staff() StaffRepository
	Users() UserRepository
	Leases() LeaseRepository
	Ledger() LedgerRepository
	Payments() PaymentRepository
	Maintenance() MaintenanceRepository
	Applications() ApplicationRepository
	Outbox() OutboxRepository
	Audit() AuditRepository
}

// Store is the transactional persistence collaborator. InTx runs fn in a
// single transaction: every write made through tx commits together or not at
// all, and row locks taken with the GetForUpdate methods are held until fn returns.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}
