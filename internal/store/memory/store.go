// Package memory is an in-process implementation of domain.Store. InTx
// serializes all transactions, which gives the same isolation the row locks
// of the Postgres store provide. Writes made through the transaction handle
// are journaled row by row, so a rollback undoes exactly those rows and
// leaves writes made outside the transaction in place.
package memory

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type data struct {
	properties    map[uuid.UUID]domain.Property
	units         map[uuid.UUID]domain.Unit
	tenants       map[uuid.UUID]domain.Tenant
	staff         map[uuid.UUID]domain.Staff
	users         map[uuid.UUID]domain.User
	leases        map[uuid.UUID]domain.Lease
	ledger        []domain.LedgerEntry
	payments      map[uuid.UUID]domain.Payment
	maintenance   map[uuid.UUID]domain.MaintenanceRequest
	applications  map[uuid.UUID]domain.Application
	notifications map[uuid.UUID]domain.Notification
	audit         []domain.AuditEntry
}

func newData() *data {
	return &data{
		properties:    make(map[uuid.UUID]domain.Property),
		units:         make(map[uuid.UUID]domain.Unit),
		tenants:       make(map[uuid.UUID]domain.Tenant),
		staff:         make(map[uuid.UUID]domain.Staff),
		users:         make(map[uuid.UUID]domain.User),
		leases:        make(map[uuid.UUID]domain.Lease),
		payments:      make(map[uuid.UUID]domain.Payment),
		maintenance:   make(map[uuid.UUID]domain.MaintenanceRequest),
		applications:  make(map[uuid.UUID]domain.Application),
		notifications: make(map[uuid.UUID]domain.Notification),
	}
}

func (d *data) clone() *data {
	notifications := make(map[uuid.UUID]domain.Notification, len(d.notifications))
	for id, n := range d.notifications {
		n.Data = maps.Clone(n.Data)
		notifications[id] = n
	}
	return &data{
		properties:    maps.Clone(d.properties),
		units:         maps.Clone(d.units),
		tenants:       maps.Clone(d.tenants),
		staff:         maps.Clone(d.staff),
		users:         maps.Clone(d.users),
		leases:        maps.Clone(d.leases),
		ledger:        slices.Clone(d.ledger),
		payments:      maps.Clone(d.payments),
		maintenance:   maps.Clone(d.maintenance),
		applications:  maps.Clone(d.applications),
		notifications: notifications,
		audit:         slices.Clone(d.audit),
	}
}

type state struct {
	txMu sync.Mutex // held for the whole of a transaction
	mu   sync.RWMutex
	d    *data
}

// Store is a handle on shared state. The handle passed to an InTx callback
// carries a journal; every other handle writes straight through.
type Store struct {
	*state
	journal *journal
}

var _ domain.Store = (*Store)(nil) //nolint:gochecknoglobals // compile-time check

func New() *Store {
	return &Store{state: &state{d: newData()}}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repos) error) error {
	if s.journal != nil {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &Store{state: s.state, journal: &journal{}}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		tx.journal.rollback(s.d)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Properties() domain.PropertyRepository      { return propertyRepo{s} }
func (s *Store) Units() domain.UnitRepository               { return unitRepo{s} }
func (s *Store) Tenants() domain.TenantRepository           { return tenantRepo{s} }
func (s *Store) Staff() domain.StaffRepository              { return staffRepo{s} }
func (s *Store) Users() domain.UserRepository               { return userRepo{s} }
func (s *Store) Leases() domain.LeaseRepository             { return leaseRepo{s} }
func (s *Store) Ledger() domain.LedgerRepository            { return ledgerRepo{s} }
func (s *Store) Payments() domain.PaymentRepository         { return paymentRepo{s} }
func (s *Store) Maintenance() domain.MaintenanceRepository  { return maintenanceRepo{s} }
func (s *Store) Applications() domain.ApplicationRepository { return applicationRepo{s} }
func (s *Store) Outbox() domain.OutboxRepository            { return outboxRepo{s} }
func (s *Store) Audit() domain.AuditRepository              { return auditRepo{s} }

func (s *Store) read(fn func(d *data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.d)
}

func (s *Store) write(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return fn(s.d)
	}
	before := s.d.clone()
	err := fn(s.d)
	s.journal.record(before, s.d)
	return err
}

// journal holds the undo steps of one transaction, oldest first.
type journal struct {
	undo []func(d *data)
}

func (j *journal) rollback(d *data) {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i](d)
	}
	j.undo = nil
}

// record diffs the tables around a single write. Callers hold mu, so every
// difference belongs to that write.
func (j *journal) record(before, after *data) {
	j.undo = append(j.undo, diffRows(before.properties, after.properties, properties)...)
	j.undo = append(j.undo, diffRows(before.units, after.units, units)...)
	j.undo = append(j.undo, diffRows(before.tenants, after.tenants, tenants)...)
	j.undo = append(j.undo, diffRows(before.staff, after.staff, staffMembers)...)
	j.undo = append(j.undo, diffRows(before.users, after.users, users)...)
	j.undo = append(j.undo, diffRows(before.leases, after.leases, leases)...)
	j.undo = append(j.undo, diffRows(before.payments, after.payments, payments)...)
	j.undo = append(j.undo, diffRows(before.maintenance, after.maintenance, maintenanceRequests)...)
	j.undo = append(j.undo, diffRows(before.applications, after.applications, applications)...)
	j.undo = append(j.undo, diffRows(before.notifications, after.notifications, notifications)...)

	// The ledger and the audit trail are append-only.
	if added := after.ledger[len(before.ledger):]; len(added) > 0 {
		ids := make(map[uuid.UUID]struct{}, len(added))
		for _, e := range added {
			ids[e.ID] = struct{}{}
		}
		j.undo = append(j.undo, func(d *data) {
			d.ledger = slices.DeleteFunc(d.ledger, func(e domain.LedgerEntry) bool {
				_, ok := ids[e.ID]
				return ok
			})
		})
	}
	if added := after.audit[len(before.audit):]; len(added) > 0 {
		ids := make(map[uuid.UUID]struct{}, len(added))
		for _, e := range added {
			ids[e.ID] = struct{}{}
		}
		j.undo = append(j.undo, func(d *data) {
			d.audit = slices.DeleteFunc(d.audit, func(e domain.AuditEntry) bool {
				_, ok := ids[e.ID]
				return ok
			})
		})
	}
}

// diffRows returns the steps that put every row changed between before and
// after back to its before value.
func diffRows[T any](before, after map[uuid.UUID]T, table func(d *data) map[uuid.UUID]T) []func(d *data) {
	var undo []func(d *data)
	for id, v := range after {
		old, existed := before[id]
		switch {
		case !existed:
			undo = append(undo, func(d *data) { delete(table(d), id) })
		case !reflect.DeepEqual(old, v):
			undo = append(undo, func(d *data) { table(d)[id] = old })
		}
	}
	for id, old := range before {
		if _, ok := after[id]; !ok {
			undo = append(undo, func(d *data) { table(d)[id] = old })
		}
	}
	return undo
}

func payments(d *data) map[uuid.UUID]domain.Payment           { return d.payments }
func notifications(d *data) map[uuid.UUID]domain.Notification { return d.notifications }

// get copies a value out of m, mapping a miss to domain.ErrNotFound.
func get[T any](s *Store, m func(d *data) map[uuid.UUID]T, id uuid.UUID, caller string) (*T, error) {
	var (
		v  T
		ok bool
	)
	s.read(func(d *data) { v, ok = m(d)[id] })
	if !ok {
		return nil, notFound(caller)
	}
	return &v, nil
}

// insert stores v under id unless the id is taken.
func insert[T any](s *Store, m func(d *data) map[uuid.UUID]T, id uuid.UUID, v T, caller string) error {
	return s.write(func(d *data) error {
		if _, exists := m(d)[id]; exists {
			return conflict(caller)
		}
		m(d)[id] = v
		return nil
	})
}

// replace overwrites an existing value.
func replace[T any](s *Store, m func(d *data) map[uuid.UUID]T, id uuid.UUID, v T, caller string) error {
	return s.write(func(d *data) error {
		if _, exists := m(d)[id]; !exists {
			return notFound(caller)
		}
		m(d)[id] = v
		return nil
	})
}
