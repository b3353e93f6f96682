package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type leaseRepo struct{ s *Store }

func leases(d *data) map[uuid.UUID]domain.Lease { return d.leases }

func (r leaseRepo) Create(_ context.Context, l *domain.Lease) error {
	return insert(r.s, leases, l.ID, *l, "memory.leaseRepo.Create")
}

func (r leaseRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Lease, error) {
	return get(r.s, leases, id, "memory.leaseRepo.GetByID")
}

// GetForUpdate needs no lock of its own: InTx already serializes writers.
func (r leaseRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.Lease, error) {
	return get(r.s, leases, id, "memory.leaseRepo.GetForUpdate")
}

func (r leaseRepo) Update(_ context.Context, l *domain.Lease) error {
	return replace(r.s, leases, l.ID, *l, "memory.leaseRepo.Update")
}

func (r leaseRepo) ListByStatus(_ context.Context, status domain.LeaseStatus) ([]*domain.Lease, error) {
	var out []*domain.Lease
	r.s.read(func(d *data) {
		for _, l := range d.leases {
			if l.Status == status {
				out = append(out, &l)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.Lease) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r leaseRepo) CountActiveByUnit(_ context.Context, unitID, excludeLeaseID uuid.UUID) (int, error) {
	n := 0
	r.s.read(func(d *data) {
		for _, l := range d.leases {
			if l.UnitID == unitID && l.ID != excludeLeaseID && l.Status == domain.LeaseStatusActive {
				n++
			}
		}
	})
	return n, nil
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Append(_ context.Context, e *domain.LedgerEntry) (bool, error) {
	created := false
	err := r.s.write(func(d *data) error {
		for _, existing := range d.ledger {
			if existing.LeaseID != e.LeaseID {
				continue
			}
			if e.Kind == domain.LedgerEntryPayment {
				if e.PaymentID != nil && existing.PaymentID != nil && *existing.PaymentID == *e.PaymentID {
					return nil
				}
				continue
			}
			if existing.Kind == e.Kind && existing.Period == e.Period {
				return nil
			}
		}
		d.ledger = append(d.ledger, *e)
		created = true
		return nil
	})
	return created, err
}

func (r ledgerRepo) ListByLease(_ context.Context, leaseID uuid.UUID) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	r.s.read(func(d *data) {
		for _, e := range d.ledger {
			if e.LeaseID == leaseID {
				out = append(out, &e)
			}
		}
	})
	return out, nil
}

func (r ledgerRepo) Totals(_ context.Context, leaseID uuid.UUID) (domain.LedgerTotals, error) {
	var t domain.LedgerTotals
	r.s.read(func(d *data) {
		for _, e := range d.ledger {
			if e.LeaseID != leaseID {
				continue
			}
			switch e.Kind {
			case domain.LedgerEntryPayment:
				t.Payments = t.Payments.Add(e.Amount)
			case domain.LedgerEntryDeposit:
				t.Deposits = t.Deposits.Add(e.Amount)
				t.Charges = t.Charges.Add(e.Amount)
			default:
				t.Charges = t.Charges.Add(e.Amount)
			}
		}
	})
	return t, nil
}
