package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	return r.s.write(func(d *data) error {
		for _, existing := range d.payments {
			if existing.GatewayReference == p.GatewayReference {
				return conflict("memory.paymentRepo.Create")
			}
		}
		if _, ok := d.payments[p.ID]; ok {
			return conflict("memory.paymentRepo.Create")
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r paymentRepo) GetByReference(_ context.Context, ref string) (*domain.Payment, error) {
	return r.byReference(ref, "memory.paymentRepo.GetByReference")
}

func (r paymentRepo) GetByReferenceForUpdate(_ context.Context, ref string) (*domain.Payment, error) {
	return r.byReference(ref, "memory.paymentRepo.GetByReferenceForUpdate")
}

func (r paymentRepo) byReference(ref, caller string) (*domain.Payment, error) {
	var found *domain.Payment
	r.s.read(func(d *data) {
		for _, p := range d.payments {
			if p.GatewayReference == ref {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, notFound(caller)
	}
	return found, nil
}

func (r paymentRepo) Update(_ context.Context, p *domain.Payment) error {
	return r.s.write(func(d *data) error {
		existing, ok := d.payments[p.ID]
		if !ok {
			return notFound("memory.paymentRepo.Update")
		}
		if existing.Status == domain.PaymentStatusConfirmed {
			return conflict("memory.paymentRepo.Update")
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r paymentRepo) ListByLease(_ context.Context, leaseID uuid.UUID) ([]*domain.Payment, error) {
	var out []*domain.Payment
	r.s.read(func(d *data) {
		for _, p := range d.payments {
			if p.LeaseID == leaseID {
				out = append(out, &p)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r paymentRepo) ListPendingBefore(_ context.Context, before time.Time) ([]*domain.Payment, error) {
	var out []*domain.Payment
	r.s.read(func(d *data) {
		for _, p := range d.payments {
			if p.Status == domain.PaymentStatusPending && p.CreatedAt.Before(before) {
				out = append(out, &p)
			}
		}
	})
	return out, nil
}
