package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type propertyRepo struct{ s *Store }

func properties(d *data) map[uuid.UUID]domain.Property { return d.properties }
func units(d *data) map[uuid.UUID]domain.Unit          { return d.units }
func tenants(d *data) map[uuid.UUID]domain.Tenant      { return d.tenants }
func staffMembers(d *data) map[uuid.UUID]domain.Staff  { return d.staff }
func users(d *data) map[uuid.UUID]domain.User          { return d.users }

func (r propertyRepo) Create(_ context.Context, p *domain.Property) error {
	return insert(r.s, properties, p.ID, *p, "memory.propertyRepo.Create")
}

func (r propertyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Property, error) {
	return get(r.s, properties, id, "memory.propertyRepo.GetByID")
}

func (r propertyRepo) ListIDsByOwner(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	r.s.read(func(d *data) {
		for id, p := range d.properties {
			if p.UserID == userID {
				ids = append(ids, id)
			}
		}
	})
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids, nil
}

type unitRepo struct{ s *Store }

func (r unitRepo) Create(_ context.Context, u *domain.Unit) error {
	return insert(r.s, units, u.ID, *u, "memory.unitRepo.Create")
}

func (r unitRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Unit, error) {
	return get(r.s, units, id, "memory.unitRepo.GetByID")
}

func (r unitRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.UnitStatus) error {
	return r.s.write(func(d *data) error {
		u, ok := d.units[id]
		if !ok {
			return notFound("memory.unitRepo.UpdateStatus")
		}
		u.Status = status
		d.units[id] = u
		return nil
	})
}

type tenantRepo struct{ s *Store }

func (r tenantRepo) Create(_ context.Context, t *domain.Tenant) error {
	return insert(r.s, tenants, t.ID, *t, "memory.tenantRepo.Create")
}

func (r tenantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return get(r.s, tenants, id, "memory.tenantRepo.GetByID")
}

func (r tenantRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Tenant, error) {
	var found *domain.Tenant
	r.s.read(func(d *data) {
		for _, t := range d.tenants {
			if t.UserID != nil && *t.UserID == userID {
				found = &t
				return
			}
		}
	})
	if found == nil {
		return nil, notFound("memory.tenantRepo.GetByUserID")
	}
	return found, nil
}

type staffRepo struct{ s *Store }

func (r staffRepo) Create(_ context.Context, st *domain.Staff) error {
	return insert(r.s, staffMembers, st.ID, *st, "memory.staffRepo.Create")
}

func (r staffRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Staff, error) {
	return get(r.s, staffMembers, id, "memory.staffRepo.GetByID")
}

func (r staffRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Staff, error) {
	var out []*domain.Staff
	r.s.read(func(d *data) {
		for _, st := range d.staff {
			if st.UserID == userID {
				out = append(out, &st)
			}
		}
	})
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	return insert(r.s, users, u.ID, *u, "memory.userRepo.Create")
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return get(r.s, users, id, "memory.userRepo.GetByID")
}
