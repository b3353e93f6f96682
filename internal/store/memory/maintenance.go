package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type maintenanceRepo struct{ s *Store }

func maintenanceRequests(d *data) map[uuid.UUID]domain.MaintenanceRequest { return d.maintenance }
func applications(d *data) map[uuid.UUID]domain.Application               { return d.applications }

func (r maintenanceRepo) Create(_ context.Context, m *domain.MaintenanceRequest) error {
	return insert(r.s, maintenanceRequests, m.ID, *m, "memory.maintenanceRepo.Create")
}

func (r maintenanceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	return get(r.s, maintenanceRequests, id, "memory.maintenanceRepo.GetByID")
}

func (r maintenanceRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	return get(r.s, maintenanceRequests, id, "memory.maintenanceRepo.GetForUpdate")
}

func (r maintenanceRepo) Update(_ context.Context, m *domain.MaintenanceRequest) error {
	return replace(r.s, maintenanceRequests, m.ID, *m, "memory.maintenanceRepo.Update")
}

func (r maintenanceRepo) ListByProperty(_ context.Context, propertyID uuid.UUID) ([]*domain.MaintenanceRequest, error) {
	var out []*domain.MaintenanceRequest
	r.s.read(func(d *data) {
		for _, m := range d.maintenance {
			if m.PropertyID == propertyID {
				out = append(out, &m)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.MaintenanceRequest) int { return a.RequestedAt.Compare(b.RequestedAt) })
	return out, nil
}

type applicationRepo struct{ s *Store }

func (r applicationRepo) Create(_ context.Context, a *domain.Application) error {
	return insert(r.s, applications, a.ID, *a, "memory.applicationRepo.Create")
}

func (r applicationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Application, error) {
	return get(r.s, applications, id, "memory.applicationRepo.GetByID")
}

func (r applicationRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*domain.Application, error) {
	return get(r.s, applications, id, "memory.applicationRepo.GetForUpdate")
}

func (r applicationRepo) Update(_ context.Context, a *domain.Application) error {
	return replace(r.s, applications, a.ID, *a, "memory.applicationRepo.Update")
}
