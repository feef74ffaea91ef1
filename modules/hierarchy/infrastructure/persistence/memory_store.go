package persistence

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
)

// MemoryHierarchyStore is a tenant-partitioned in-process HierarchyStore.
// It backs tests and small deployments; the Postgres store is the production
// counterpart. Entities are cloned on the way in and out so callers never
// alias storage.
type MemoryHierarchyStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]map[string]entity.Entity
}

func NewMemoryHierarchyStore() *MemoryHierarchyStore {
	return &MemoryHierarchyStore{tenants: make(map[uuid.UUID]map[string]entity.Entity)}
}

func (s *MemoryHierarchyStore) FindByID(_ context.Context, tenantID uuid.UUID, id string) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tenants[tenantID][id]
	if !ok {
		return nil, services.ErrEntityNotFound
	}
	return cloneEntity(e), nil
}

func (s *MemoryHierarchyStore) Find(_ context.Context, tenantID uuid.UUID, f services.Filter) ([]entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Entity, 0, 16)
	for _, e := range s.tenants[tenantID] {
		if matchesFilter(e, f) {
			out = append(out, cloneEntity(e))
		}
	}
	return out, nil
}

func (s *MemoryHierarchyStore) Insert(_ context.Context, tenantID uuid.UUID, e entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.tenants[tenantID]
	if !ok {
		records = make(map[string]entity.Entity)
		s.tenants[tenantID] = records
	}
	if _, exists := records[e.ID()]; exists {
		return errors.Errorf("insert: entity %q already exists", e.ID())
	}
	records[e.ID()] = cloneEntity(e)
	return nil
}

func (s *MemoryHierarchyStore) UpdateOne(_ context.Context, tenantID uuid.UUID, id string, p services.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tenants[tenantID][id]
	if !ok {
		return errors.Wrapf(services.ErrEntityNotFound, "update %q", id)
	}
	applyPatch(e, p)
	return nil
}

func (s *MemoryHierarchyStore) BulkUpdate(_ context.Context, tenantID uuid.UUID, patches []services.PatchByID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.tenants[tenantID]
	for _, patch := range patches {
		e, ok := records[patch.ID]
		if !ok {
			return errors.Wrapf(services.ErrEntityNotFound, "bulk update %q", patch.ID)
		}
		applyPatch(e, patch.Patch)
	}
	return nil
}

func (s *MemoryHierarchyStore) DeleteMany(_ context.Context, tenantID uuid.UUID, f services.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.tenants[tenantID]
	var removed int64
	for id, e := range records {
		if matchesFilter(e, f) {
			delete(records, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryHierarchyStore) CountPrefix(_ context.Context, tenantID uuid.UUID, pathPrefix string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.tenants[tenantID] {
		if strings.HasPrefix(e.Path(), pathPrefix) {
			n++
		}
	}
	return n, nil
}

func matchesFilter(e entity.Entity, f services.Filter) bool {
	if f.Kind != "" && e.Kind() != f.Kind {
		return false
	}
	if f.ParentID != nil && e.ParentID() != *f.ParentID {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(e.Path(), f.PathPrefix) {
		return false
	}
	if f.MaxLevel != nil && e.Level() > *f.MaxLevel {
		return false
	}
	return true
}

func applyPatch(e entity.Entity, p services.Patch) {
	if p.ParentID != nil {
		e.SetParentID(*p.ParentID)
	}
	if p.Path != nil {
		e.SetPath(*p.Path)
	}
	if p.Level != nil {
		e.SetLevel(*p.Level)
	}
	if p.HasChildren != nil {
		e.SetHasChildren(*p.HasChildren)
	}
}

func cloneEntity(e entity.Entity) entity.Entity {
	switch v := e.(type) {
	case *customer.Customer:
		return customer.Hydrate(
			v.TenantID(), v.ID(), v.Name(), v.Description(),
			v.ParentID(), v.Path(), v.Level(), v.HasChildren(),
			v.LastPeriodSales(), v.ResponsivenessScore(), v.RFMLabel(),
		)
	case *product.Product:
		return product.Hydrate(
			v.TenantID(), v.ID(), v.Name(), v.Description(),
			v.ParentID(), v.Path(), v.Level(), v.HasChildren(),
			v.LastPeriodVolume(), v.ListPrice(), v.MarginPercent(),
		)
	default:
		return e
	}
}
