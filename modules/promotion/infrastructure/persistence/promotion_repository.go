package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/promotion/domain/promotion"
)

// MemoryPromotionHistoryRepository keeps records per tenant in memory.
// Used by tests and by deployments that feed history from fixtures.
type MemoryPromotionHistoryRepository struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID][]*promotion.Record
}

func NewMemoryPromotionHistoryRepository() *MemoryPromotionHistoryRepository {
	return &MemoryPromotionHistoryRepository{
		tenants: make(map[uuid.UUID][]*promotion.Record),
	}
}

func (r *MemoryPromotionHistoryRepository) Save(_ context.Context, rec *promotion.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.tenants[rec.TenantID()]
	for i, existing := range records {
		if existing.ID() == rec.ID() {
			records[i] = rec
			return nil
		}
	}
	r.tenants[rec.TenantID()] = append(records, rec)
	return nil
}

func (r *MemoryPromotionHistoryRepository) FindCompletedByType(_ context.Context, tenantID uuid.UUID, promotionType string, limit int) ([]*promotion.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*promotion.Record, 0, limit)
	for _, rec := range r.tenants[tenantID] {
		if rec.Status() != promotion.StatusCompleted || rec.PromotionType() != promotionType {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate().After(out[j].EndDate()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
