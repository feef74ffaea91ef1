package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

// Expander resolves a set of root entity ids into the deduplicated union of
// those entities and all of their descendants. Callers routinely hold stale
// ids, so roots that no longer resolve are skipped, never failed.
type Expander struct {
	hierarchy *HierarchyService
}

func NewExpander(hierarchy *HierarchyService) *Expander {
	return &Expander{hierarchy: hierarchy}
}

func (e *Expander) Expand(ctx context.Context, tenantID uuid.UUID, rootIDs []string) ([]entity.Entity, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}

	seen := make(map[string]struct{}, len(rootIDs))
	out := make([]entity.Entity, 0, len(rootIDs))
	add := func(candidates ...entity.Entity) {
		for _, c := range candidates {
			if _, ok := seen[c.ID()]; ok {
				continue
			}
			seen[c.ID()] = struct{}{}
			out = append(out, c)
		}
	}

	for _, rootID := range rootIDs {
		root, err := e.hierarchy.store.FindByID(ctx, tenantID, rootID)
		if errors.Is(err, ErrEntityNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		add(root)

		descendants, err := e.hierarchy.GetDescendants(ctx, tenantID, rootID, 0)
		if err != nil {
			return nil, err
		}
		add(descendants...)
	}
	return out, nil
}
