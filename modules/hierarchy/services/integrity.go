package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/pkg/pathcodec"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

type IssueKind string

const (
	IssueOrphanedNode  IssueKind = "orphaned_node"
	IssuePathMismatch  IssueKind = "path_mismatch"
	IssueLevelMismatch IssueKind = "level_mismatch"
)

// Issue is a non-fatal integrity finding. Issues are reported, never thrown.
type Issue struct {
	Kind   IssueKind
	NodeID string
	Detail string
}

type Repair struct {
	NodeID string
	Field  string
	Old    string
	New    string
}

// RepairReport lists what RepairHierarchy changed and which orphans it found
// but left alone: orphan remediation (delete vs reparent) is a policy call
// that belongs to the caller.
type RepairReport struct {
	Repairs []Repair
	Orphans []Issue
}

// ValidateHierarchy scans a tenant's whole tree for orphaned nodes and for
// nodes whose stored path or level disagrees with the value recomputed from
// the parent chain.
func (s *HierarchyService) ValidateHierarchy(ctx context.Context, tenantID uuid.UUID) ([]Issue, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}

	nodes, err := s.store.Find(ctx, tenantID, Filter{})
	if err != nil {
		return nil, s.fail("validate", err)
	}
	index := newIntegrityIndex(nodes)

	issues := make([]Issue, 0)
	for _, n := range nodes {
		if index.isOrphan(n) {
			issues = append(issues, Issue{
				Kind:   IssueOrphanedNode,
				NodeID: n.ID(),
				Detail: fmt.Sprintf("parent %q does not resolve", n.ParentID()),
			})
			continue
		}

		expected, ok := index.expectedPath(n.ID())
		if !ok {
			// Somewhere up the chain sits an orphan or a cycle; the
			// orphan report covers it.
			continue
		}
		if n.Path() != expected {
			issues = append(issues, Issue{
				Kind:   IssuePathMismatch,
				NodeID: n.ID(),
				Detail: fmt.Sprintf("stored path %q, expected %q", n.Path(), expected),
			})
		}
		if expectedLevel := pathcodec.Depth(expected) - 1; n.Level() != expectedLevel {
			issues = append(issues, Issue{
				Kind:   IssueLevelMismatch,
				NodeID: n.ID(),
				Detail: fmt.Sprintf("stored level %d, expected %d", n.Level(), expectedLevel),
			})
		}
	}
	return issues, nil
}

// RepairHierarchy rewrites every mismatched path and level and recomputes
// every hasChildren flag. It converges: running it on an already-consistent
// tree changes nothing. Orphans are reported, not touched.
func (s *HierarchyService) RepairHierarchy(ctx context.Context, tenantID uuid.UUID) (*RepairReport, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}

	unlock := s.locks.lock(tenantID)
	defer unlock()

	nodes, err := s.store.Find(ctx, tenantID, Filter{})
	if err != nil {
		return nil, s.fail("repair", err)
	}
	index := newIntegrityIndex(nodes)

	report := &RepairReport{Repairs: make([]Repair, 0), Orphans: make([]Issue, 0)}
	patches := make([]PatchByID, 0)

	for _, n := range nodes {
		if index.isOrphan(n) {
			report.Orphans = append(report.Orphans, Issue{
				Kind:   IssueOrphanedNode,
				NodeID: n.ID(),
				Detail: fmt.Sprintf("parent %q does not resolve", n.ParentID()),
			})
			continue
		}

		patch := Patch{}
		if expected, ok := index.expectedPath(n.ID()); ok {
			if n.Path() != expected {
				expectedCopy := expected
				patch.Path = &expectedCopy
				report.Repairs = append(report.Repairs, Repair{
					NodeID: n.ID(), Field: "path", Old: n.Path(), New: expected,
				})
			}
			if expectedLevel := pathcodec.Depth(expected) - 1; n.Level() != expectedLevel {
				levelCopy := expectedLevel
				patch.Level = &levelCopy
				report.Repairs = append(report.Repairs, Repair{
					NodeID: n.ID(), Field: "level",
					Old: fmt.Sprintf("%d", n.Level()), New: fmt.Sprintf("%d", expectedLevel),
				})
			}
		}

		if actual := index.childCount(n.ID()) > 0; n.HasChildren() != actual {
			actualCopy := actual
			patch.HasChildren = &actualCopy
			report.Repairs = append(report.Repairs, Repair{
				NodeID: n.ID(), Field: "has_children",
				Old: fmt.Sprintf("%t", n.HasChildren()), New: fmt.Sprintf("%t", actual),
			})
		}

		if patch.Path != nil || patch.Level != nil || patch.HasChildren != nil {
			patches = append(patches, PatchByID{ID: n.ID(), Patch: patch})
		}
	}

	if len(patches) > 0 {
		if err := s.store.BulkUpdate(ctx, tenantID, patches); err != nil {
			return nil, s.fail("repair", err)
		}
		s.afterMutation(tenantID, "repair")
		s.publish(HierarchyRepaired{TenantID: tenantID, Repairs: len(report.Repairs)})
	}
	return report, nil
}

// integrityIndex holds the whole tenant tree in memory for validation.
type integrityIndex struct {
	byID       map[string]entity.Entity
	childCnt   map[string]int
	pathMemo   map[string]string
	unresolved map[string]bool
}

func newIntegrityIndex(nodes []entity.Entity) *integrityIndex {
	idx := &integrityIndex{
		byID:       make(map[string]entity.Entity, len(nodes)),
		childCnt:   make(map[string]int, len(nodes)),
		pathMemo:   make(map[string]string, len(nodes)),
		unresolved: make(map[string]bool),
	}
	for _, n := range nodes {
		idx.byID[n.ID()] = n
	}
	for _, n := range nodes {
		if n.ParentID() != "" {
			idx.childCnt[n.ParentID()]++
		}
	}
	return idx
}

func (idx *integrityIndex) isOrphan(n entity.Entity) bool {
	if n.ParentID() == "" {
		return false
	}
	_, ok := idx.byID[n.ParentID()]
	return !ok
}

func (idx *integrityIndex) childCount(id string) int {
	return idx.childCnt[id]
}

// expectedPath recomputes a node's path from its parent chain. Returns false
// when the chain cannot be resolved (missing ancestor or parent cycle).
func (idx *integrityIndex) expectedPath(id string) (string, bool) {
	if p, ok := idx.pathMemo[id]; ok {
		return p, true
	}
	if idx.unresolved[id] {
		return "", false
	}
	return idx.resolvePath(id, make(map[string]bool))
}

func (idx *integrityIndex) resolvePath(id string, visiting map[string]bool) (string, bool) {
	if p, ok := idx.pathMemo[id]; ok {
		return p, true
	}
	if visiting[id] {
		idx.unresolved[id] = true
		return "", false
	}
	n, ok := idx.byID[id]
	if !ok {
		return "", false
	}
	if n.ParentID() == "" {
		p := pathcodec.Encode("", id)
		idx.pathMemo[id] = p
		return p, true
	}

	visiting[id] = true
	parentPath, ok := idx.resolvePath(n.ParentID(), visiting)
	delete(visiting, id)
	if !ok {
		idx.unresolved[id] = true
		return "", false
	}
	p := pathcodec.Encode(parentPath, id)
	idx.pathMemo[id] = p
	return p, true
}
