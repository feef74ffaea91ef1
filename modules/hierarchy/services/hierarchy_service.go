package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/pkg/eventbus"
	"github.com/tradelift/tradelift-sdk/pkg/pathcodec"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

// ErrEntityNotFound is the sentinel every HierarchyStore implementation
// returns when a lookup misses (absent id or wrong tenant).
var ErrEntityNotFound = errors.New("entity not found")

type Filter struct {
	Kind       entity.Kind // zero value matches any kind
	ParentID   *string     // "" matches roots
	PathPrefix string
	MaxLevel   *int
}

type Patch struct {
	ParentID    *string
	Path        *string
	Level       *int
	HasChildren *bool
}

type PatchByID struct {
	ID    string
	Patch Patch
}

// HierarchyStore is the per-tenant document-store boundary. Writes are
// atomic per record only; multi-record consistency is the service's job.
type HierarchyStore interface {
	FindByID(ctx context.Context, tenantID uuid.UUID, id string) (entity.Entity, error)
	Find(ctx context.Context, tenantID uuid.UUID, f Filter) ([]entity.Entity, error)
	Insert(ctx context.Context, tenantID uuid.UUID, e entity.Entity) error
	UpdateOne(ctx context.Context, tenantID uuid.UUID, id string, p Patch) error
	BulkUpdate(ctx context.Context, tenantID uuid.UUID, patches []PatchByID) error
	DeleteMany(ctx context.Context, tenantID uuid.UUID, f Filter) (int64, error)
	CountPrefix(ctx context.Context, tenantID uuid.UUID, pathPrefix string) (int64, error)
}

type DeleteStrategy string

const (
	DeleteCascade           DeleteStrategy = "cascade"
	DeleteMoveToParent      DeleteStrategy = "move_to_parent"
	DeletePreventIfChildren DeleteStrategy = "prevent_if_children"
)

// TreeNode is a nested read-only view assembled from the flat entity set.
type TreeNode struct {
	Entity   entity.Entity
	Children []*TreeNode
}

type HierarchyService struct {
	store HierarchyStore
	locks *tenantLocks
	cache TreeCache
	bus   eventbus.EventBus
	log   *logrus.Logger
}

type Option func(*HierarchyService)

func WithCache(cache TreeCache) Option {
	return func(s *HierarchyService) { s.cache = cache }
}

func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *HierarchyService) { s.bus = bus }
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *HierarchyService) { s.log = log }
}

func NewHierarchyService(store HierarchyStore, opts ...Option) *HierarchyService {
	s := &HierarchyService{
		store: store,
		locks: newTenantLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateNode inserts e as a leaf. The node record is persisted with its
// final path before the parent's hasChildren flag is touched, so readers
// never observe a child without its path.
func (s *HierarchyService) CreateNode(ctx context.Context, tenantID uuid.UUID, e entity.Entity, parentID string) (entity.Entity, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}
	if e == nil {
		return nil, serrors.New(400, "HIER_INVALID_BODY", "entity is required")
	}
	if err := pathcodec.ValidateID(e.ID()); err != nil {
		return nil, serrors.Wrap(err, 400, "HIER_INVALID_BODY", "invalid entity id")
	}
	if strings.TrimSpace(e.Name()) == "" {
		return nil, serrors.New(400, "HIER_INVALID_BODY", "entity name is required")
	}
	if e.TenantID() != tenantID {
		return nil, serrors.New(400, "HIER_TENANT_MISMATCH", "entity belongs to another tenant")
	}

	unlock := s.locks.lock(tenantID)
	defer unlock()

	if _, err := s.store.FindByID(ctx, tenantID, e.ID()); err == nil {
		return nil, serrors.New(409, "HIER_DUPLICATE_ID", fmt.Sprintf("entity %q already exists", e.ID()))
	} else if !errors.Is(err, ErrEntityNotFound) {
		return nil, s.fail("create", err)
	}

	var parent entity.Entity
	if parentID != "" {
		p, err := s.store.FindByID(ctx, tenantID, parentID)
		if errors.Is(err, ErrEntityNotFound) {
			return nil, serrors.New(404, "HIER_PARENT_NOT_FOUND", fmt.Sprintf("parent %q not found", parentID))
		}
		if err != nil {
			return nil, s.fail("create", err)
		}
		parent = p
	}

	if parent != nil {
		e.SetParentID(parent.ID())
		e.SetPath(pathcodec.Encode(parent.Path(), e.ID()))
		e.SetLevel(parent.Level() + 1)
	} else {
		e.SetParentID("")
		e.SetPath(pathcodec.Encode("", e.ID()))
		e.SetLevel(0)
	}
	e.SetHasChildren(false)

	if err := s.store.Insert(ctx, tenantID, e); err != nil {
		return nil, s.fail("create", err)
	}

	if parent != nil {
		s.setHasChildren(ctx, tenantID, parent.ID(), true)
	}

	s.afterMutation(tenantID, "create")
	s.publish(NodeCreated{TenantID: tenantID, NodeID: e.ID(), Path: e.Path()})
	return e, nil
}

// MoveNode reparents a node (empty newParentID promotes it to a root) and
// rewrites the path and level of its whole subtree. The node's old path is
// captured up front; descendants are found by a prefix query against it
// after the node itself is updated.
func (s *HierarchyService) MoveNode(ctx context.Context, tenantID uuid.UUID, nodeID, newParentID string) (entity.Entity, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}

	unlock := s.locks.lock(tenantID)
	defer unlock()

	node, err := s.moveLocked(ctx, tenantID, nodeID, newParentID)
	if err != nil {
		return nil, err
	}

	s.afterMutation(tenantID, "move")
	return node, nil
}

func (s *HierarchyService) moveLocked(ctx context.Context, tenantID uuid.UUID, nodeID, newParentID string) (entity.Entity, error) {
	node, err := s.store.FindByID(ctx, tenantID, nodeID)
	if errors.Is(err, ErrEntityNotFound) {
		return nil, serrors.New(404, "HIER_NOT_FOUND", fmt.Sprintf("node %q not found", nodeID))
	}
	if err != nil {
		return nil, s.fail("move", err)
	}

	oldPath := node.Path()
	oldParentID := node.ParentID()

	var newPath string
	var newLevel int
	if newParentID != "" {
		if newParentID == nodeID {
			return nil, serrors.New(422, "HIER_CYCLE", "cannot move a node under itself")
		}
		parent, err := s.store.FindByID(ctx, tenantID, newParentID)
		if errors.Is(err, ErrEntityNotFound) {
			return nil, serrors.New(404, "HIER_PARENT_NOT_FOUND", fmt.Sprintf("parent %q not found", newParentID))
		}
		if err != nil {
			return nil, s.fail("move", err)
		}
		if strings.HasPrefix(parent.Path(), oldPath) {
			return nil, serrors.New(422, "HIER_CYCLE", "cannot move a node under its own descendant")
		}
		newPath = pathcodec.Encode(parent.Path(), nodeID)
		newLevel = parent.Level() + 1
	} else {
		newPath = pathcodec.Encode("", nodeID)
		newLevel = 0
	}

	parentPatch := newParentID
	if err := s.store.UpdateOne(ctx, tenantID, nodeID, Patch{
		ParentID: &parentPatch,
		Path:     &newPath,
		Level:    &newLevel,
	}); err != nil {
		return nil, s.fail("move", err)
	}

	descendants, err := s.store.Find(ctx, tenantID, Filter{PathPrefix: oldPath})
	if err != nil {
		return nil, s.fail("move", err)
	}
	patches := make([]PatchByID, 0, len(descendants))
	for _, d := range descendants {
		if d.ID() == nodeID {
			continue
		}
		descPath := newPath + strings.TrimPrefix(d.Path(), oldPath)
		descLevel := pathcodec.Depth(descPath) - 1
		patches = append(patches, PatchByID{
			ID:    d.ID(),
			Patch: Patch{Path: &descPath, Level: &descLevel},
		})
	}
	if len(patches) > 0 {
		if err := s.store.BulkUpdate(ctx, tenantID, patches); err != nil {
			return nil, s.fail("move", err)
		}
	}

	if oldParentID != "" && oldParentID != newParentID {
		s.refreshHasChildren(ctx, tenantID, oldParentID)
	}
	if newParentID != "" {
		s.setHasChildren(ctx, tenantID, newParentID, true)
	}

	node.SetParentID(newParentID)
	node.SetPath(newPath)
	node.SetLevel(newLevel)

	s.publish(NodeMoved{TenantID: tenantID, NodeID: nodeID, OldPath: oldPath, NewPath: newPath})
	return node, nil
}

// DeleteNode removes a node under the given strategy: cascade deletes the
// whole subtree, move_to_parent reparents direct children to the deleted
// node's parent first, prevent_if_children refuses when children exist.
func (s *HierarchyService) DeleteNode(ctx context.Context, tenantID uuid.UUID, nodeID string, strategy DeleteStrategy) error {
	if tenantID == uuid.Nil {
		return serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}

	unlock := s.locks.lock(tenantID)
	defer unlock()

	node, err := s.store.FindByID(ctx, tenantID, nodeID)
	if errors.Is(err, ErrEntityNotFound) {
		return serrors.New(404, "HIER_NOT_FOUND", fmt.Sprintf("node %q not found", nodeID))
	}
	if err != nil {
		return s.fail("delete", err)
	}

	children, err := s.directChildren(ctx, tenantID, nodeID)
	if err != nil {
		return s.fail("delete", err)
	}

	switch strategy {
	case DeletePreventIfChildren:
		if len(children) > 0 {
			return serrors.New(409, "HIER_HAS_CHILDREN", fmt.Sprintf("node %q has %d children", nodeID, len(children)))
		}
	case DeleteCascade:
	case DeleteMoveToParent:
		for _, child := range children {
			if _, err := s.moveLocked(ctx, tenantID, child.ID(), node.ParentID()); err != nil {
				return err
			}
		}
	default:
		return serrors.New(400, "HIER_INVALID_BODY", fmt.Sprintf("unknown delete strategy %q", strategy))
	}

	removed, err := s.store.DeleteMany(ctx, tenantID, Filter{PathPrefix: node.Path()})
	if err != nil {
		return s.fail("delete", err)
	}

	if node.ParentID() != "" {
		s.refreshHasChildren(ctx, tenantID, node.ParentID())
	}

	s.afterMutation(tenantID, "delete")
	s.publish(NodeDeleted{TenantID: tenantID, NodeID: nodeID, Strategy: strategy, Removed: removed})
	return nil
}

// GetAncestors returns the node's ancestor chain root-first. Ancestors that
// no longer resolve (orphaned subtrees) are skipped rather than failing the
// whole call.
func (s *HierarchyService) GetAncestors(ctx context.Context, tenantID uuid.UUID, nodeID string) ([]entity.Entity, error) {
	node, err := s.getNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	ancestorIDs := pathcodec.AncestorIDs(node.Path())
	out := make([]entity.Entity, 0, len(ancestorIDs))
	for _, id := range ancestorIDs {
		ancestor, err := s.store.FindByID(ctx, tenantID, id)
		if errors.Is(err, ErrEntityNotFound) {
			continue
		}
		if err != nil {
			return nil, s.fail("ancestors", err)
		}
		out = append(out, ancestor)
	}
	return out, nil
}

// GetDescendants returns every node whose path extends the given node's
// path. maxDepth > 0 bounds results to level <= node.level + maxDepth.
func (s *HierarchyService) GetDescendants(ctx context.Context, tenantID uuid.UUID, nodeID string, maxDepth int) ([]entity.Entity, error) {
	node, err := s.getNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	f := Filter{PathPrefix: node.Path()}
	if maxDepth > 0 {
		maxLevel := node.Level() + maxDepth
		f.MaxLevel = &maxLevel
	}
	matches, err := s.store.Find(ctx, tenantID, f)
	if err != nil {
		return nil, s.fail("descendants", err)
	}

	out := make([]entity.Entity, 0, len(matches))
	for _, m := range matches {
		if m.ID() == nodeID {
			continue
		}
		out = append(out, m)
	}
	sortByPath(out)
	return out, nil
}

func (s *HierarchyService) GetSiblings(ctx context.Context, tenantID uuid.UUID, nodeID string, includeSelf bool) ([]entity.Entity, error) {
	node, err := s.getNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	parentID := node.ParentID()
	matches, err := s.store.Find(ctx, tenantID, Filter{ParentID: &parentID})
	if err != nil {
		return nil, s.fail("siblings", err)
	}

	out := make([]entity.Entity, 0, len(matches))
	for _, m := range matches {
		if !includeSelf && m.ID() == nodeID {
			continue
		}
		out = append(out, m)
	}
	sortByPath(out)
	return out, nil
}

// GetTree assembles a nested view. Empty rootID starts from every root of
// the tenant; maxDepth > 0 bounds the view depth relative to each starting
// node. The nested structure is built from an arena plus a parent index, so
// concurrent readers never share mutable nested nodes.
func (s *HierarchyService) GetTree(ctx context.Context, tenantID uuid.UUID, rootID string, maxDepth int) ([]*TreeNode, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}

	cacheKey := fmt.Sprintf("%stree:%s:%d", tenantPrefix(tenantID), rootID, maxDepth)
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if tree, ok := v.([]*TreeNode); ok {
				return tree, nil
			}
		}
	}

	var nodes []entity.Entity
	var roots []entity.Entity
	if rootID == "" {
		all, err := s.store.Find(ctx, tenantID, Filter{})
		if err != nil {
			return nil, s.fail("tree", err)
		}
		nodes = all
		for _, n := range all {
			if n.ParentID() == "" {
				roots = append(roots, n)
			}
		}
	} else {
		root, err := s.getNode(ctx, tenantID, rootID)
		if err != nil {
			return nil, err
		}
		subtree, err := s.store.Find(ctx, tenantID, Filter{PathPrefix: root.Path()})
		if err != nil {
			return nil, s.fail("tree", err)
		}
		nodes = subtree
		roots = []entity.Entity{root}
	}

	childrenByParent := make(map[string][]entity.Entity, len(nodes))
	for _, n := range nodes {
		childrenByParent[n.ParentID()] = append(childrenByParent[n.ParentID()], n)
	}
	for parentID := range childrenByParent {
		sortByPath(childrenByParent[parentID])
	}

	var build func(n entity.Entity, depth int) *TreeNode
	build = func(n entity.Entity, depth int) *TreeNode {
		tn := &TreeNode{Entity: n}
		if maxDepth > 0 && depth >= maxDepth {
			return tn
		}
		for _, child := range childrenByParent[n.ID()] {
			tn.Children = append(tn.Children, build(child, depth+1))
		}
		return tn
	}

	sortByPath(roots)
	out := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, 0))
	}

	if s.cache != nil {
		s.cache.Set(cacheKey, out)
	}
	return out, nil
}

// SearchInHierarchy fuzzy-matches term against node names and descriptions,
// optionally restricted to the subtree rooted at rootID.
func (s *HierarchyService) SearchInHierarchy(ctx context.Context, tenantID uuid.UUID, term, rootID string) ([]entity.Entity, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, serrors.New(400, "HIER_INVALID_BODY", "search term is required")
	}

	f := Filter{}
	if rootID != "" {
		root, err := s.getNode(ctx, tenantID, rootID)
		if err != nil {
			return nil, err
		}
		f.PathPrefix = root.Path()
	}
	candidates, err := s.store.Find(ctx, tenantID, f)
	if err != nil {
		return nil, s.fail("search", err)
	}

	out := make([]entity.Entity, 0, 8)
	for _, c := range candidates {
		if fuzzy.MatchFold(term, c.Name()) || fuzzy.MatchFold(term, c.Description()) {
			out = append(out, c)
		}
	}
	sortByPath(out)
	return out, nil
}

// SubtreeSize counts the node plus all of its descendants.
func (s *HierarchyService) SubtreeSize(ctx context.Context, tenantID uuid.UUID, nodeID string) (int64, error) {
	node, err := s.getNode(ctx, tenantID, nodeID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.CountPrefix(ctx, tenantID, node.Path())
	if err != nil {
		return 0, s.fail("size", err)
	}
	return n, nil
}

// ListByKind returns every entity of one kind in the tenant, path-ordered.
func (s *HierarchyService) ListByKind(ctx context.Context, tenantID uuid.UUID, kind entity.Kind) ([]entity.Entity, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}
	matches, err := s.store.Find(ctx, tenantID, Filter{Kind: kind})
	if err != nil {
		return nil, s.fail("list", err)
	}
	sortByPath(matches)
	return matches, nil
}

func (s *HierarchyService) getNode(ctx context.Context, tenantID uuid.UUID, nodeID string) (entity.Entity, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "HIER_NO_TENANT", "tenant_id is required")
	}
	node, err := s.store.FindByID(ctx, tenantID, nodeID)
	if errors.Is(err, ErrEntityNotFound) {
		return nil, serrors.New(404, "HIER_NOT_FOUND", fmt.Sprintf("node %q not found", nodeID))
	}
	if err != nil {
		return nil, s.fail("get", err)
	}
	return node, nil
}

func (s *HierarchyService) directChildren(ctx context.Context, tenantID uuid.UUID, nodeID string) ([]entity.Entity, error) {
	return s.store.Find(ctx, tenantID, Filter{ParentID: &nodeID})
}

// setHasChildren force-sets the flag. Runs after the structural write and is
// idempotent; a failure here leaves a repairable inconsistency, not a broken
// tree, so it is logged rather than surfaced.
func (s *HierarchyService) setHasChildren(ctx context.Context, tenantID uuid.UUID, nodeID string, has bool) {
	if err := s.store.UpdateOne(ctx, tenantID, nodeID, Patch{HasChildren: &has}); err != nil {
		s.warn(tenantID, nodeID, "has_children update failed", err)
	}
}

// refreshHasChildren recomputes the flag from the current child count.
func (s *HierarchyService) refreshHasChildren(ctx context.Context, tenantID uuid.UUID, nodeID string) {
	children, err := s.directChildren(ctx, tenantID, nodeID)
	if err != nil {
		s.warn(tenantID, nodeID, "has_children recount failed", err)
		return
	}
	s.setHasChildren(ctx, tenantID, nodeID, len(children) > 0)
}

func (s *HierarchyService) afterMutation(tenantID uuid.UUID, op string) {
	if s.cache != nil {
		s.cache.Invalidate(tenantPrefix(tenantID))
	}
	hierarchyMutations.WithLabelValues(op, "ok").Inc()
}

func (s *HierarchyService) fail(op string, err error) error {
	hierarchyMutations.WithLabelValues(op, "error").Inc()
	return err
}

func (s *HierarchyService) publish(event interface{}) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

func (s *HierarchyService) warn(tenantID uuid.UUID, nodeID, msg string, err error) {
	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"node_id":   nodeID,
		}).WithError(err).Warn(msg)
	}
}

func tenantPrefix(tenantID uuid.UUID) string {
	return "hier:" + tenantID.String() + ":"
}

func sortByPath(entities []entity.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Path() < entities[j].Path()
	})
}
