package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
)

// RedisTreeCache stores assembled tree views in Redis so several replicas
// share one cache. Only []*services.TreeNode values are cached; anything
// else is silently skipped.
type RedisTreeCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

func NewRedisTreeCache(client *redis.Client, ttl time.Duration, log *logrus.Logger) *RedisTreeCache {
	return &RedisTreeCache{client: client, ttl: ttl, log: log}
}

type treeNodeModel struct {
	Kind        string           `json:"kind"`
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ParentID    string           `json:"parent_id,omitempty"`
	Path        string           `json:"path"`
	Level       int              `json:"level"`
	HasChildren bool             `json:"has_children"`
	Numbers     [3]float64       `json:"numbers"` // kind-specific performance fields
	RFMLabel    string           `json:"rfm_label,omitempty"`
	Children    []*treeNodeModel `json:"children,omitempty"`
}

func (c *RedisTreeCache) Get(key string) (any, bool) {
	ctx := context.Background()
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.WithError(err).Warn("redis tree cache get failed")
		}
		return nil, false
	}

	var models []*treeNodeModel
	if err := json.Unmarshal([]byte(raw), &models); err != nil {
		if c.log != nil {
			c.log.WithError(err).Warn("redis tree cache payload corrupt")
		}
		return nil, false
	}

	out := make([]*services.TreeNode, 0, len(models))
	for _, m := range models {
		node, err := toDomainTreeNode(m)
		if err != nil {
			return nil, false
		}
		out = append(out, node)
	}
	return out, true
}

func (c *RedisTreeCache) Set(key string, value any) {
	tree, ok := value.([]*services.TreeNode)
	if !ok {
		return
	}
	models := make([]*treeNodeModel, 0, len(tree))
	for _, node := range tree {
		models = append(models, toCacheTreeNode(node))
	}
	payload, err := json.Marshal(models)
	if err != nil {
		return
	}
	if err := c.client.Set(context.Background(), key, payload, c.ttl).Err(); err != nil && c.log != nil {
		c.log.WithError(err).Warn("redis tree cache set failed")
	}
}

func (c *RedisTreeCache) Invalidate(prefix string) {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	keys := make([]string, 0, 8)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		if c.log != nil {
			c.log.WithError(err).Warn("redis tree cache scan failed")
		}
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil && c.log != nil {
			c.log.WithError(err).Warn("redis tree cache invalidate failed")
		}
	}
}

func toCacheTreeNode(node *services.TreeNode) *treeNodeModel {
	e := node.Entity
	m := &treeNodeModel{
		Kind:        string(e.Kind()),
		ID:          e.ID(),
		TenantID:    e.TenantID().String(),
		Name:        e.Name(),
		Description: e.Description(),
		ParentID:    e.ParentID(),
		Path:        e.Path(),
		Level:       e.Level(),
		HasChildren: e.HasChildren(),
	}
	switch v := e.(type) {
	case *customer.Customer:
		m.Numbers = [3]float64{v.LastPeriodSales(), v.ResponsivenessScore(), 0}
		m.RFMLabel = v.RFMLabel()
	case *product.Product:
		m.Numbers = [3]float64{v.LastPeriodVolume(), v.ListPrice(), v.MarginPercent()}
	}
	for _, child := range node.Children {
		m.Children = append(m.Children, toCacheTreeNode(child))
	}
	return m
}

func toDomainTreeNode(m *treeNodeModel) (*services.TreeNode, error) {
	tenantID, err := uuid.Parse(m.TenantID)
	if err != nil {
		return nil, err
	}

	var e entity.Entity
	switch entity.Kind(m.Kind) {
	case entity.KindProduct:
		e = product.Hydrate(
			tenantID, m.ID, m.Name, m.Description, m.ParentID, m.Path, m.Level, m.HasChildren,
			m.Numbers[0], m.Numbers[1], m.Numbers[2],
		)
	default:
		e = customer.Hydrate(
			tenantID, m.ID, m.Name, m.Description, m.ParentID, m.Path, m.Level, m.HasChildren,
			m.Numbers[0], m.Numbers[1], m.RFMLabel,
		)
	}

	node := &services.TreeNode{Entity: e}
	for _, child := range m.Children {
		childNode, err := toDomainTreeNode(child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}
