// Package entity defines the capability interface shared by everything that
// lives in a tenant's materialized-path hierarchy.
//
// Customers and products carry different business fields but identical
// hierarchy fields; the tree algorithms operate on this interface only and
// never on a concrete entity type.
package entity

import "github.com/google/uuid"

type Kind string

const (
	KindCustomer Kind = "customer"
	KindProduct  Kind = "product"
)

// Entity is the hierarchy capability: identity plus the mutable tree fields.
// Path encodes the full ancestor chain, own id included. Level is the
// ancestor count (roots are level 0). HasChildren is a cached flag kept in
// sync by the hierarchy service.
type Entity interface {
	ID() string
	TenantID() uuid.UUID
	Kind() Kind
	Name() string
	Description() string

	ParentID() string // "" means root
	Path() string
	Level() int
	HasChildren() bool

	SetParentID(id string)
	SetPath(path string)
	SetLevel(level int)
	SetHasChildren(has bool)
}
