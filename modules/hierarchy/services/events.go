package services

import "github.com/google/uuid"

// Mutation events published on the event bus after each structural change.

type NodeCreated struct {
	TenantID uuid.UUID
	NodeID   string
	Path     string
}

type NodeMoved struct {
	TenantID uuid.UUID
	NodeID   string
	OldPath  string
	NewPath  string
}

type NodeDeleted struct {
	TenantID uuid.UUID
	NodeID   string
	Strategy DeleteStrategy
	Removed  int64
}

type HierarchyRepaired struct {
	TenantID uuid.UUID
	Repairs  int
}
