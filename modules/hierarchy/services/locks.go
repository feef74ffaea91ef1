package services

import (
	"sync"

	"github.com/google/uuid"
)

// tenantLocks serializes structural mutations per tenant. Mutations touch
// the node, its descendants and up to two parent flags with only per-record
// atomicity underneath, so two concurrent moves inside one tenant must not
// interleave.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (t *tenantLocks) lock(tenantID uuid.UUID) (unlock func()) {
	t.mu.Lock()
	l, ok := t.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[tenantID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
