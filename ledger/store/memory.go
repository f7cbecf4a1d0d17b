// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/stone-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	batches     map[ledger.BatchID]ledger.Batch
	delegations map[ledger.DelegationID]ledger.Delegation
	offers      map[ledger.OfferID]ledger.Offer
}

func NewMemory() *Memory {
	return &Memory{
		batches:     make(map[ledger.BatchID]ledger.Batch),
		delegations: make(map[ledger.DelegationID]ledger.Delegation),
		offers:      make(map[ledger.OfferID]ledger.Offer),
	}
}

// LoadCollections returns a copy of the arena; callers can mutate it freely
// without touching the stored state.
func (m *Memory) LoadCollections(_ context.Context) (*ledger.Collections, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := ledger.NewCollections()
	for id, b := range m.batches {
		c.Batches[id] = b
	}
	for id, d := range m.delegations {
		c.Delegations[id] = d
	}
	for id, o := range m.offers {
		c.Offers[id] = o
	}
	return c, nil
}

func (m *Memory) SaveBatch(_ context.Context, b ledger.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
	return nil
}

func (m *Memory) SaveDelegation(_ context.Context, d ledger.Delegation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegations[d.ID] = d
	return nil
}

func (m *Memory) DeleteDelegation(_ context.Context, id ledger.DelegationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delegations, id)
	return nil
}

func (m *Memory) SaveOffer(_ context.Context, o ledger.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[o.ID] = o
	return nil
}
