/*
service.go - Store-backed orchestration with the mutation lock

PURPOSE:
  Service is the serialization point the concurrency model requires: every
  mutating operation runs load -> guard -> mutate -> persist under one lock,
  so a guard can never validate against figures another writer is changing.
  The engine functions themselves stay pure and lock-free.

ID GENERATION:
  Record ids are minted here (UUIDs) so the engine never depends on a
  source of randomness and stays deterministic for tests.

CLOCK:
  time.Now is injected so tests can pin the clock (expiry sweeps).

SEE ALSO:
  - engine.go: The guarded operations this service drives
  - api/handlers.go: HTTP shell over this service
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service drives the engine against a Store. All mutations on a Service
// are serialized; hosts needing multi-process safety must add an external
// lock or transaction around the store.
type Service struct {
	store Store

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// BATCH OPERATIONS
// =============================================================================

func (s *Service) RegisterBatch(ctx context.Context, description string, totalQuantity int64) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return Batch{}, err
	}

	b, err := RegisterBatch(c, Batch{
		ID:            BatchID(s.newID()),
		Description:   description,
		TotalQuantity: totalQuantity,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return Batch{}, err
	}
	if err := s.store.SaveBatch(ctx, b); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func (s *Service) AdjustBatchTotal(ctx context.Context, batchID BatchID, newTotal int64) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return Batch{}, err
	}

	b, err := AdjustBatchTotal(c, batchID, newTotal)
	if err != nil {
		return Batch{}, err
	}
	if err := s.store.SaveBatch(ctx, b); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// =============================================================================
// DELEGATION OPERATIONS
// =============================================================================

func (s *Service) CreateDelegation(ctx context.Context, batchID BatchID, sellerID SellerID, quantity int64, floorPrice decimal.Decimal) (Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return Delegation{}, err
	}

	d, err := CreateDelegation(c, CreateDelegationInput{
		ID:               DelegationID(s.newID()),
		BatchID:          batchID,
		SellerID:         sellerID,
		Quantity:         quantity,
		AgreedFloorPrice: floorPrice,
		Now:              s.now(),
	})
	if err != nil {
		return Delegation{}, err
	}
	if err := s.store.SaveDelegation(ctx, d); err != nil {
		return Delegation{}, err
	}
	return d, nil
}

func (s *Service) RevokeDelegation(ctx context.Context, delegationID DelegationID) (Delegation, RevokeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return Delegation{}, "", err
	}

	d, outcome, err := RevokeDelegation(c, delegationID)
	if err != nil {
		return Delegation{}, "", err
	}

	switch outcome {
	case RevokeDeleted:
		err = s.store.DeleteDelegation(ctx, delegationID)
	case RevokeArchived:
		err = s.store.SaveDelegation(ctx, d)
	}
	if err != nil {
		return Delegation{}, "", err
	}
	return d, outcome, nil
}

// =============================================================================
// OFFER OPERATIONS
// =============================================================================

// CreateOfferParams is the host-facing input for issuing an offer.
type CreateOfferParams struct {
	BatchID      BatchID
	DelegationID DelegationID // empty for a direct offer
	ClientRef    string
	UnitPrice    decimal.Decimal
	Quantity     int64
	ExpiresAt    *time.Time
}

func (s *Service) CreateOffer(ctx context.Context, p CreateOfferParams) (Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return Offer{}, err
	}

	o, err := CreateOffer(c, CreateOfferInput{
		ID:           OfferID(s.newID()),
		BatchID:      p.BatchID,
		DelegationID: p.DelegationID,
		ClientRef:    p.ClientRef,
		UnitPrice:    p.UnitPrice,
		Quantity:     p.Quantity,
		ExpiresAt:    p.ExpiresAt,
		Now:          s.now(),
	})
	if err != nil {
		return Offer{}, err
	}
	if err := s.store.SaveOffer(ctx, o); err != nil {
		return Offer{}, err
	}
	return o, nil
}

func (s *Service) TransitionOffer(ctx context.Context, offerID OfferID, target OfferStatus) (Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return Offer{}, err
	}

	o, err := TransitionOffer(c, offerID, target)
	if err != nil {
		return Offer{}, err
	}
	if err := s.store.SaveOffer(ctx, o); err != nil {
		return Offer{}, err
	}
	return o, nil
}

// ExpireLapsed sweeps lapsed offers to expired and persists each one.
// Intended for the host's periodic scheduler.
func (s *Service) ExpireLapsed(ctx context.Context) ([]Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.LoadCollections(ctx)
	if err != nil {
		return nil, err
	}

	expired, err := ExpireLapsed(c, s.now())
	if err != nil {
		return nil, err
	}
	for _, o := range expired {
		if err := s.store.SaveOffer(ctx, o); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Collections loads the full arena for read-only use (queries, rendering).
// The result is the caller's copy; mutating it changes nothing.
func (s *Service) Collections(ctx context.Context) (*Collections, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadCollections(ctx)
}

func (s *Service) Snapshot(ctx context.Context, batchID BatchID) (Snapshot, error) {
	c, err := s.Collections(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotFor(c, batchID)
}

func (s *Service) ReconcileAll(ctx context.Context) ([]BatchView, error) {
	c, err := s.Collections(ctx)
	if err != nil {
		return nil, err
	}
	return ReconcileAll(c), nil
}
