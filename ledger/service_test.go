package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/warp/stone-ledger/ledger"
	"github.com/warp/stone-ledger/ledger/store"
)

// =============================================================================
// SERVICE - store-backed orchestration
// =============================================================================

func newTestService() *ledger.Service {
	return ledger.NewService(store.NewMemory())
}

func TestService_FullFlowPersists(t *testing.T) {
	// GIVEN: A fresh service over a memory store
	// WHEN: Registering a batch, delegating, offering and selling
	// THEN: Every step survives a reload from the store

	ctx := context.Background()
	svc := newTestService()

	b, err := svc.RegisterBatch(ctx, "verde alpi slabs", 10)
	if err != nil {
		t.Fatalf("register batch: %v", err)
	}

	d, err := svc.CreateDelegation(ctx, b.ID, "seller-9", 4, price("110"))
	if err != nil {
		t.Fatalf("create delegation: %v", err)
	}

	o, err := svc.CreateOffer(ctx, ledger.CreateOfferParams{
		BatchID:      b.ID,
		DelegationID: d.ID,
		ClientRef:    "client-77",
		UnitPrice:    price("160"),
		Quantity:     3,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	for _, target := range []ledger.OfferStatus{
		ledger.OfferReservationPending,
		ledger.OfferReserved,
		ledger.OfferSold,
	} {
		if _, err := svc.TransitionOffer(ctx, o.ID, target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	snap, err := svc.Snapshot(ctx, b.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	assertSnapshot(t, snap, ledger.Snapshot{
		Total: 10, Sold: 3, DelegatedHold: 1, SoftReserved: 1, Available: 6,
	})

	// Reload and verify persisted status.
	c, err := svc.Collections(ctx)
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	if c.Offers[o.ID].Status != ledger.OfferSold {
		t.Errorf("persisted offer status = %s, want sold", c.Offers[o.ID].Status)
	}
}

func TestService_GuardFailureLeavesStoreUntouched(t *testing.T) {
	// GIVEN: A batch of 5
	// WHEN: An oversized offer is rejected
	// THEN: Nothing was persisted

	ctx := context.Background()
	svc := newTestService()

	b, _ := svc.RegisterBatch(ctx, "slabs", 5)

	_, err := svc.CreateOffer(ctx, ledger.CreateOfferParams{
		BatchID:   b.ID,
		ClientRef: "client-1",
		UnitPrice: price("90"),
		Quantity:  6,
	})
	if !errors.Is(err, ledger.ErrInsufficientAvailable) {
		t.Fatalf("expected ErrInsufficientAvailable, got %v", err)
	}

	c, _ := svc.Collections(ctx)
	if len(c.Offers) != 0 {
		t.Errorf("rejected offer leaked into the store: %d offers", len(c.Offers))
	}
}

func TestService_RevokePersistsOutcome(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	b, _ := svc.RegisterBatch(ctx, "slabs", 10)

	// Unconsumed grant: revoke deletes.
	d1, _ := svc.CreateDelegation(ctx, b.ID, "seller-1", 3, price("100"))
	_, outcome, err := svc.RevokeDelegation(ctx, d1.ID)
	if err != nil || outcome != ledger.RevokeDeleted {
		t.Fatalf("revoke: outcome=%s err=%v", outcome, err)
	}

	// Grant with sold history: revoke archives.
	d2, _ := svc.CreateDelegation(ctx, b.ID, "seller-2", 3, price("100"))
	o, _ := svc.CreateOffer(ctx, ledger.CreateOfferParams{
		BatchID: b.ID, DelegationID: d2.ID, ClientRef: "c", UnitPrice: price("140"), Quantity: 2,
	})
	if _, err := svc.TransitionOffer(ctx, o.ID, ledger.OfferSold); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	_, outcome, err = svc.RevokeDelegation(ctx, d2.ID)
	if err != nil || outcome != ledger.RevokeArchived {
		t.Fatalf("revoke: outcome=%s err=%v", outcome, err)
	}

	c, _ := svc.Collections(ctx)
	if _, ok := c.Delegations[d1.ID]; ok {
		t.Error("deleted delegation still in store")
	}
	if c.Delegations[d2.ID].Status != ledger.DelegationArchived {
		t.Error("archived delegation not persisted")
	}
}

func TestService_ExpireLapsedUsesInjectedClock(t *testing.T) {
	// GIVEN: An offer expiring at noon and a clock pinned after noon
	// WHEN: Running the sweep
	// THEN: The offer is expired and persisted

	ctx := context.Background()
	noon := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)

	svc := newTestService().WithClock(func() time.Time { return noon.Add(-time.Hour) })
	b, _ := svc.RegisterBatch(ctx, "slabs", 10)

	expiry := noon
	o, err := svc.CreateOffer(ctx, ledger.CreateOfferParams{
		BatchID: b.ID, ClientRef: "c", UnitPrice: price("100"), Quantity: 4, ExpiresAt: &expiry,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	// Before expiry: nothing to sweep.
	expired, err := svc.ExpireLapsed(ctx)
	if err != nil || len(expired) != 0 {
		t.Fatalf("premature sweep: %v %v", expired, err)
	}

	// After expiry: the offer lapses.
	svc.WithClock(func() time.Time { return noon.Add(time.Hour) })
	expired, err = svc.ExpireLapsed(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != o.ID {
		t.Fatalf("expected offer %s expired, got %v", o.ID, expired)
	}

	snap, _ := svc.Snapshot(ctx, b.ID)
	if snap.Available != 10 {
		t.Errorf("available after sweep = %d, want 10", snap.Available)
	}
}

func TestService_ConcurrentOffersNeverOversell(t *testing.T) {
	// GIVEN: A batch of 10 and many concurrent direct offers of 3
	// WHEN: All race through the service
	// THEN: At most 3 succeed; the ledger never oversells

	ctx := context.Background()
	svc := newTestService()
	b, _ := svc.RegisterBatch(ctx, "slabs", 10)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOffer(ctx, ledger.CreateOfferParams{
				BatchID: b.ID, ClientRef: "c", UnitPrice: price("100"), Quantity: 3,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ledger.ErrInsufficientAvailable) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Errorf("%d offers succeeded, want 3", succeeded)
	}

	snap, _ := svc.Snapshot(ctx, b.ID)
	assertConservation(t, snap)
	if snap.DirectHold != 9 {
		t.Errorf("direct hold = %d, want 9", snap.DirectHold)
	}
}
