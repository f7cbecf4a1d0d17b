package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stone-ledger/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testBatch(id string, total int64) ledger.Batch {
	return ledger.Batch{
		ID:            ledger.BatchID(id),
		Description:   "carrara slabs",
		TotalQuantity: total,
		CreatedAt:     time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testDelegation(id, batchID string, qty int64) ledger.Delegation {
	return ledger.Delegation{
		ID:                ledger.DelegationID(id),
		BatchID:           ledger.BatchID(batchID),
		SellerID:          "seller-1",
		DelegatedQuantity: qty,
		AgreedFloorPrice:  price("100"),
		Status:            ledger.DelegationActive,
		CreatedAt:         time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
	}
}

func testOffer(id, batchID, delegationID string, qty int64, status ledger.OfferStatus) ledger.Offer {
	return ledger.Offer{
		ID:              ledger.OfferID(id),
		BatchID:         ledger.BatchID(batchID),
		DelegationID:    ledger.DelegationID(delegationID),
		ClientRef:       "client-" + id,
		UnitPrice:       price("150"),
		QuantityOffered: qty,
		Status:          status,
		CreatedAt:       time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
	}
}

func assertSnapshot(t *testing.T, got ledger.Snapshot, want ledger.Snapshot) {
	t.Helper()
	want.BatchID = got.BatchID
	if got != want {
		t.Errorf("snapshot mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func assertConservation(t *testing.T, s ledger.Snapshot) {
	t.Helper()
	if s.Sold+s.Reserved+s.SoftReserved+s.Available != s.Total {
		t.Errorf("conservation violated: sold=%d reserved=%d soft=%d available=%d total=%d",
			s.Sold, s.Reserved, s.SoftReserved, s.Available, s.Total)
	}
	if s.Available < 0 {
		t.Errorf("available went negative: %d", s.Available)
	}
}

// =============================================================================
// SNAPSHOT COMPUTATION
// =============================================================================

func TestComputeSnapshot_EmptyBatch(t *testing.T) {
	// GIVEN: Batch total=10, no delegations, no offers
	// WHEN: Computing the snapshot
	// THEN: Everything is available

	snap := ledger.ComputeSnapshot(testBatch("b1", 10), nil, nil)

	assertSnapshot(t, snap, ledger.Snapshot{Total: 10, Available: 10})
	assertConservation(t, snap)
}

func TestComputeSnapshot_ZeroTotal(t *testing.T) {
	// GIVEN: Batch total=0
	// WHEN: Computing the snapshot
	// THEN: Available is 0, no negative figures anywhere

	snap := ledger.ComputeSnapshot(testBatch("b1", 0), nil, nil)

	assertSnapshot(t, snap, ledger.Snapshot{})
	assertConservation(t, snap)
}

func TestComputeSnapshot_DelegationSoftReserves(t *testing.T) {
	// GIVEN: Batch total=10 with a delegation of 4
	// WHEN: Computing the snapshot
	// THEN: The grant soft-reserves 4, leaving 6 available

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{testDelegation("d1", "b1", 4)},
		nil,
	)

	assertSnapshot(t, snap, ledger.Snapshot{
		Total: 10, DelegatedHold: 4, SoftReserved: 4, Available: 6,
	})
	assertConservation(t, snap)
}

func TestComputeSnapshot_ActiveDelegatedOfferDoesNotDoubleCount(t *testing.T) {
	// GIVEN: Delegation of 4 and an active offer for 3 under it
	// WHEN: Computing the snapshot
	// THEN: The batch view is unchanged - the grant's unconsumed balance
	//       already covers the offer's capacity

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{testDelegation("d1", "b1", 4)},
		[]ledger.Offer{testOffer("o1", "b1", "d1", 3, ledger.OfferActive)},
	)

	assertSnapshot(t, snap, ledger.Snapshot{
		Total: 10, DelegatedHold: 4, SoftReserved: 4, Available: 6,
	})
	assertConservation(t, snap)
}

func TestComputeSnapshot_ReservedDelegatedOfferMovesHoldToReserved(t *testing.T) {
	// GIVEN: Delegation of 4 with a reserved offer for 3 under it
	// WHEN: Computing the snapshot
	// THEN: 3 hard-locks; the grant's unconsumed balance drops to 1

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{testDelegation("d1", "b1", 4)},
		[]ledger.Offer{testOffer("o1", "b1", "d1", 3, ledger.OfferReserved)},
	)

	assertSnapshot(t, snap, ledger.Snapshot{
		Total: 10, Reserved: 3, DelegatedHold: 1, SoftReserved: 1, Available: 6,
	})
	assertConservation(t, snap)
}

func TestComputeSnapshot_SoldDelegatedOffer(t *testing.T) {
	// GIVEN: Delegation of 4 with a sold offer for 3 under it
	// WHEN: Computing the snapshot
	// THEN: sold=3, the grant keeps soft-reserving its last unit

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{testDelegation("d1", "b1", 4)},
		[]ledger.Offer{testOffer("o1", "b1", "d1", 3, ledger.OfferSold)},
	)

	assertSnapshot(t, snap, ledger.Snapshot{
		Total: 10, Sold: 3, DelegatedHold: 1, SoftReserved: 1, Available: 6,
	})
	assertConservation(t, snap)
}

func TestComputeSnapshot_DirectOfferHolds(t *testing.T) {
	// GIVEN: Direct offers in every state
	// WHEN: Computing the snapshot
	// THEN: active/pending count as direct hold; reserved and sold count in
	//       their own buckets; expired contributes nothing

	offers := []ledger.Offer{
		testOffer("o1", "b1", "", 2, ledger.OfferActive),
		testOffer("o2", "b1", "", 1, ledger.OfferReservationPending),
		testOffer("o3", "b1", "", 3, ledger.OfferReserved),
		testOffer("o4", "b1", "", 2, ledger.OfferSold),
		testOffer("o5", "b1", "", 5, ledger.OfferExpired),
	}
	snap := ledger.ComputeSnapshot(testBatch("b1", 12), nil, offers)

	assertSnapshot(t, snap, ledger.Snapshot{
		Total: 12, Sold: 2, Reserved: 3, DirectHold: 3, SoftReserved: 3, Available: 4,
	})
	assertConservation(t, snap)
}

func TestComputeSnapshot_ArchivedDelegationReleasesBalance(t *testing.T) {
	// GIVEN: An archived delegation of 5 with a sold offer for 2 under it
	// WHEN: Computing the snapshot
	// THEN: The sold quantity stays sold but the unconsumed 3 is released

	d := testDelegation("d1", "b1", 5)
	d.Status = ledger.DelegationArchived

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{d},
		[]ledger.Offer{testOffer("o1", "b1", "d1", 2, ledger.OfferSold)},
	)

	assertSnapshot(t, snap, ledger.Snapshot{Total: 10, Sold: 2, Available: 8})
	assertConservation(t, snap)
}

func TestComputeSnapshot_IgnoresOtherBatches(t *testing.T) {
	// GIVEN: Delegations and offers referencing a different batch
	// WHEN: Computing the snapshot with unfiltered inputs
	// THEN: Foreign records are ignored

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{testDelegation("d1", "other", 4)},
		[]ledger.Offer{testOffer("o1", "other", "", 3, ledger.OfferSold)},
	)

	assertSnapshot(t, snap, ledger.Snapshot{Total: 10, Available: 10})
}

func TestComputeSnapshot_OverGrantedDelegationClampsAtZero(t *testing.T) {
	// GIVEN: A delegation whose sold+reserved consumption exceeds its grant
	//        (possible after an archived-then-unarchived style data fix)
	// WHEN: Computing the snapshot
	// THEN: The delegation's remaining balance clamps at 0, never negative

	snap := ledger.ComputeSnapshot(
		testBatch("b1", 10),
		[]ledger.Delegation{testDelegation("d1", "b1", 2)},
		[]ledger.Offer{testOffer("o1", "b1", "d1", 3, ledger.OfferSold)},
	)

	if snap.DelegatedHold != 0 {
		t.Errorf("expected delegated hold clamped to 0, got %d", snap.DelegatedHold)
	}
	if snap.Sold != 3 {
		t.Errorf("expected sold=3, got %d", snap.Sold)
	}
}

func TestComputeSnapshot_PureAndIdempotent(t *testing.T) {
	// GIVEN: A mixed set of delegations and offers
	// WHEN: Computing the snapshot twice on identical inputs
	// THEN: Outputs are identical and inputs are untouched

	b := testBatch("b1", 20)
	delegations := []ledger.Delegation{testDelegation("d1", "b1", 6)}
	offers := []ledger.Offer{
		testOffer("o1", "b1", "d1", 2, ledger.OfferReserved),
		testOffer("o2", "b1", "", 4, ledger.OfferActive),
		testOffer("o3", "b1", "", 3, ledger.OfferSold),
	}

	first := ledger.ComputeSnapshot(b, delegations, offers)
	second := ledger.ComputeSnapshot(b, delegations, offers)

	if first != second {
		t.Errorf("snapshot not idempotent:\n first  %+v\n second %+v", first, second)
	}
	if delegations[0].DelegatedQuantity != 6 || offers[0].Status != ledger.OfferReserved {
		t.Error("ComputeSnapshot mutated its inputs")
	}
	assertConservation(t, first)
}
