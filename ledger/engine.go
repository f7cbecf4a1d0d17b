/*
engine.go - Guarded mutations and the reconciliation engine

PURPOSE:
  The single place where the source collections change. Every operation
  follows the same shape:

    1. Resolve the records involved (not-found errors)
    2. Run the guard against freshly computed figures (client errors)
    3. Apply the mutation to the collections
    4. Re-run the quantity ledger and assert sold + reserved <= total

  Step 4 is defensive: if the creation-time guards are correct it can never
  fire. When it does fire it is a bug in this package, surfaced as an
  InvariantViolationError, and the mutation is rolled back.

CONCURRENCY:
  These functions do not lock. The caller owns the serialization point: no
  two mutations against the same batch may run concurrently, or both can
  validate against stale figures and jointly oversell. Service (service.go)
  provides that serialization for hosts that want it.

SEE ALSO:
  - snapshot.go: The pure computation every guard and post-check uses
  - service.go: Store-backed orchestration with the mutation lock
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONCILIATION ENGINE
// =============================================================================

// ReconcileAll maps every batch through the quantity ledger and returns the
// reconciled views, ordered by batch id. It never mutates its input;
// recomputation from scratch is the contract (N is small), so calling it
// after every single mutation is both safe and expected.
func ReconcileAll(c *Collections) []BatchView {
	views := make([]BatchView, 0, len(c.Batches))
	for _, b := range c.Batches {
		views = append(views, BatchView{
			Batch:    b,
			Snapshot: ComputeSnapshot(b, c.DelegationsForBatch(b.ID), c.OffersForBatch(b.ID)),
		})
	}
	// Deterministic output order
	sort.Slice(views, func(i, j int) bool { return views[i].Batch.ID < views[j].Batch.ID })
	return views
}

// checkBatchInvariant recomputes the ledger for one batch and verifies the
// hard commitments (sold + reserved) did not exceed the total. Soft holds are
// deliberately excluded: an administrative total correction may legally drop
// the total below the outstanding soft holds (available simply clamps at 0),
// and offers under such a batch must still finalize and expire.
func checkBatchInvariant(c *Collections, batchID BatchID) error {
	b, ok := c.Batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	snap := ComputeSnapshot(b, c.DelegationsForBatch(batchID), c.OffersForBatch(batchID))
	if snap.Sold+snap.Reserved > snap.Total {
		return &InvariantViolationError{
			BatchID: batchID,
			Detail:  "sold + reserved exceed total quantity",
		}
	}
	return nil
}

// =============================================================================
// BATCH OPERATIONS
// =============================================================================

// RegisterBatch adds a new batch to the collections.
func RegisterBatch(c *Collections, b Batch) (Batch, error) {
	if b.TotalQuantity < 0 {
		return Batch{}, ErrInvalidQuantity
	}
	c.PutBatch(b)
	return b, nil
}

// AdjustBatchTotal applies an administrative correction to a batch total.
// The correction is rejected with BelowCommittedError if the new total would
// drop below what is already sold plus hard-reserved.
func AdjustBatchTotal(c *Collections, batchID BatchID, newTotal int64) (Batch, error) {
	b, ok := c.Batches[batchID]
	if !ok {
		return Batch{}, ErrBatchNotFound
	}
	if newTotal < 0 {
		return Batch{}, ErrInvalidQuantity
	}

	snap := ComputeSnapshot(b, c.DelegationsForBatch(batchID), c.OffersForBatch(batchID))
	committed := snap.Sold + snap.Reserved
	if newTotal < committed {
		return Batch{}, &BelowCommittedError{BatchID: batchID, Requested: newTotal, Committed: committed}
	}

	b.TotalQuantity = newTotal
	c.PutBatch(b)
	return b, nil
}

// =============================================================================
// DELEGATION OPERATIONS
// =============================================================================

// CreateDelegationInput carries everything needed to grant a quota.
type CreateDelegationInput struct {
	ID               DelegationID
	BatchID          BatchID
	SellerID         SellerID
	Quantity         int64
	AgreedFloorPrice decimal.Decimal
	Now              time.Time
}

// CreateDelegation grants part of a batch to a reseller. The grant must fit
// in the batch's currently available quantity, so the sum of active grants
// combined with other holds can never exceed the total.
func CreateDelegation(c *Collections, in CreateDelegationInput) (Delegation, error) {
	b, ok := c.Batches[in.BatchID]
	if !ok {
		return Delegation{}, ErrBatchNotFound
	}
	if in.Quantity <= 0 {
		return Delegation{}, ErrInvalidQuantity
	}

	snap := ComputeSnapshot(b, c.DelegationsForBatch(in.BatchID), c.OffersForBatch(in.BatchID))
	if in.Quantity > snap.Available {
		return Delegation{}, &InsufficientAvailableError{
			BatchID:   in.BatchID,
			Requested: in.Quantity,
			Available: snap.Available,
		}
	}

	d := Delegation{
		ID:                in.ID,
		BatchID:           in.BatchID,
		SellerID:          in.SellerID,
		DelegatedQuantity: in.Quantity,
		AgreedFloorPrice:  in.AgreedFloorPrice,
		Status:            DelegationActive,
		CreatedAt:         in.Now,
	}
	c.PutDelegation(d)

	if err := checkBatchInvariant(c, in.BatchID); err != nil {
		delete(c.Delegations, d.ID)
		return Delegation{}, err
	}
	return d, nil
}

// RevokeDelegation withdraws a grant. It fails with ActiveHoldsError while
// any offer under the delegation is in a holding state. With no consumption
// at all the record is deleted; with sold history it is archived and its
// unconsumed balance released.
func RevokeDelegation(c *Collections, delegationID DelegationID) (Delegation, RevokeOutcome, error) {
	d, ok := c.Delegations[delegationID]
	if !ok {
		return Delegation{}, "", ErrDelegationNotFound
	}

	outcome, err := revocationOutcome(d, c.OffersForDelegation(delegationID))
	if err != nil {
		return Delegation{}, "", err
	}

	switch outcome {
	case RevokeDeleted:
		delete(c.Delegations, delegationID)
	case RevokeArchived:
		d.Status = DelegationArchived
		c.PutDelegation(d)
	}
	return d, outcome, nil
}

// =============================================================================
// OFFER OPERATIONS
// =============================================================================

// CreateOfferInput carries everything needed to issue an offer.
// Leave DelegationID empty for a direct offer from the batch owner.
type CreateOfferInput struct {
	ID           OfferID
	BatchID      BatchID
	DelegationID DelegationID
	ClientRef    string
	UnitPrice    decimal.Decimal
	Quantity     int64
	ExpiresAt    *time.Time
	Now          time.Time
}

// CreateOffer issues a new offer in the active state. A direct offer must
// fit in the batch's free stock; a delegated offer must fit in the issuing
// delegation's net balance (which already accounts for the seller's other
// open offers). Oversized requests are rejected, never clamped.
func CreateOffer(c *Collections, in CreateOfferInput) (Offer, error) {
	b, ok := c.Batches[in.BatchID]
	if !ok {
		return Offer{}, ErrBatchNotFound
	}
	if in.Quantity <= 0 {
		return Offer{}, ErrInvalidQuantity
	}

	if in.DelegationID == "" {
		snap := ComputeSnapshot(b, c.DelegationsForBatch(in.BatchID), c.OffersForBatch(in.BatchID))
		if in.Quantity > snap.Available {
			return Offer{}, &InsufficientAvailableError{
				BatchID:   in.BatchID,
				Requested: in.Quantity,
				Available: snap.Available,
			}
		}
	} else {
		d, ok := c.Delegations[in.DelegationID]
		if !ok {
			return Offer{}, ErrDelegationNotFound
		}
		if d.BatchID != in.BatchID {
			return Offer{}, ErrDelegationNotFound
		}
		if d.Status != DelegationActive {
			return Offer{}, ErrDelegationClosed
		}
		net := NetAvailable(d, c.OffersForDelegation(in.DelegationID))
		if in.Quantity > net {
			return Offer{}, &InsufficientAvailableError{
				BatchID:      in.BatchID,
				DelegationID: in.DelegationID,
				Requested:    in.Quantity,
				Available:    net,
			}
		}
	}

	o := Offer{
		ID:              in.ID,
		BatchID:         in.BatchID,
		DelegationID:    in.DelegationID,
		ClientRef:       in.ClientRef,
		UnitPrice:       in.UnitPrice,
		QuantityOffered: in.Quantity,
		Status:          OfferActive,
		CreatedAt:       in.Now,
		ExpiresAt:       in.ExpiresAt,
	}
	c.PutOffer(o)

	if err := checkBatchInvariant(c, in.BatchID); err != nil {
		delete(c.Offers, o.ID)
		return Offer{}, err
	}
	return o, nil
}

// TransitionOffer moves an offer to a target status through the state
// machine and re-runs the quantity ledger afterward. A transition that
// would leave the batch hard-committed beyond its total is rolled back with
// an invariant error; this should never happen if creation-time guards were
// enforced.
func TransitionOffer(c *Collections, offerID OfferID, target OfferStatus) (Offer, error) {
	o, ok := c.Offers[offerID]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}

	updated, err := Transition(o, target)
	if err != nil {
		return Offer{}, err
	}
	c.PutOffer(updated)

	if err := checkBatchInvariant(c, o.BatchID); err != nil {
		c.PutOffer(o)
		return Offer{}, err
	}
	return updated, nil
}

// ExpireLapsed transitions every offer whose expiry has elapsed while still
// active or awaiting approval to expired, and returns the offers it moved.
// The trigger (periodic sweep, admin action) is the host's concern; the
// engine only defines the transition's legality and effect.
func ExpireLapsed(c *Collections, now time.Time) ([]Offer, error) {
	var lapsed []OfferID
	for id, o := range c.Offers {
		if o.IsLapsed(now) {
			lapsed = append(lapsed, id)
		}
	}
	// Deterministic order
	sort.Slice(lapsed, func(i, j int) bool { return lapsed[i] < lapsed[j] })

	var expired []Offer
	for _, id := range lapsed {
		o, err := TransitionOffer(c, id, OfferExpired)
		if err != nil {
			return expired, err
		}
		expired = append(expired, o)
	}
	return expired, nil
}
