/*
snapshot.go - Quantity ledger: derived figures for one batch

PURPOSE:
  Computes the three aggregate figures (sold, reserved, available) plus the
  hold breakdown for a single batch from the delegations and offers that
  reference it. This is the central calculation that answers "how much of
  this batch can still be sold?"

KEY INSIGHT:
  Derived figures are never stored. Every read path recomputes them from
  the source collections, so they can never drift out of sync with the
  offers and delegations that justify them.

SNAPSHOT COMPONENTS:
  Sold:          quantity on offers finalized as sold (left stock forever)
  Reserved:      hard lock - owner-approved reservations
  DirectHold:    owner-direct offers still active or awaiting approval
  DelegatedHold: unconsumed balance of active delegations - the owner cannot
                 resell granted capacity even before a client claims it
  SoftReserved:  DirectHold + DelegatedHold
  Available:     what is left to sell = total - sold - reserved - soft

ACCOUNTING RULE FOR DELEGATED OFFERS:
  A delegated offer in active/reservation_pending does NOT appear in any
  hold of its own: the issuing delegation's gross unconsumed balance already
  soft-reserves that capacity. Counting both would double-book. Only sold
  and reserved move quantity out of the delegated hold.

GUARANTEES:
  ComputeSnapshot is pure, deterministic and idempotent. It never mutates
  its inputs. Inputs referencing a different batch are ignored, so callers
  may pass unfiltered slices.

SEE ALSO:
  - delegation.go: Seller-facing net balance (a different view of the same
    consumption totals)
  - engine.go: ReconcileAll maps every batch through this function
*/
package ledger

// =============================================================================
// SNAPSHOT - Derived quantity figures for one batch
// =============================================================================

// Snapshot holds the reconciled figures for one batch.
// Invariant after reconciliation of guarded mutations:
//
//	Sold + Reserved + SoftReserved + Available == Total
//	Available >= 0
//
// An administrative total correction may legally drop the total below the
// outstanding soft holds; Available then clamps at 0 and the equality holds
// again once those holds resolve.
type Snapshot struct {
	BatchID BatchID

	Total    int64
	Sold     int64
	Reserved int64

	// Hold breakdown
	DirectHold    int64
	DelegatedHold int64
	SoftReserved  int64 // DirectHold + DelegatedHold

	Available int64
}

// BatchView pairs a batch with its reconciled snapshot. This is what the
// reconciliation engine hands to presentation layers.
type BatchView struct {
	Batch    Batch
	Snapshot Snapshot
}

// ComputeSnapshot reconciles one batch against the delegations and offers
// that reference it.
func ComputeSnapshot(batch Batch, delegations []Delegation, offers []Offer) Snapshot {
	snap := Snapshot{BatchID: batch.ID, Total: batch.TotalQuantity}

	// Consumption by delegation, counting only statuses that commit stock.
	// Used below for the owner-facing unconsumed balance of each grant.
	consumed := make(map[DelegationID]int64)

	for _, o := range offers {
		if o.BatchID != batch.ID {
			continue
		}
		switch o.Status {
		case OfferSold:
			snap.Sold += o.QuantityOffered
		case OfferReserved:
			snap.Reserved += o.QuantityOffered
		case OfferActive, OfferReservationPending:
			if o.IsDirect() {
				snap.DirectHold += o.QuantityOffered
			}
			// Delegated offers in these states are already covered by the
			// delegation's unconsumed balance below.
		case OfferExpired:
			// Releases every hold it contributed.
		}
		if !o.IsDirect() && (o.Status == OfferSold || o.Status == OfferReserved) {
			consumed[o.DelegationID] += o.QuantityOffered
		}
	}

	for _, d := range delegations {
		if d.BatchID != batch.ID || d.Status != DelegationActive {
			continue
		}
		remaining := d.DelegatedQuantity - consumed[d.ID]
		if remaining < 0 {
			remaining = 0
		}
		snap.DelegatedHold += remaining
	}

	snap.SoftReserved = snap.DirectHold + snap.DelegatedHold

	snap.Available = snap.Total - snap.Sold - snap.Reserved - snap.SoftReserved
	if snap.Available < 0 {
		snap.Available = 0
	}
	return snap
}
