/*
delegation.go - Delegation quota accounting

PURPOSE:
  Answers "how much can this seller still offer against this delegation
  right now?" and decides what happens to a delegation on revocation.

TWO VIEWS OF THE SAME GRANT:
  NetAvailable (seller-facing):
    delegated - sum(offers in {sold, reserved, active, reservation_pending})
    The seller's own open offers count against what they can still issue.

  RemainingBalance (owner-facing, = the delegation's DelegatedHold
  contribution in snapshot.go):
    max(0, delegated - sum(offers in {sold, reserved}))
    The owner cares what is left of the grant; the seller's open offers are
    the seller's problem, and counting them here would double-book against
    the snapshot's hold accounting.

  Both views agree on total consumption; they differ only in whether the
  seller's open offers are subtracted.

REVOCATION:
  - Any offer in active/reservation_pending/reserved blocks revocation
  - Zero consumption: the delegation record is deleted outright
  - Sold history: the delegation is archived (kept for audit); either way
    the unconsumed balance is released back to the batch
*/
package ledger

// NetAvailable is the seller-facing balance: the grant minus every offer
// the seller has issued that is not yet expired.
func NetAvailable(d Delegation, offers []Offer) int64 {
	open := int64(0)
	for _, o := range offers {
		if o.DelegationID != d.ID {
			continue
		}
		switch o.Status {
		case OfferSold, OfferReserved, OfferActive, OfferReservationPending:
			open += o.QuantityOffered
		}
	}
	return d.DelegatedQuantity - open
}

// RemainingBalance is the owner-facing unconsumed balance: the grant minus
// quantity committed by sold or hard-reserved offers, floored at zero.
// Archived delegations have released their balance and report zero.
func RemainingBalance(d Delegation, offers []Offer) int64 {
	if d.Status != DelegationActive {
		return 0
	}
	consumed := int64(0)
	for _, o := range offers {
		if o.DelegationID != d.ID {
			continue
		}
		if o.Status == OfferSold || o.Status == OfferReserved {
			consumed += o.QuantityOffered
		}
	}
	remaining := d.DelegatedQuantity - consumed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RevokeOutcome says what RevokeDelegation did with the record.
type RevokeOutcome string

const (
	// RevokeDeleted: no consumption ever happened; the record is gone.
	RevokeDeleted RevokeOutcome = "deleted"

	// RevokeArchived: sold offers exist; the record is kept for audit with
	// its balance released.
	RevokeArchived RevokeOutcome = "archived"
)

// revocationOutcome inspects a delegation's offers and decides whether a
// revoke may proceed and how. Holding offers block it entirely.
func revocationOutcome(d Delegation, offers []Offer) (RevokeOutcome, error) {
	holding := 0
	soldExists := false
	for _, o := range offers {
		if o.DelegationID != d.ID {
			continue
		}
		switch o.Status {
		case OfferActive, OfferReservationPending, OfferReserved:
			holding++
		case OfferSold:
			soldExists = true
		}
	}
	if holding > 0 {
		return "", &ActiveHoldsError{DelegationID: d.ID, HoldingCount: holding}
	}
	if soldExists {
		return RevokeArchived, nil
	}
	return RevokeDeleted, nil
}
