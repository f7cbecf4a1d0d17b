/*
offer.go - Offer status state machine

PURPOSE:
  Governs the legal lifecycle of a single offer and what each state
  contributes to reservation accounting (see snapshot.go for the latter).

STATE DIAGRAM:

  active ──▶ reservation_pending ──▶ reserved ──▶ sold (terminal)
    │  ▲             │                  │
    │  └─────────────┤ (rejection       │
    │                │  reopens)        │
    ├────────────────┴──────────────────┴──▶ expired (terminal)
    └───────────────────────────────────────▶ sold

  - active -> reservation_pending: reseller requests a hold; no stock moves
  - reservation_pending -> reserved: owner approval; stock hard-locks here
  - reservation_pending -> active: owner rejection; the offer reopens to the
    market rather than dying, since the underlying proposal is still valid
  - any non-terminal -> sold: finalize; irreversible
  - any non-terminal -> expired: cancellation or natural expiry; irreversible

  Terminal states accept no further transitions.

SEE ALSO:
  - engine.go: TransitionOffer applies a transition with the post-condition
    ledger check
*/
package ledger

import "time"

// legalTransitions maps each non-terminal state to its permitted targets.
var legalTransitions = map[OfferStatus][]OfferStatus{
	OfferActive:             {OfferReservationPending, OfferSold, OfferExpired},
	OfferReservationPending: {OfferReserved, OfferActive, OfferSold, OfferExpired},
	OfferReserved:           {OfferSold, OfferExpired},
}

// IsTerminal reports whether a status accepts no further transitions.
func (s OfferStatus) IsTerminal() bool {
	return s == OfferSold || s == OfferExpired
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to OfferStatus) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition returns a copy of the offer moved to the target status, or an
// InvalidTransitionError if the state machine forbids the move. The input
// offer is not mutated.
//
// This checks legality only. Callers that mutate collections must go through
// engine.TransitionOffer, which also re-runs the quantity ledger afterward.
func Transition(o Offer, target OfferStatus) (Offer, error) {
	if !CanTransition(o.Status, target) {
		return Offer{}, &InvalidTransitionError{OfferID: o.ID, From: o.Status, To: target}
	}
	out := o
	out.Status = target
	return out, nil
}

// IsLapsed reports whether an offer's expiry time has elapsed while it is
// still in a state the periodic sweep may expire. Reserved offers never
// lapse automatically - an approved hold is released only by explicit
// cancellation or sale.
func (o Offer) IsLapsed(now time.Time) bool {
	if o.ExpiresAt == nil {
		return false
	}
	if o.Status != OfferActive && o.Status != OfferReservationPending {
		return false
	}
	return !o.ExpiresAt.After(now)
}
