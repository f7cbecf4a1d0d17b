/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the structured variants carry
  the quantities involved so the host can render useful messages.

ERROR CATEGORIES:
  1. Guard errors     - A requested mutation violates a business rule
  2. Not-found errors - A referenced record does not exist
  3. Invariant errors - A post-condition check failed (logic bug, not input)

PROPAGATION POLICY:
  Guard violations are detected BEFORE any mutation is applied, so there is
  never partial state to clean up. Every guard error is recoverable by the
  caller. An invariant violation is different: it means creation-time guards
  let something through and indicates a bug in this package.

USAGE:
  _, err := ledger.CreateOffer(c, in)
  if errors.Is(err, ledger.ErrInsufficientAvailable) {
      var detail *ledger.InsufficientAvailableError
      errors.As(err, &detail)
      // detail.Requested, detail.Available
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientAvailable is returned when a requested quantity exceeds
	// the batch's free stock or a delegation's net balance at validation time.
	ErrInsufficientAvailable = errors.New("insufficient available quantity")

	// ErrInvalidTransition is returned for an offer status change not
	// permitted by the state machine, including any transition out of a
	// terminal state.
	ErrInvalidTransition = errors.New("invalid offer transition")

	// ErrActiveHoldsExist is returned when revoking a delegation that still
	// has offers in a holding state (active, reservation_pending, reserved).
	ErrActiveHoldsExist = errors.New("delegation has active holds")

	// ErrBelowCommitted is returned when a batch total correction would drop
	// the total below what is already sold plus hard-reserved.
	ErrBelowCommitted = errors.New("new total below committed quantity")

	// ErrInvalidQuantity is returned for non-positive offer/delegation
	// quantities and negative batch totals.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrDelegationClosed is returned when creating an offer under an
	// archived delegation. Frozen grants permit no further offers.
	ErrDelegationClosed = errors.New("delegation no longer accepts offers")

	// ErrBatchNotFound is returned when a referenced batch doesn't exist.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrDelegationNotFound is returned when a referenced delegation doesn't exist.
	ErrDelegationNotFound = errors.New("delegation not found")

	// ErrOfferNotFound is returned when a referenced offer doesn't exist.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrInvariantViolation indicates a failed post-condition check (sold
	// plus reserved exceeded the batch total after a mutation). This is a
	// logic bug in the engine, never a user error.
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientAvailableError provides details about a capacity shortage.
type InsufficientAvailableError struct {
	BatchID      BatchID
	DelegationID DelegationID // empty when the shortage is on the batch itself
	Requested    int64
	Available    int64
}

func (e *InsufficientAvailableError) Error() string {
	if e.DelegationID != "" {
		return fmt.Sprintf("insufficient delegation balance: requested %d, available %d (delegation %s)",
			e.Requested, e.Available, e.DelegationID)
	}
	return fmt.Sprintf("insufficient batch stock: requested %d, available %d (batch %s)",
		e.Requested, e.Available, e.BatchID)
}

func (e *InsufficientAvailableError) Unwrap() error { return ErrInsufficientAvailable }

// InvalidTransitionError provides details about an illegal status change.
type InvalidTransitionError struct {
	OfferID OfferID
	From    OfferStatus
	To      OfferStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (offer %s)", e.From, e.To, e.OfferID)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ActiveHoldsError provides details about offers blocking a revocation.
type ActiveHoldsError struct {
	DelegationID DelegationID
	HoldingCount int
}

func (e *ActiveHoldsError) Error() string {
	return fmt.Sprintf("delegation %s has %d offer(s) in a holding state", e.DelegationID, e.HoldingCount)
}

func (e *ActiveHoldsError) Unwrap() error { return ErrActiveHoldsExist }

// BelowCommittedError provides details about a rejected total correction.
type BelowCommittedError struct {
	BatchID   BatchID
	Requested int64
	Committed int64 // sold + reserved
}

func (e *BelowCommittedError) Error() string {
	return fmt.Sprintf("cannot set batch %s total to %d: %d already sold or reserved",
		e.BatchID, e.Requested, e.Committed)
}

func (e *BelowCommittedError) Unwrap() error { return ErrBelowCommitted }

// InvariantViolationError reports a failed post-condition check.
type InvariantViolationError struct {
	BatchID BatchID
	Detail  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on batch %s: %s", e.BatchID, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// and should surface as a validation message, not a server fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientAvailable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrActiveHoldsExist) ||
		errors.Is(err, ErrBelowCommitted) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrDelegationClosed)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrDelegationNotFound) ||
		errors.Is(err, ErrOfferNotFound)
}
