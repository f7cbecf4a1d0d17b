/*
Package ledger provides the core inventory reconciliation engine.

PURPOSE:
  This package contains the types and algorithms that reconcile overlapping
  claims against physical stone batches. Producers sell a batch directly or
  through delegated resellers; quota grants and client offers in various
  lifecycle states must fold into three consistent numbers per batch: how
  much is sold, how much is held, and how much remains free to sell.

KEY CONCEPTS IN THIS FILE (types.go):
  - Batch:       A physical lot with a fixed total quantity
  - Delegation:  A quota grant of part of a batch to a reseller
  - Offer:       A client-facing proposal, direct or under a delegation
  - Collections: The arena of all records, keyed by id, passed explicitly

DESIGN PRINCIPLES:
  1. Derived figures (sold/reserved/available) are NEVER stored - they are
     recomputed from the source collections on every read (see snapshot.go)
  2. Records are passed in explicitly; no global mutable state
  3. Strong typing for IDs prevents mixing batch/delegation/offer ids
  4. Prices use decimal.Decimal to avoid floating-point errors; quantities
     are whole slab counts and stay int64

USAGE:
  c := ledger.NewCollections()
  c.PutBatch(ledger.Batch{ID: "batch-1", TotalQuantity: 10})
  snap := ledger.ComputeSnapshot(c.Batches["batch-1"],
      c.DelegationsForBatch("batch-1"), c.OffersForBatch("batch-1"))

SEE ALSO:
  - snapshot.go: Quantity ledger computation
  - offer.go: Offer status state machine
  - engine.go: Guarded mutations and reconciliation
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BatchID string
type DelegationID string
type OfferID string
type SellerID string

// =============================================================================
// BATCH - A physical lot of material
// =============================================================================

// Batch is a physical lot with a fixed total quantity.
//
// TotalQuantity is set at registration and changes only through an explicit
// administrative correction (see AdjustBatchTotal). The derived figures
// (sold, reserved, available) are never stored on the batch - they are
// recomputed from delegations and offers via ComputeSnapshot.
//
// Batches are never deleted, only exhausted.
type Batch struct {
	ID            BatchID
	Description   string
	TotalQuantity int64
	CreatedAt     time.Time
}

// =============================================================================
// DELEGATION - A quota grant to a reseller
// =============================================================================

type DelegationStatus string

const (
	// DelegationActive accepts new offers and soft-reserves its unconsumed
	// balance against the batch.
	DelegationActive DelegationStatus = "active"

	// DelegationArchived is a revoked delegation kept for audit because sold
	// offers exist under it. It accepts no new offers and its remaining
	// balance is released back to the batch.
	DelegationArchived DelegationStatus = "archived"
)

// Delegation grants a reseller the right to offer up to DelegatedQuantity
// units of a batch at or above an agreed floor price.
//
// DelegatedQuantity is fixed at creation. A delegation with no consumption
// is deleted on revoke; one with sold history is archived instead.
type Delegation struct {
	ID                DelegationID
	BatchID           BatchID
	SellerID          SellerID
	DelegatedQuantity int64
	AgreedFloorPrice  decimal.Decimal
	Status            DelegationStatus
	CreatedAt         time.Time
}

// =============================================================================
// OFFER - A client-facing proposal
// =============================================================================

type OfferStatus string

const (
	OfferActive             OfferStatus = "active"
	OfferReservationPending OfferStatus = "reservation_pending"
	OfferReserved           OfferStatus = "reserved"
	OfferSold               OfferStatus = "sold"
	OfferExpired            OfferStatus = "expired"
)

// Offer is a client-facing proposal for a quantity at a price.
//
// A direct offer (empty DelegationID) claims the batch owner's free stock.
// A delegated offer consumes the issuing delegation's balance instead.
// Price and quantity are immutable after creation; only Status changes,
// and only through the state machine in offer.go. Offers are never deleted -
// terminal offers are retained for audit.
type Offer struct {
	ID              OfferID
	BatchID         BatchID
	DelegationID    DelegationID // empty for direct offers
	ClientRef       string
	UnitPrice       decimal.Decimal
	QuantityOffered int64
	Status          OfferStatus
	CreatedAt       time.Time
	ExpiresAt       *time.Time
}

// IsDirect reports whether the offer claims the owner's free stock rather
// than a delegation's balance.
func (o Offer) IsDirect() bool { return o.DelegationID == "" }

// =============================================================================
// COLLECTIONS - The arena of all records
// =============================================================================

// Collections is the full record arena: batches, delegations and offers in
// maps keyed by id. Every engine function takes the collections it operates
// on as an explicit parameter; there is no shared container behind the API.
type Collections struct {
	Batches     map[BatchID]Batch
	Delegations map[DelegationID]Delegation
	Offers      map[OfferID]Offer
}

func NewCollections() *Collections {
	return &Collections{
		Batches:     make(map[BatchID]Batch),
		Delegations: make(map[DelegationID]Delegation),
		Offers:      make(map[OfferID]Offer),
	}
}

// Clone returns a deep copy. Records are value types, so copying the maps
// is enough.
func (c *Collections) Clone() *Collections {
	out := &Collections{
		Batches:     make(map[BatchID]Batch, len(c.Batches)),
		Delegations: make(map[DelegationID]Delegation, len(c.Delegations)),
		Offers:      make(map[OfferID]Offer, len(c.Offers)),
	}
	for id, b := range c.Batches {
		out.Batches[id] = b
	}
	for id, d := range c.Delegations {
		out.Delegations[id] = d
	}
	for id, o := range c.Offers {
		out.Offers[id] = o
	}
	return out
}

func (c *Collections) PutBatch(b Batch)           { c.Batches[b.ID] = b }
func (c *Collections) PutDelegation(d Delegation) { c.Delegations[d.ID] = d }
func (c *Collections) PutOffer(o Offer)           { c.Offers[o.ID] = o }

// DelegationsForBatch returns the delegations targeting a batch, ordered by
// creation time then id so that iteration order is deterministic.
func (c *Collections) DelegationsForBatch(batchID BatchID) []Delegation {
	var out []Delegation
	for _, d := range c.Delegations {
		if d.BatchID == batchID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OffersForBatch returns the offers referencing a batch, ordered by creation
// time then id.
func (c *Collections) OffersForBatch(batchID BatchID) []Offer {
	var out []Offer
	for _, o := range c.Offers {
		if o.BatchID == batchID {
			out = append(out, o)
		}
	}
	sortOffers(out)
	return out
}

// OffersForDelegation returns the offers issued under a delegation, ordered
// by creation time then id.
func (c *Collections) OffersForDelegation(delegationID DelegationID) []Offer {
	var out []Offer
	for _, o := range c.Offers {
		if o.DelegationID == delegationID {
			out = append(out, o)
		}
	}
	sortOffers(out)
	return out
}

func sortOffers(offers []Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
}
