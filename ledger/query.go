/*
query.go - Read-only projections over the collections

PURPOSE:
  Convenience views for presentation layers: snapshot for one batch, offer
  lists filtered by status, net quota for one delegation, and a revenue
  projection over sold offers. None of these hold state of their own and
  none may be used as a source of truth for mutation decisions - guards in
  engine.go always recompute from the collections.
*/
package ledger

import "github.com/shopspring/decimal"

// SnapshotFor reconciles a single batch.
func SnapshotFor(c *Collections, batchID BatchID) (Snapshot, error) {
	b, ok := c.Batches[batchID]
	if !ok {
		return Snapshot{}, ErrBatchNotFound
	}
	return ComputeSnapshot(b, c.DelegationsForBatch(batchID), c.OffersForBatch(batchID)), nil
}

// OffersByStatus returns a batch's offers in one status, in creation order.
func OffersByStatus(c *Collections, batchID BatchID, status OfferStatus) []Offer {
	var out []Offer
	for _, o := range c.OffersForBatch(batchID) {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// NetAvailableFor resolves a delegation and returns its seller-facing
// balance.
func NetAvailableFor(c *Collections, delegationID DelegationID) (int64, error) {
	d, ok := c.Delegations[delegationID]
	if !ok {
		return 0, ErrDelegationNotFound
	}
	return NetAvailable(d, c.OffersForDelegation(delegationID)), nil
}

// CostBasisFunc supplies the per-unit cost basis for an offer. Whether that
// is the owner's base cost or the seller's agreed floor is the caller's
// concern, not the ledger's.
type CostBasisFunc func(Offer) decimal.Decimal

// Revenue sums (unit price - cost basis) * quantity over the sold offers in
// the given set. Non-sold offers contribute nothing.
func Revenue(offers []Offer, costBasis CostBasisFunc) decimal.Decimal {
	total := decimal.Zero
	for _, o := range offers {
		if o.Status != OfferSold {
			continue
		}
		margin := o.UnitPrice.Sub(costBasis(o))
		total = total.Add(margin.Mul(decimal.NewFromInt(o.QuantityOffered)))
	}
	return total
}
