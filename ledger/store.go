/*
store.go - Persistence interface for the source collections

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; the engine itself
  never touches persistence directly.

MUTATION SURFACE:
  The interface mirrors exactly what the engine's operations can change:
  - Batches are upserted (registration, total correction); never deleted
  - Delegations are upserted (creation, archival) and deleted only on
    revoke-with-zero-consumption - the single legal delete in the system
  - Offers are upserted (creation, status change); never deleted - terminal
    offers are retained for audit

IMPLEMENTATIONS:
  - store/sqlite:          Production SQLite
  - ledger/store (Memory): In-memory for testing/dev

SEE ALSO:
  - service.go: Orchestrates engine + Store under the mutation lock
*/
package ledger

import "context"

// Store persists the three source collections.
type Store interface {
	// LoadCollections returns the full record arena. The engine recomputes
	// everything from these; no derived figures are ever persisted.
	LoadCollections(ctx context.Context) (*Collections, error)

	// SaveBatch inserts or updates a batch record.
	SaveBatch(ctx context.Context, b Batch) error

	// SaveDelegation inserts or updates a delegation record.
	SaveDelegation(ctx context.Context, d Delegation) error

	// DeleteDelegation removes a delegation revoked with zero consumption.
	DeleteDelegation(ctx context.Context, id DelegationID) error

	// SaveOffer inserts or updates an offer record.
	SaveOffer(ctx context.Context, o Offer) error
}
