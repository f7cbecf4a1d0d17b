/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists the three source collections (batches, delegations, offers).
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  batches:      Physical lots; total changed only by explicit correction
  delegations:  Quota grants; the only table with a DELETE path (revoke
                with zero consumption)
  offers:       Client proposals; INSERT and status UPDATE only, never
                deleted - terminal offers are the audit history

DERIVED FIGURES:
  No sold/reserved/available columns exist anywhere. The engine recomputes
  them from these tables on every read, so stored state can never disagree
  with the offers that justify it.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety within the process. The ledger
  Service additionally serializes mutations, so guard checks and writes
  cannot interleave. In production with PostgreSQL, database-level
  concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/stones.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/stone-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Batches (physical lots)
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		total_quantity INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Delegations (quota grants to resellers)
	CREATE TABLE IF NOT EXISTS delegations (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		seller_id TEXT NOT NULL,
		delegated_quantity INTEGER NOT NULL,
		agreed_floor_price TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_delegations_batch
		ON delegations(batch_id);
	CREATE INDEX IF NOT EXISTS idx_delegations_seller
		ON delegations(seller_id);

	-- Offers (client proposals; status updates only, never deleted)
	CREATE TABLE IF NOT EXISTS offers (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		delegation_id TEXT,
		client_ref TEXT NOT NULL DEFAULT '',
		unit_price TEXT NOT NULL,
		quantity_offered INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		expires_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_offers_batch
		ON offers(batch_id);
	CREATE INDEX IF NOT EXISTS idx_offers_delegation
		ON offers(delegation_id) WHERE delegation_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_offers_status
		ON offers(status);

	-- For the expiry sweep (lapsed active/pending offers)
	CREATE INDEX IF NOT EXISTS idx_offers_expires
		ON offers(expires_at) WHERE expires_at IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ledger.Store IMPLEMENTATION
// =============================================================================

// LoadCollections reads the full record arena.
func (s *Store) LoadCollections(ctx context.Context) (*ledger.Collections, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := ledger.NewCollections()

	if err := s.loadBatches(ctx, c); err != nil {
		return nil, err
	}
	if err := s.loadDelegations(ctx, c); err != nil {
		return nil, err
	}
	if err := s.loadOffers(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) loadBatches(ctx context.Context, c *ledger.Collections) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, total_quantity, created_at FROM batches`)
	if err != nil {
		return fmt.Errorf("failed to load batches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b ledger.Batch
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Description, &b.TotalQuantity, &createdAt); err != nil {
			return err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.PutBatch(b)
	}
	return rows.Err()
}

func (s *Store) loadDelegations(ctx context.Context, c *ledger.Collections) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, seller_id, delegated_quantity, agreed_floor_price, status, created_at
		 FROM delegations`)
	if err != nil {
		return fmt.Errorf("failed to load delegations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d ledger.Delegation
		var floorPrice, createdAt string
		if err := rows.Scan(&d.ID, &d.BatchID, &d.SellerID, &d.DelegatedQuantity,
			&floorPrice, &d.Status, &createdAt); err != nil {
			return err
		}
		d.AgreedFloorPrice, err = decimal.NewFromString(floorPrice)
		if err != nil {
			return fmt.Errorf("bad floor price for delegation %s: %w", d.ID, err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.PutDelegation(d)
	}
	return rows.Err()
}

func (s *Store) loadOffers(ctx context.Context, c *ledger.Collections) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, delegation_id, client_ref, unit_price, quantity_offered,
		        status, created_at, expires_at
		 FROM offers`)
	if err != nil {
		return fmt.Errorf("failed to load offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o ledger.Offer
		var delegationID, expiresAt sql.NullString
		var unitPrice, createdAt string
		if err := rows.Scan(&o.ID, &o.BatchID, &delegationID, &o.ClientRef, &unitPrice,
			&o.QuantityOffered, &o.Status, &createdAt, &expiresAt); err != nil {
			return err
		}
		if delegationID.Valid {
			o.DelegationID = ledger.DelegationID(delegationID.String)
		}
		o.UnitPrice, err = decimal.NewFromString(unitPrice)
		if err != nil {
			return fmt.Errorf("bad unit price for offer %s: %w", o.ID, err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if expiresAt.Valid {
			t, err := time.Parse(time.RFC3339, expiresAt.String)
			if err == nil {
				o.ExpiresAt = &t
			}
		}
		c.PutOffer(o)
	}
	return rows.Err()
}

// SaveBatch inserts or updates a batch. Only total_quantity may change
// after registration.
func (s *Store) SaveBatch(ctx context.Context, b ledger.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, description, total_quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET total_quantity = excluded.total_quantity`,
		b.ID,
		b.Description,
		b.TotalQuantity,
		b.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

// SaveDelegation inserts or updates a delegation. Only status may change
// after creation (archival on revoke).
func (s *Store) SaveDelegation(ctx context.Context, d ledger.Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delegations
		(id, batch_id, seller_id, delegated_quantity, agreed_floor_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
		d.ID,
		d.BatchID,
		d.SellerID,
		d.DelegatedQuantity,
		d.AgreedFloorPrice.String(),
		d.Status,
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save delegation: %w", err)
	}
	return nil
}

// DeleteDelegation removes a delegation revoked with zero consumption.
// This is the only DELETE in the store.
func (s *Store) DeleteDelegation(ctx context.Context, id ledger.DelegationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM delegations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete delegation: %w", err)
	}
	return nil
}

// SaveOffer inserts or updates an offer. Only status may change after
// creation; price and quantity are immutable.
func (s *Store) SaveOffer(ctx context.Context, o ledger.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offers
		(id, batch_id, delegation_id, client_ref, unit_price, quantity_offered, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
		o.ID,
		o.BatchID,
		nullString(string(o.DelegationID)),
		o.ClientRef,
		o.UnitPrice.String(),
		o.QuantityOffered,
		o.Status,
		o.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(o.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save offer: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
