package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stone-ledger/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustPrice(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
	expiry := createdAt.Add(48 * time.Hour)

	batch := ledger.Batch{
		ID:            "batch-1",
		Description:   "carrara slabs, lot 7",
		TotalQuantity: 20,
		CreatedAt:     createdAt,
	}
	require.NoError(t, store.SaveBatch(ctx, batch))

	delegation := ledger.Delegation{
		ID:                "del-1",
		BatchID:           batch.ID,
		SellerID:          "seller-1",
		DelegatedQuantity: 8,
		AgreedFloorPrice:  mustPrice(t, "125.50"),
		Status:            ledger.DelegationActive,
		CreatedAt:         createdAt,
	}
	require.NoError(t, store.SaveDelegation(ctx, delegation))

	delegated := ledger.Offer{
		ID:              "offer-1",
		BatchID:         batch.ID,
		DelegationID:    delegation.ID,
		ClientRef:       "client-42",
		UnitPrice:       mustPrice(t, "180.00"),
		QuantityOffered: 5,
		Status:          ledger.OfferActive,
		CreatedAt:       createdAt,
		ExpiresAt:       &expiry,
	}
	require.NoError(t, store.SaveOffer(ctx, delegated))

	direct := ledger.Offer{
		ID:              "offer-2",
		BatchID:         batch.ID,
		ClientRef:       "client-43",
		UnitPrice:       mustPrice(t, "150"),
		QuantityOffered: 2,
		Status:          ledger.OfferReserved,
		CreatedAt:       createdAt,
	}
	require.NoError(t, store.SaveOffer(ctx, direct))

	c, err := store.LoadCollections(ctx)
	require.NoError(t, err)

	gotBatch, ok := c.Batches[batch.ID]
	require.True(t, ok)
	assert.Equal(t, batch.Description, gotBatch.Description)
	assert.Equal(t, int64(20), gotBatch.TotalQuantity)
	assert.True(t, gotBatch.CreatedAt.Equal(createdAt))

	gotDel, ok := c.Delegations[delegation.ID]
	require.True(t, ok)
	assert.Equal(t, batch.ID, gotDel.BatchID)
	assert.Equal(t, ledger.SellerID("seller-1"), gotDel.SellerID)
	assert.Equal(t, int64(8), gotDel.DelegatedQuantity)
	assert.True(t, gotDel.AgreedFloorPrice.Equal(mustPrice(t, "125.50")))
	assert.Equal(t, ledger.DelegationActive, gotDel.Status)

	gotDelegated, ok := c.Offers[delegated.ID]
	require.True(t, ok)
	assert.Equal(t, delegation.ID, gotDelegated.DelegationID)
	assert.False(t, gotDelegated.IsDirect())
	assert.True(t, gotDelegated.UnitPrice.Equal(mustPrice(t, "180.00")))
	require.NotNil(t, gotDelegated.ExpiresAt)
	assert.True(t, gotDelegated.ExpiresAt.Equal(expiry))

	gotDirect, ok := c.Offers[direct.ID]
	require.True(t, ok)
	assert.True(t, gotDirect.IsDirect())
	assert.Nil(t, gotDirect.ExpiresAt)
	assert.Equal(t, ledger.OfferReserved, gotDirect.Status)
}

func TestSQLiteStore_UpsertsOnlyMutableColumns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

	batch := ledger.Batch{ID: "batch-1", Description: "slabs", TotalQuantity: 10, CreatedAt: createdAt}
	require.NoError(t, store.SaveBatch(ctx, batch))

	offer := ledger.Offer{
		ID: "offer-1", BatchID: batch.ID, ClientRef: "client-1",
		UnitPrice: mustPrice(t, "100"), QuantityOffered: 3,
		Status: ledger.OfferActive, CreatedAt: createdAt,
	}
	require.NoError(t, store.SaveOffer(ctx, offer))

	// Batch correction: total changes, description stays.
	batch.TotalQuantity = 12
	batch.Description = "mutated description must not land"
	require.NoError(t, store.SaveBatch(ctx, batch))

	// Offer transition: status changes, price stays.
	offer.Status = ledger.OfferSold
	offer.UnitPrice = mustPrice(t, "999")
	require.NoError(t, store.SaveOffer(ctx, offer))

	c, err := store.LoadCollections(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(12), c.Batches[batch.ID].TotalQuantity)
	assert.Equal(t, "slabs", c.Batches[batch.ID].Description)
	assert.Equal(t, ledger.OfferSold, c.Offers[offer.ID].Status)
	assert.True(t, c.Offers[offer.ID].UnitPrice.Equal(mustPrice(t, "100")))
}

func TestSQLiteStore_DeleteDelegation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveBatch(ctx, ledger.Batch{
		ID: "batch-1", TotalQuantity: 10, CreatedAt: createdAt,
	}))
	require.NoError(t, store.SaveDelegation(ctx, ledger.Delegation{
		ID: "del-1", BatchID: "batch-1", SellerID: "seller-1",
		DelegatedQuantity: 4, AgreedFloorPrice: mustPrice(t, "100"),
		Status: ledger.DelegationActive, CreatedAt: createdAt,
	}))

	require.NoError(t, store.DeleteDelegation(ctx, "del-1"))

	c, err := store.LoadCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Delegations)

	// Deleting an absent row is a no-op, not an error.
	assert.NoError(t, store.DeleteDelegation(ctx, "del-1"))
}

func TestSQLiteStore_DrivesServiceEndToEnd(t *testing.T) {
	// The engine recomputes every figure from the persisted tables, so a
	// second service over the same database must see identical snapshots.
	store := newTestStore(t)
	ctx := context.Background()

	svc := ledger.NewService(store)
	b, err := svc.RegisterBatch(ctx, "travertine blocks", 10)
	require.NoError(t, err)

	d, err := svc.CreateDelegation(ctx, b.ID, "seller-5", 4, mustPrice(t, "95"))
	require.NoError(t, err)

	o, err := svc.CreateOffer(ctx, ledger.CreateOfferParams{
		BatchID: b.ID, DelegationID: d.ID, ClientRef: "client-9",
		UnitPrice: mustPrice(t, "140"), Quantity: 3,
	})
	require.NoError(t, err)

	_, err = svc.TransitionOffer(ctx, o.ID, ledger.OfferSold)
	require.NoError(t, err)

	fresh := ledger.NewService(store)
	snap, err := fresh.Snapshot(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), snap.Sold)
	assert.Equal(t, int64(1), snap.DelegatedHold)
	assert.Equal(t, int64(6), snap.Available)
}
