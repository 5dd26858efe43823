package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-engine/inventory"
)

func seedBatch(t *testing.T, m *Memory) inventory.Batch {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.InsertProduct(ctx, inventory.Product{ID: "p1", Name: "Peda"}))
	b := inventory.Batch{
		ID:                "b1",
		ProductID:         "p1",
		BatchCode:         "P1",
		QuantityInitial:   10,
		QuantityRemaining: 10,
		UnitCost:          decimal.NewFromInt(5),
		UnitSize:          inventory.DefaultUnitSize,
		ExpiryDate:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PurchasedAt:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, m.InsertBatch(ctx, b))
	return b
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: a batch of 10
	m := NewMemory()
	b := seedBatch(t, m)
	ctx := context.Background()

	// WHEN: a unit of work decrements, writes a sale, then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s inventory.Store) error {
		require.NoError(t, s.DecrementBatch(ctx, b.ID, 4))
		require.NoError(t, s.InsertSale(ctx, inventory.Sale{
			ID: "s1", ProductID: "p1", Quantity: 4, SellingPrice: decimal.NewFromInt(9),
			Allocations: []inventory.Allocation{{ID: "a1", SaleID: "s1", BatchID: b.ID, Quantity: 4, UnitCost: b.UnitCost}},
		}))
		return boom
	})

	// THEN: nothing sticks
	assert.ErrorIs(t, err, boom)
	batches, err := m.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), batches[0].QuantityRemaining)
	sales, err := m.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestMemory_WithTxCommits(t *testing.T) {
	m := NewMemory()
	b := seedBatch(t, m)
	ctx := context.Background()

	err := m.WithTx(ctx, func(s inventory.Store) error {
		// Reads inside the unit of work see its own writes
		require.NoError(t, s.DecrementBatch(ctx, b.ID, 10))
		eligible, err := s.EligibleBatches(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, eligible)
		return nil
	})
	require.NoError(t, err)

	batches, err := m.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), batches[0].QuantityRemaining)
}

func TestMemory_DecrementBeyondRemainingIsInvariant(t *testing.T) {
	m := NewMemory()
	b := seedBatch(t, m)
	ctx := context.Background()

	err := m.DecrementBatch(ctx, b.ID, 11)
	assert.ErrorIs(t, err, inventory.ErrInvariantViolation)

	err = m.DecrementBatch(ctx, "missing", 1)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestMemory_ReturnedRecordsAreCopies(t *testing.T) {
	m := NewMemory()
	b := seedBatch(t, m)
	ctx := context.Background()
	sid := inventory.SupplierID("sup")
	require.NoError(t, m.InsertSupplier(ctx, inventory.Supplier{ID: sid, Name: "Ganesh Dairy"}))
	b2 := b
	b2.ID, b2.BatchCode, b2.SupplierID = "b2", "P2", &sid
	require.NoError(t, m.InsertBatch(ctx, b2))

	batches, err := m.ListBatches(ctx)
	require.NoError(t, err)
	for i := range batches {
		batches[i].QuantityRemaining = 0
		if batches[i].SupplierID != nil {
			*batches[i].SupplierID = "mutated"
		}
	}

	again, err := m.ListBatches(ctx)
	require.NoError(t, err)
	for _, got := range again {
		assert.Equal(t, int64(10), got.QuantityRemaining)
		if got.SupplierID != nil {
			assert.Equal(t, sid, *got.SupplierID)
		}
	}
}

func TestMemory_InsertBatchRules(t *testing.T) {
	m := NewMemory()
	b := seedBatch(t, m)
	ctx := context.Background()

	dup := b
	dup.ID = "b2"
	assert.ErrorIs(t, m.InsertBatch(ctx, dup), inventory.ErrConflict)

	orphan := b
	orphan.ID, orphan.ProductID, orphan.BatchCode = "b3", "ghost", "X"
	assert.ErrorIs(t, m.InsertBatch(ctx, orphan), inventory.ErrNotFound)

	broken := b
	broken.ID, broken.BatchCode, broken.QuantityRemaining = "b4", "Y", 11
	assert.ErrorIs(t, m.InsertBatch(ctx, broken), inventory.ErrInvariantViolation)
}

func TestMemory_Reset(t *testing.T) {
	m := NewMemory()
	seedBatch(t, m)
	ctx := context.Background()

	require.NoError(t, m.Reset(ctx))

	products, err := m.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	batches, err := m.ListBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}
