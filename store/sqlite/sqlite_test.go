package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var received = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

func testBatch(id, productID, code string, qty int64, expiry time.Time) inventory.Batch {
	return inventory.Batch{
		ID:                inventory.BatchID(id),
		ProductID:         inventory.ProductID(productID),
		BatchCode:         code,
		QuantityInitial:   qty,
		QuantityRemaining: qty,
		UnitCost:          decimal.RequireFromString("12.50"),
		UnitSize:          inventory.UnitSize{Value: decimal.NewFromInt(250), Unit: inventory.UnitGram},
		ExpiryDate:        expiry,
		PurchasedAt:       received,
	}
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertProduct(ctx, inventory.Product{ID: "p1", Name: "Peda", CreatedAt: received}))
	require.NoError(t, s.InsertSupplier(ctx, inventory.Supplier{ID: "s1", Name: "Ganesh Dairy", CreatedAt: received}))
	require.NoError(t, s.InsertRetailer(ctx, inventory.Retailer{ID: "r1", Name: "Corner Store", CreatedAt: received}))

	b := testBatch("b1", "p1", "P1", 10, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	sid := inventory.SupplierID("s1")
	b.SupplierID = &sid
	b.SupplierName = "Ganesh Dairy"
	require.NoError(t, s.InsertBatch(ctx, b))
}

func testSale(id, invoice string, qty int64) inventory.Sale {
	rid := inventory.RetailerID("r1")
	return inventory.Sale{
		ID:            inventory.SaleID(id),
		ProductID:     "p1",
		RetailerID:    &rid,
		Quantity:      qty,
		SellingPrice:  decimal.NewFromInt(20),
		UnitSize:      inventory.DefaultUnitSize,
		InvoiceNumber: invoice,
		CustomerName:  "Corner Store",
		SoldAt:        received.Add(time.Hour),
		Allocations: []inventory.Allocation{
			{ID: inventory.AllocationID(id + "-a"), SaleID: inventory.SaleID(id), BatchID: "b1", Quantity: qty, UnitCost: decimal.RequireFromString("12.50")},
		},
	}
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestBatchRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	batches, err := s.ListBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)

	b := batches[0]
	assert.Equal(t, inventory.BatchID("b1"), b.ID)
	assert.True(t, b.UnitCost.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "250 g", b.UnitSize.String())
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), b.ExpiryDate)
	assert.True(t, b.PurchasedAt.Equal(received))
	require.NotNil(t, b.SupplierID)
	assert.Equal(t, inventory.SupplierID("s1"), *b.SupplierID)
	assert.Equal(t, "Ganesh Dairy", b.SupplierName)
}

func TestSaleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.InsertSale(ctx, testSale("sale-1", "INV-1", 4)))

	got, err := s.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "INV-1", got.InvoiceNumber)
	assert.True(t, got.SoldAt.Equal(received.Add(time.Hour)))
	require.Len(t, got.Allocations, 1)
	assert.Equal(t, int64(4), got.Allocations[0].Quantity)
	require.NotNil(t, got.Retailer)
	assert.Equal(t, "Corner Store", got.Retailer.Name)

	missing, err := s.GetSale(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestConflicts(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	err := s.InsertProduct(ctx, inventory.Product{ID: "p2", Name: "Peda"})
	assert.ErrorIs(t, err, inventory.ErrConflict)

	err = s.InsertSupplier(ctx, inventory.Supplier{ID: "s2", Name: "Ganesh Dairy"})
	assert.ErrorIs(t, err, inventory.ErrConflict)

	err = s.InsertBatch(ctx, testBatch("b2", "p1", "P1", 5, received))
	var conflict *inventory.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "batch_code", conflict.Field)

	require.NoError(t, s.InsertSale(ctx, testSale("sale-1", "INV-1", 1)))
	err = s.InsertSale(ctx, testSale("sale-2", "INV-1", 1))
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "invoice_number", conflict.Field)

	// The failed sale left no allocation behind
	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestBlankInvoicesNeverConflict(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.InsertSale(ctx, testSale("sale-1", "", 1)))
	require.NoError(t, s.InsertSale(ctx, testSale("sale-2", "", 1)))

	used, err := s.InvoiceExists(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestInsertBatchRejectsBrokenInvariant(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	b := testBatch("b2", "p1", "P2", 5, received)
	b.QuantityRemaining = 6
	assert.ErrorIs(t, s.InsertBatch(context.Background(), b), inventory.ErrInvariantViolation)
}

func TestDecrementBatchGuard(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.DecrementBatch(ctx, "b1", 7))

	err := s.DecrementBatch(ctx, "b1", 4)
	assert.ErrorIs(t, err, inventory.ErrInvariantViolation)

	err = s.DecrementBatch(ctx, "missing", 1)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), batches[0].QuantityRemaining)
}

// =============================================================================
// DELETE RULES
// =============================================================================

func TestDeleteSupplierNullsLinkKeepsSnapshot(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteSupplier(ctx, "s1"))

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Nil(t, batches[0].SupplierID)
	assert.Equal(t, "Ganesh Dairy", batches[0].SupplierName)

	assert.ErrorIs(t, s.DeleteSupplier(ctx, "s1"), inventory.ErrNotFound)
}

func TestDeleteRetailerNullsLinkKeepsCustomerName(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.InsertSale(ctx, testSale("sale-1", "INV-1", 2)))

	require.NoError(t, s.DeleteRetailer(ctx, "r1"))

	sale, err := s.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.Nil(t, sale.RetailerID)
	assert.Nil(t, sale.Retailer)
	assert.Equal(t, "Corner Store", sale.CustomerName)
}

func TestDeleteProductCascades(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.InsertSale(ctx, testSale("sale-1", "INV-1", 2)))

	require.NoError(t, s.DeleteProduct(ctx, "p1"))

	for table, want := range map[string]int{
		"products": 0, "inventory_batches": 0, "sales": 0, "sale_allocations": 0, "suppliers": 1, "retailers": 1,
	} {
		var n int
		require.NoError(t, s.db.Get(&n, "SELECT COUNT(*) FROM "+table))
		assert.Equal(t, want, n, table)
	}

	assert.ErrorIs(t, s.DeleteProduct(ctx, "p1"), inventory.ErrNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx inventory.Store) error {
		require.NoError(t, tx.DecrementBatch(ctx, "b1", 5))
		require.NoError(t, tx.InsertSale(ctx, testSale("sale-1", "INV-1", 5)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), batches[0].QuantityRemaining)
	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	// GIVEN: a batch of 10
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	// WHEN: 12 units of work each read then decrement by 1 if stock remains
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(ctx, func(tx inventory.Store) error {
				eligible, err := tx.EligibleBatches(ctx, "p1")
				if err != nil {
					return err
				}
				if len(eligible) == 0 {
					return nil
				}
				return tx.DecrementBatch(ctx, eligible[0].ID, 1)
			})
		}()
	}
	wg.Wait()

	// THEN: exactly ten decrements landed
	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), batches[0].QuantityRemaining)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.InsertSale(ctx, testSale("sale-1", "INV-1", 2)))

	require.NoError(t, s.Reset(ctx))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	sales, err := s.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

// =============================================================================
// TIME FORMAT
// =============================================================================

func TestTimestampFormatSortsChronologically(t *testing.T) {
	earlier := time.Date(2025, 1, 1, 9, 0, 0, 5, time.UTC)
	later := time.Date(2025, 1, 1, 9, 0, 0, 500000000, time.UTC)

	assert.Less(t, formatTimestamp(earlier), formatTimestamp(later))
	assert.Len(t, formatTimestamp(earlier), len(formatTimestamp(later)))

	parsed, err := parseTimestamp(formatTimestamp(later))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(later))
}
