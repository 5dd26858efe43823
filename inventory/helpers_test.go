package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-engine/inventory"
	"github.com/warp/stock-engine/inventory/store"
	"github.com/warp/stock-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// engine bundles the services over one store.
type engine struct {
	store     inventory.TxStore
	catalog   *inventory.Catalog
	ledger    *inventory.BatchLedger
	allocator *inventory.Allocator
	sales     *inventory.SaleLedger
}

func newEngine(s inventory.TxStore) *engine {
	e := &engine{
		store:     s,
		catalog:   inventory.NewCatalog(s, nil),
		ledger:    inventory.NewBatchLedger(s, nil),
		allocator: inventory.NewAllocator(s, nil),
		sales:     inventory.NewSaleLedger(s),
	}
	e.catalog.Now = fixedClock
	e.ledger.Now = fixedClock
	e.allocator.Now = fixedClock
	return e
}

// eachStore runs fn once against the memory store and once against SQLite.
func eachStore(t *testing.T, fn func(t *testing.T, e *engine)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, newEngine(store.NewMemory()))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, newEngine(s))
	})
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func day(offset int) time.Time {
	return inventory.DateOf(testNow).AddDate(0, 0, offset)
}

func (e *engine) product(t *testing.T, name string) *inventory.Product {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), inventory.ProductInput{Name: name})
	require.NoError(t, err)
	return p
}

// purchase records a batch expiring expiryIn days from today, received
// receivedAgo hours before now.
func (e *engine) purchase(t *testing.T, productID inventory.ProductID, code string, qty, cost int64, expiryIn int, receivedAgo time.Duration) *inventory.Batch {
	t.Helper()
	b, err := e.ledger.RecordPurchase(context.Background(), inventory.PurchaseRequest{
		ProductID:   productID,
		BatchCode:   code,
		Quantity:    qty,
		UnitCost:    money(cost),
		ExpiryDate:  day(expiryIn),
		PurchasedAt: testNow.Add(-receivedAgo * time.Hour),
	})
	require.NoError(t, err)
	return b
}

func (e *engine) sell(productID inventory.ProductID, qty, price int64, invoice string) (*inventory.Sale, error) {
	return e.allocator.AllocateSale(context.Background(), inventory.SaleRequest{
		ProductID:     productID,
		Quantity:      qty,
		SellingPrice:  money(price),
		InvoiceNumber: invoice,
	})
}

// remaining maps batch code to remaining quantity for a product.
func (e *engine) remaining(t *testing.T, productID inventory.ProductID) map[string]int64 {
	t.Helper()
	batches, err := e.store.ListBatches(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64)
	for _, b := range batches {
		if b.ProductID == productID {
			out[b.BatchCode] = b.QuantityRemaining
		}
	}
	return out
}

func (e *engine) saleCount(t *testing.T) int {
	t.Helper()
	sales, err := e.store.ListSales(context.Background())
	require.NoError(t, err)
	return len(sales)
}
