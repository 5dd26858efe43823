package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// RECORD PURCHASE
// =============================================================================

func TestRecordPurchase_InitializesRemaining(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		p := e.product(t, "Kaju Katli")

		b, err := e.ledger.RecordPurchase(context.Background(), inventory.PurchaseRequest{
			ProductID:  p.ID,
			BatchCode:  " KK-01 ",
			Quantity:   40,
			UnitCost:   decimal.RequireFromString("412.75"),
			UnitSize:   inventory.UnitSize{Value: decimal.NewFromInt(250), Unit: inventory.UnitGram},
			ExpiryDate: day(30).Add(15 * time.Hour),
		})
		require.NoError(t, err)

		assert.Equal(t, "KK-01", b.BatchCode)
		assert.Equal(t, int64(40), b.QuantityInitial)
		assert.Equal(t, int64(40), b.QuantityRemaining)
		assert.Equal(t, day(30), b.ExpiryDate)
		assert.Equal(t, testNow, b.PurchasedAt)

		stored, err := e.ledger.ListPurchases(context.Background())
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.True(t, stored[0].UnitCost.Equal(decimal.RequireFromString("412.75")))
		assert.Equal(t, "250 g", stored[0].UnitSize.String())
		assert.True(t, stored[0].ExpiryDate.Equal(day(30)))
	})
}

func TestRecordPurchase_DefaultsUnitSize(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		p := e.product(t, "Peda")
		b := e.purchase(t, p.ID, "P1", 5, 10, 5, 1)
		assert.Equal(t, inventory.DefaultUnitSize.String(), b.UnitSize.String())
	})
}

func TestRecordPurchase_DuplicateCodeIsConflictPerProduct(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		ctx := context.Background()
		p := e.product(t, "Peda")
		q := e.product(t, "Barfi")
		e.purchase(t, p.ID, "LOT-1", 5, 10, 5, 1)

		_, err := e.ledger.RecordPurchase(ctx, inventory.PurchaseRequest{
			ProductID: p.ID, BatchCode: "LOT-1", Quantity: 1, UnitCost: money(1), ExpiryDate: day(3),
		})
		assert.ErrorIs(t, err, inventory.ErrConflict)

		// Same code on another product is fine
		_, err = e.ledger.RecordPurchase(ctx, inventory.PurchaseRequest{
			ProductID: q.ID, BatchCode: "LOT-1", Quantity: 1, UnitCost: money(1), ExpiryDate: day(3),
		})
		assert.NoError(t, err)
	})
}

func TestRecordPurchase_NotFound(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		ctx := context.Background()
		_, err := e.ledger.RecordPurchase(ctx, inventory.PurchaseRequest{
			ProductID: "nope", BatchCode: "X", Quantity: 1, UnitCost: money(1), ExpiryDate: day(3),
		})
		assert.ErrorIs(t, err, inventory.ErrNotFound)

		p := e.product(t, "Peda")
		ghost := inventory.SupplierID("ghost")
		_, err = e.ledger.RecordPurchase(ctx, inventory.PurchaseRequest{
			ProductID: p.ID, BatchCode: "X", Quantity: 1, UnitCost: money(1), ExpiryDate: day(3), SupplierID: &ghost,
		})
		assert.ErrorIs(t, err, inventory.ErrNotFound)

		batches, err := e.ledger.ListPurchases(ctx)
		require.NoError(t, err)
		assert.Empty(t, batches)
	})
}

func TestRecordPurchase_Validation(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		p := e.product(t, "Peda")
		base := inventory.PurchaseRequest{ProductID: p.ID, BatchCode: "X", Quantity: 1, UnitCost: money(1), ExpiryDate: day(3)}

		cases := map[string]func(r *inventory.PurchaseRequest){
			"zero quantity":  func(r *inventory.PurchaseRequest) { r.Quantity = 0 },
			"zero cost":      func(r *inventory.PurchaseRequest) { r.UnitCost = decimal.Zero },
			"negative cost":  func(r *inventory.PurchaseRequest) { r.UnitCost = money(-5) },
			"blank code":     func(r *inventory.PurchaseRequest) { r.BatchCode = "  " },
			"missing expiry": func(r *inventory.PurchaseRequest) { r.ExpiryDate = time.Time{} },
			"bad unit":       func(r *inventory.PurchaseRequest) { r.UnitSize = inventory.UnitSize{Value: money(1), Unit: "lb"} },
		}
		for name, mutate := range cases {
			req := base
			mutate(&req)
			_, err := e.ledger.RecordPurchase(context.Background(), req)
			assert.ErrorIs(t, err, inventory.ErrInvalidInput, name)
		}
	})
}

// =============================================================================
// SUPPLIER SNAPSHOT
// =============================================================================

func TestRecordPurchase_SupplierSnapshotSurvivesDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		ctx := context.Background()

		// GIVEN: a batch bought from Ganesh Dairy
		p := e.product(t, "Rasgulla")
		s, err := e.catalog.CreateSupplier(ctx, inventory.SupplierInput{Name: "Ganesh Dairy"})
		require.NoError(t, err)
		b, err := e.ledger.RecordPurchase(ctx, inventory.PurchaseRequest{
			ProductID: p.ID, BatchCode: "RG-1", Quantity: 10, UnitCost: money(20), ExpiryDate: day(4), SupplierID: &s.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "Ganesh Dairy", b.SupplierName)

		// WHEN: the supplier is deleted
		require.NoError(t, e.catalog.DeleteSupplier(ctx, s.ID))

		// THEN: the link is gone, the name stays
		batches, err := e.ledger.ListPurchases(ctx)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Nil(t, batches[0].SupplierID)
		assert.Equal(t, "Ganesh Dairy", batches[0].SupplierName)

		overview, err := e.ledger.StockOverview(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Ganesh Dairy", overview.Batches[0].SupplierDisplay)
	})
}

func TestRecordPurchase_ExplicitSupplierNameWins(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		ctx := context.Background()
		p := e.product(t, "Rasgulla")
		s, err := e.catalog.CreateSupplier(ctx, inventory.SupplierInput{Name: "Ganesh Dairy"})
		require.NoError(t, err)

		b, err := e.ledger.RecordPurchase(ctx, inventory.PurchaseRequest{
			ProductID: p.ID, BatchCode: "RG-1", Quantity: 10, UnitCost: money(20), ExpiryDate: day(4),
			SupplierID: &s.ID, SupplierName: "Ganesh Dairy (Kothrud)",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ganesh Dairy (Kothrud)", b.SupplierName)
	})
}

// =============================================================================
// STOCK VIEWS
// =============================================================================

func TestStockOverview_TotalsAndOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		ctx := context.Background()
		b := e.product(t, "Barfi")
		a := e.product(t, "Anjeer Roll")
		e.product(t, "No Stock")
		e.purchase(t, b.ID, "B2", 10, 1, 5, 1)
		e.purchase(t, b.ID, "B1", 5, 1, 9, 1)
		e.purchase(t, a.ID, "A1", 7, 1, 2, 1)
		_, err := e.sell(b.ID, 4, 2, "")
		require.NoError(t, err)

		overview, err := e.ledger.StockOverview(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, overview.TotalProducts)
		assert.Equal(t, 3, overview.TotalBatches)
		assert.Equal(t, int64(18), overview.TotalUnits)

		var rows []string
		for _, r := range overview.Batches {
			rows = append(rows, r.ProductName+"/"+r.BatchCode)
		}
		assert.Equal(t, []string{"Anjeer Roll/A1", "Barfi/B1", "Barfi/B2"}, rows)
	})
}

func TestListPurchases_OrderedByExpiryThenCode(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		p := e.product(t, "Peda")
		e.purchase(t, p.ID, "C", 1, 1, 9, 1)
		e.purchase(t, p.ID, "B", 1, 1, 3, 1)
		e.purchase(t, p.ID, "A", 1, 1, 9, 1)

		batches, err := e.ledger.ListPurchases(context.Background())
		require.NoError(t, err)

		var codes []string
		for _, b := range batches {
			codes = append(codes, b.BatchCode)
		}
		assert.Equal(t, []string{"B", "A", "C"}, codes)
	})
}

func TestExpiryAlerts_WithinHorizonWithStock(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		ctx := context.Background()
		p := e.product(t, "Gulab Jamun")
		e.purchase(t, p.ID, "EXPIRED", 5, 1, -1, 30)
		e.purchase(t, p.ID, "TODAY", 5, 1, 0, 20)
		e.purchase(t, p.ID, "EDGE", 5, 1, 7, 10)
		e.purchase(t, p.ID, "LATER", 5, 1, 8, 5)
		e.purchase(t, p.ID, "SOLD-OUT", 5, 1, 3, 1)

		// FIFO drains EXPIRED, TODAY and SOLD-OUT
		_, err := e.sell(p.ID, 15, 2, "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), e.remaining(t, p.ID)["SOLD-OUT"])

		e.purchase(t, p.ID, "STALE", 3, 1, -2, 2)

		alerts, err := e.ledger.ExpiryAlerts(ctx, 7)
		require.NoError(t, err)

		var got []string
		days := make(map[string]int)
		for _, a := range alerts {
			got = append(got, a.BatchCode)
			days[a.BatchCode] = a.DaysRemaining
			assert.Equal(t, "Gulab Jamun", a.ProductName)
		}
		assert.Equal(t, []string{"STALE", "EDGE"}, got)
		assert.Equal(t, -2, days["STALE"])
		assert.Equal(t, 7, days["EDGE"])
	})
}

func TestExpiryAlerts_NegativeHorizon(t *testing.T) {
	eachStore(t, func(t *testing.T, e *engine) {
		_, err := e.ledger.ExpiryAlerts(context.Background(), -1)
		assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	})
}
