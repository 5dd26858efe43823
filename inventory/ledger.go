/*
ledger.go - Batch ledger: purchases, eligibility and stock views

PURPOSE:
  Records purchases as batches and answers the read-side questions about
  them: which batches can serve a sale, what is on the shelf, and what is
  about to expire.

KEY CONCEPTS:
  - RecordPurchase: validates and inserts one batch in a transaction
  - EligibleBatches: remaining > 0, FIFO order (see FIFOLess)
  - StockOverview: every batch with product and supplier display names
  - ExpiryAlerts: batches with stock left that expire within a horizon

SUPPLIER SNAPSHOT:
  A batch keeps the supplier's name as it was at purchase time. A non-blank
  SupplierName on the request wins; otherwise the linked supplier's current
  name is copied.

SEE ALSO:
  - allocator.go: consumes EligibleBatches
*/
package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// REQUESTS + VIEWS
// =============================================================================

// PurchaseRequest describes one incoming batch.
type PurchaseRequest struct {
	ProductID    ProductID
	BatchCode    string
	Quantity     int64
	UnitCost     decimal.Decimal
	UnitSize     UnitSize // zero value means DefaultUnitSize
	ExpiryDate   time.Time
	SupplierID   *SupplierID
	SupplierName string
	PurchasedAt  time.Time // zero value means now
}

func (r PurchaseRequest) Validate() error {
	if r.ProductID == "" {
		return &ValidationError{Field: "product_id", Message: "required"}
	}
	if strings.TrimSpace(r.BatchCode) == "" {
		return &ValidationError{Field: "batch_code", Message: "must not be blank"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if !r.UnitCost.IsPositive() {
		return &ValidationError{Field: "unit_cost", Message: "must be positive"}
	}
	if r.ExpiryDate.IsZero() {
		return &ValidationError{Field: "expiry_date", Message: "required"}
	}
	if !r.UnitSize.IsZero() {
		return r.UnitSize.Validate()
	}
	return nil
}

// StockBatch is one row of the stock overview.
type StockBatch struct {
	Batch
	ProductName string
	// SupplierDisplay is the snapshot name, else the linked supplier's name.
	SupplierDisplay string
}

// StockOverview lists every batch with totals.
type StockOverview struct {
	TotalProducts int
	TotalBatches  int
	TotalUnits    int64
	Batches       []StockBatch
}

// ExpiryAlert flags a batch with stock left that expires within the horizon.
// DaysRemaining is negative for batches already past their expiry date.
type ExpiryAlert struct {
	Batch
	ProductName   string
	DaysRemaining int
}

// =============================================================================
// BATCH LEDGER
// =============================================================================

type BatchLedger struct {
	Store  TxStore
	Now    Clock
	Logger *zap.Logger
}

func NewBatchLedger(store TxStore, logger *zap.Logger) *BatchLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchLedger{Store: store, Now: systemClock, Logger: logger}
}

// RecordPurchase creates a batch with QuantityRemaining = QuantityInitial.
func (l *BatchLedger) RecordPurchase(ctx context.Context, req PurchaseRequest) (*Batch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	size := req.UnitSize
	if size.IsZero() {
		size = DefaultUnitSize
	}
	purchasedAt := req.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = l.Now()
	}

	batch := Batch{
		ID:                BatchID(uuid.NewString()),
		ProductID:         req.ProductID,
		BatchCode:         strings.TrimSpace(req.BatchCode),
		QuantityInitial:   req.Quantity,
		QuantityRemaining: req.Quantity,
		UnitCost:          req.UnitCost,
		UnitSize:          size,
		ExpiryDate:        DateOf(req.ExpiryDate),
		SupplierName:      strings.TrimSpace(req.SupplierName),
		PurchasedAt:       purchasedAt.UTC(),
	}

	err := l.Store.WithTx(ctx, func(s Store) error {
		product, err := s.GetProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return &NotFoundError{Entity: "product", ID: string(req.ProductID)}
		}

		if req.SupplierID != nil {
			supplier, err := s.GetSupplier(ctx, *req.SupplierID)
			if err != nil {
				return err
			}
			if supplier == nil {
				return &NotFoundError{Entity: "supplier", ID: string(*req.SupplierID)}
			}
			id := supplier.ID
			batch.SupplierID = &id
			if batch.SupplierName == "" {
				batch.SupplierName = supplier.Name
			}
		}

		exists, err := s.BatchCodeExists(ctx, batch.ProductID, batch.BatchCode)
		if err != nil {
			return err
		}
		if exists {
			return &ConflictError{Entity: "batch", Field: "batch_code", Value: batch.BatchCode}
		}
		return s.InsertBatch(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("purchase recorded",
		zap.String("batch_id", string(batch.ID)),
		zap.String("product_id", string(batch.ProductID)),
		zap.String("batch_code", batch.BatchCode),
		zap.Int64("quantity", batch.QuantityInitial),
	)
	return &batch, nil
}

// EligibleBatches returns the product's batches that can serve a sale, in
// allocation order.
func (l *BatchLedger) EligibleBatches(ctx context.Context, productID ProductID) ([]Batch, error) {
	return l.Store.EligibleBatches(ctx, productID)
}

// ListPurchases returns every batch ordered by expiry date, then batch code.
func (l *BatchLedger) ListPurchases(ctx context.Context) ([]Batch, error) {
	return l.Store.ListBatches(ctx)
}

// StockOverview returns every batch ordered by product name, then batch code.
func (l *BatchLedger) StockOverview(ctx context.Context) (*StockOverview, error) {
	products, err := l.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	suppliers, err := l.Store.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	batches, err := l.Store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}

	productNames := make(map[ProductID]string, len(products))
	for _, p := range products {
		productNames[p.ID] = p.Name
	}
	supplierNames := make(map[SupplierID]string, len(suppliers))
	for _, s := range suppliers {
		supplierNames[s.ID] = s.Name
	}

	overview := &StockOverview{TotalProducts: len(products), Batches: make([]StockBatch, 0, len(batches))}
	for _, b := range batches {
		name, ok := productNames[b.ProductID]
		if !ok {
			continue
		}
		display := b.SupplierName
		if display == "" && b.SupplierID != nil {
			display = supplierNames[*b.SupplierID]
		}
		overview.Batches = append(overview.Batches, StockBatch{Batch: b, ProductName: name, SupplierDisplay: display})
		overview.TotalUnits += b.QuantityRemaining
	}
	overview.TotalBatches = len(overview.Batches)

	sort.SliceStable(overview.Batches, func(i, j int) bool {
		a, b := overview.Batches[i], overview.Batches[j]
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.BatchCode < b.BatchCode
	})
	return overview, nil
}

// ExpiryAlerts returns batches with stock left whose expiry date falls on or
// before today plus horizonDays, earliest expiry first.
func (l *BatchLedger) ExpiryAlerts(ctx context.Context, horizonDays int) ([]ExpiryAlert, error) {
	if horizonDays < 0 {
		return nil, &ValidationError{Field: "days", Message: "must not be negative"}
	}
	today := DateOf(l.Now())
	deadline := today.AddDate(0, 0, horizonDays)

	batches, err := l.Store.ExpiringBatches(ctx, deadline)
	if err != nil {
		return nil, err
	}
	products, err := l.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	productNames := make(map[ProductID]string, len(products))
	for _, p := range products {
		productNames[p.ID] = p.Name
	}

	alerts := make([]ExpiryAlert, 0, len(batches))
	for _, b := range batches {
		alerts = append(alerts, ExpiryAlert{
			Batch:         b,
			ProductName:   productNames[b.ProductID],
			DaysRemaining: int(b.ExpiryDate.Sub(today).Hours() / 24),
		})
	}
	return alerts, nil
}
