/*
Package inventory provides the perishable stock engine.

PURPOSE:
  Products are purchased in dated, costed batches and sold against those
  batches in first-expiring-first-out order. Every sale records which
  batches it drew from and at what unit cost, so profit history never
  depends on the current state of a batch.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product, Supplier, Retailer: catalog records
  - Batch: a dated, costed lot of a product received from a purchase
  - Sale: one sale transaction against a product
  - Allocation: the portion of a sale drawn from one batch, with its cost
  - UnitSize: pack size of a batch or sale (e.g. 250 g)

DESIGN PRINCIPLES:
  1. Precision: money and sizes use decimal.Decimal, never float64
  2. Immutability: Allocations are written once and never updated
  3. Monotonic stock: Batch.QuantityRemaining only ever goes down
  4. Type Safety: distinct ID types for every entity

USAGE:
  size, _ := inventory.ParseUnitSize("250", "g")
  batch := inventory.Batch{
      ProductID:       "prod-1",
      BatchCode:       "A1",
      QuantityInitial: 50,
      UnitCost:        decimal.NewFromInt(120),
      UnitSize:        size,
  }

SEE ALSO:
  - errors.go: error taxonomy
  - store.go: persistence interfaces
  - allocator.go: the FIFO allocation engine
*/
package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type SupplierID string
type RetailerID string
type BatchID string
type SaleID string
type AllocationID string

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// UNIT SIZE - Pack size of a batch or sale
// =============================================================================

type SizeUnit string

const (
	UnitGram     SizeUnit = "g"
	UnitKilogram SizeUnit = "kg"
)

func (u SizeUnit) IsValid() bool {
	return u == UnitGram || u == UnitKilogram
}

type UnitSize struct {
	Value decimal.Decimal
	Unit  SizeUnit
}

// DefaultUnitSize is used when a purchase or sale does not name a pack size.
var DefaultUnitSize = UnitSize{Value: decimal.NewFromInt(1), Unit: UnitGram}

// ParseUnitSize builds a UnitSize from its textual parts.
func ParseUnitSize(value, unit string) (UnitSize, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return UnitSize{}, &ValidationError{Field: "unit_size_value", Message: "not a decimal number"}
	}
	size := UnitSize{Value: v, Unit: SizeUnit(unit)}
	return size, size.Validate()
}

func (s UnitSize) Validate() error {
	if !s.Value.IsPositive() {
		return &ValidationError{Field: "unit_size_value", Message: "must be positive"}
	}
	if !s.Unit.IsValid() {
		return &ValidationError{Field: "unit_size_unit", Message: fmt.Sprintf("unknown unit %q", s.Unit)}
	}
	return nil
}

func (s UnitSize) IsZero() bool { return s.Value.IsZero() && s.Unit == "" }

func (s UnitSize) String() string { return s.Value.String() + " " + string(s.Unit) }

// =============================================================================
// CATALOG
// =============================================================================

type Product struct {
	ID        ProductID
	Name      string
	Category  string
	Brand     string
	CreatedAt time.Time
}

type Supplier struct {
	ID            SupplierID
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	GSTNumber     string
	City          string
	CreatedAt     time.Time
}

type Retailer struct {
	ID            RetailerID
	Name          string
	Channel       string
	ContactPerson string
	Phone         string
	Email         string
	GSTNumber     string
	CreatedAt     time.Time
}

// =============================================================================
// BATCH - A dated, costed lot of a product
// =============================================================================

// Batch is one purchase of a product.
//
// INVARIANTS:
//   - 0 <= QuantityRemaining <= QuantityInitial
//   - QuantityInitial, UnitCost and ExpiryDate never change after creation
//   - (ProductID, BatchCode) is unique
type Batch struct {
	ID                BatchID
	ProductID         ProductID
	SupplierID        *SupplierID // nil once the supplier is deleted
	BatchCode         string
	QuantityInitial   int64
	QuantityRemaining int64
	UnitCost          decimal.Decimal
	UnitSize          UnitSize
	ExpiryDate        time.Time // calendar date, UTC midnight
	SupplierName      string    // provenance snapshot taken at purchase time
	PurchasedAt       time.Time
}

// Eligible reports whether the batch can still satisfy sales.
func (b Batch) Eligible() bool { return b.QuantityRemaining > 0 }

// Decrement removes amount units from the batch.
// Driving remaining below zero is an invariant violation, never clamped.
func (b *Batch) Decrement(amount int64) error {
	if amount <= 0 {
		return &InvariantError{BatchID: b.ID, Detail: fmt.Sprintf("non-positive decrement %d", amount)}
	}
	if amount > b.QuantityRemaining {
		return &InvariantError{
			BatchID: b.ID,
			Detail:  fmt.Sprintf("decrement %d exceeds remaining %d", amount, b.QuantityRemaining),
		}
	}
	b.QuantityRemaining -= amount
	return nil
}

// CheckInvariant verifies the remaining-quantity bounds.
func (b Batch) CheckInvariant() error {
	if b.QuantityRemaining < 0 || b.QuantityRemaining > b.QuantityInitial {
		return &InvariantError{
			BatchID: b.ID,
			Detail:  fmt.Sprintf("remaining %d outside [0, %d]", b.QuantityRemaining, b.QuantityInitial),
		}
	}
	return nil
}

// FIFOLess orders batches for allocation: earliest expiry first, then the
// oldest receipt, then batch code so that the order is total.
func FIFOLess(a, b Batch) bool {
	if !a.ExpiryDate.Equal(b.ExpiryDate) {
		return a.ExpiryDate.Before(b.ExpiryDate)
	}
	if !a.PurchasedAt.Equal(b.PurchasedAt) {
		return a.PurchasedAt.Before(b.PurchasedAt)
	}
	return a.BatchCode < b.BatchCode
}

// SortFIFO sorts batches in allocation order.
func SortFIFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool { return FIFOLess(batches[i], batches[j]) })
}

// =============================================================================
// SALE + ALLOCATION
// =============================================================================

// Sale is a single sale of a product. Its allocations always sum to Quantity.
type Sale struct {
	ID            SaleID
	ProductID     ProductID
	RetailerID    *RetailerID // nil once the retailer is deleted
	Quantity      int64
	SellingPrice  decimal.Decimal
	UnitSize      UnitSize
	InvoiceNumber string // empty when the sale has no invoice
	CustomerName  string
	SoldAt        time.Time
	Allocations   []Allocation

	// Retailer is populated by listings when the link is still present.
	Retailer *Retailer
}

// Allocation records how much of a sale came from one batch, at what cost.
// UnitCost is copied from the batch when the sale is written.
type Allocation struct {
	ID       AllocationID
	SaleID   SaleID
	BatchID  BatchID
	Quantity int64
	UnitCost decimal.Decimal
}

func (a Allocation) Cost() decimal.Decimal {
	return a.UnitCost.Mul(decimal.NewFromInt(a.Quantity))
}

func (s Sale) Revenue() decimal.Decimal {
	return s.SellingPrice.Mul(decimal.NewFromInt(s.Quantity))
}

// CostOfGoods sums the cost snapshot of every allocation.
func (s Sale) CostOfGoods() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.Allocations {
		total = total.Add(a.Cost())
	}
	return total
}

func (s Sale) AllocatedQuantity() int64 {
	var n int64
	for _, a := range s.Allocations {
		n += a.Quantity
	}
	return n
}
