/*
allocator.go - FIFO allocation of sales to batches

PURPOSE:
  Turns a sale request into a Sale plus the Allocations that draw it down
  from the product's batches, earliest expiry first.

ALGORITHM:
  Inside one WithTx unit of work:
  1. Resolve the product (NotFound)
  2. Resolve the retailer if given (NotFound); snapshot its name as the
     customer name unless the request carries a non-blank one
  3. Trim the invoice number; a non-blank number already used is a Conflict
  4. Load eligible batches in FIFO order
  5. If they hold less than the requested quantity: InsufficientStock,
     nothing is written
  6. Walk the batches taking min(left, batch.remaining) from each and copy
     the batch's unit cost onto the allocation
  7. Decrement every touched batch and write the sale with its allocations

  Any error rolls back the whole unit of work. Quantity left over after the
  walk is an InvariantViolation, never a short sale.

EXAMPLE:
  Batches (expiry order): A1 remaining 50 @120, B1 remaining 80 @110
  Sale of 70 units:
    A1: take 50 @120 -> remaining 0
    B1: take 20 @110 -> remaining 60
  Cost of goods = 50*120 + 20*110 = 8200

SEE ALSO:
  - ledger.go: EligibleBatches ordering
  - sales.go: reading sales back
*/
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleRequest describes one sale.
type SaleRequest struct {
	ProductID     ProductID
	Quantity      int64
	SellingPrice  decimal.Decimal
	UnitSize      UnitSize // zero value means DefaultUnitSize
	RetailerID    *RetailerID
	CustomerName  string
	InvoiceNumber string
	SoldAt        time.Time // zero value means now
}

func (r SaleRequest) Validate() error {
	if r.ProductID == "" {
		return &ValidationError{Field: "product_id", Message: "required"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if !r.SellingPrice.IsPositive() {
		return &ValidationError{Field: "selling_price", Message: "must be positive"}
	}
	if !r.UnitSize.IsZero() {
		return r.UnitSize.Validate()
	}
	return nil
}

// =============================================================================
// PLANNING - pure FIFO walk
// =============================================================================

// Available sums the remaining stock of batches.
func Available(batches []Batch) int64 {
	var total int64
	for _, b := range batches {
		if b.Eligible() {
			total += b.QuantityRemaining
		}
	}
	return total
}

// PlanAllocation walks batches in the order given and returns the
// allocations covering quantity. Batches must already be in FIFO order.
// It returns *InsufficientStockError when the batches hold too little and
// *InvariantError if the walk ends short anyway.
func PlanAllocation(productID ProductID, batches []Batch, quantity int64) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	available := Available(batches)
	if available < quantity {
		return nil, &InsufficientStockError{ProductID: productID, Available: available, Requested: quantity}
	}

	left := quantity
	var plan []Allocation
	for _, b := range batches {
		if left == 0 {
			break
		}
		if !b.Eligible() {
			continue
		}
		take := min(left, b.QuantityRemaining)
		plan = append(plan, Allocation{
			BatchID:  b.ID,
			Quantity: take,
			UnitCost: b.UnitCost,
		})
		left -= take
	}
	if left != 0 {
		return nil, &InvariantError{Detail: fmt.Sprintf("allocation walk ended with %d units unallocated", left)}
	}
	return plan, nil
}

// =============================================================================
// ALLOCATOR
// =============================================================================

type Allocator struct {
	Store  TxStore
	Now    Clock
	Logger *zap.Logger
}

func NewAllocator(store TxStore, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{Store: store, Now: systemClock, Logger: logger}
}

// AllocateSale records a sale and its FIFO allocations atomically.
func (a *Allocator) AllocateSale(ctx context.Context, req SaleRequest) (*Sale, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	size := req.UnitSize
	if size.IsZero() {
		size = DefaultUnitSize
	}
	soldAt := req.SoldAt
	if soldAt.IsZero() {
		soldAt = a.Now()
	}

	sale := Sale{
		ID:            SaleID(uuid.NewString()),
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		SellingPrice:  req.SellingPrice,
		UnitSize:      size,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		SoldAt:        soldAt.UTC(),
	}

	err := a.Store.WithTx(ctx, func(s Store) error {
		product, err := s.GetProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return &NotFoundError{Entity: "product", ID: string(req.ProductID)}
		}

		if req.RetailerID != nil {
			retailer, err := s.GetRetailer(ctx, *req.RetailerID)
			if err != nil {
				return err
			}
			if retailer == nil {
				return &NotFoundError{Entity: "retailer", ID: string(*req.RetailerID)}
			}
			id := retailer.ID
			sale.RetailerID = &id
			sale.Retailer = retailer
			if sale.CustomerName == "" {
				sale.CustomerName = retailer.Name
			}
		}

		if sale.InvoiceNumber != "" {
			used, err := s.InvoiceExists(ctx, sale.InvoiceNumber)
			if err != nil {
				return err
			}
			if used {
				return &ConflictError{Entity: "sale", Field: "invoice_number", Value: sale.InvoiceNumber}
			}
		}

		batches, err := s.EligibleBatches(ctx, req.ProductID)
		if err != nil {
			return err
		}
		plan, err := PlanAllocation(req.ProductID, batches, req.Quantity)
		if err != nil {
			return err
		}

		for i := range plan {
			plan[i].ID = AllocationID(uuid.NewString())
			plan[i].SaleID = sale.ID
			if err := s.DecrementBatch(ctx, plan[i].BatchID, plan[i].Quantity); err != nil {
				return err
			}
		}
		sale.Allocations = plan

		if got := sale.AllocatedQuantity(); got != sale.Quantity {
			return &InvariantError{Detail: fmt.Sprintf("allocated %d of %d units", got, sale.Quantity)}
		}
		return s.InsertSale(ctx, sale)
	})
	if err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			a.Logger.Error("sale allocation violated stock invariant",
				zap.String("product_id", string(req.ProductID)),
				zap.Int64("quantity", req.Quantity),
				zap.Error(err),
			)
		}
		return nil, err
	}

	a.Logger.Info("sale allocated",
		zap.String("sale_id", string(sale.ID)),
		zap.String("product_id", string(sale.ProductID)),
		zap.Int64("quantity", sale.Quantity),
		zap.Int("allocations", len(sale.Allocations)),
	)
	return &sale, nil
}
