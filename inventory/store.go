/*
store.go - Persistence interfaces for the inventory engine

PURPOSE:
  Defines the boundary between the engine and the database. Stores persist
  catalog records, batches, sales and allocations. Different implementations
  use SQLite or memory.

KEY INTERFACES:
  CatalogStore: products, suppliers, retailers
  BatchStore:   inventory batches, FIFO-ordered eligibility, decrements
  SaleStore:    sales with their allocations
  TxStore:      all of the above plus atomic units of work

DELETE RULES:
  Stores implement reference rules explicitly at delete time, never by
  relying on an engine's foreign-key actions:
  - DeleteProduct removes its batches, sales and their allocations
  - DeleteSupplier nulls Batch.SupplierID (SupplierName snapshot stays)
  - DeleteRetailer nulls Sale.RetailerID (CustomerName snapshot stays)

ATOMICITY:
  WithTx runs fn against a Store bound to one transaction. If fn returns an
  error, every write made through that Store is rolled back. Transactions are
  serialized, so the eligibility read and the decrements of one sale cannot
  interleave with another sale.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - inventory/store/memory.go: in-memory for tests and development

SEE ALSO:
  - allocator.go: the main WithTx user
*/
package inventory

import (
	"context"
	"time"
)

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore persists products, suppliers and retailers.
// Get* return (nil, nil) when the record does not exist.
// Insert* return *ConflictError on a duplicate name.
// Delete* return *NotFoundError when nothing was deleted.
type CatalogStore interface {
	InsertProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	DeleteProduct(ctx context.Context, id ProductID) error

	InsertSupplier(ctx context.Context, s Supplier) error
	GetSupplier(ctx context.Context, id SupplierID) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	DeleteSupplier(ctx context.Context, id SupplierID) error

	InsertRetailer(ctx context.Context, r Retailer) error
	GetRetailer(ctx context.Context, id RetailerID) (*Retailer, error)
	ListRetailers(ctx context.Context) ([]Retailer, error)
	DeleteRetailer(ctx context.Context, id RetailerID) error
}

// =============================================================================
// BATCH STORE
// =============================================================================

// BatchStore persists inventory batches.
type BatchStore interface {
	// InsertBatch returns *ConflictError if (ProductID, BatchCode) exists.
	InsertBatch(ctx context.Context, b Batch) error

	BatchCodeExists(ctx context.Context, productID ProductID, code string) (bool, error)

	// EligibleBatches returns the product's batches with remaining stock,
	// ordered by FIFOLess.
	EligibleBatches(ctx context.Context, productID ProductID) ([]Batch, error)

	// ListBatches returns every batch ordered by expiry date, then batch code.
	ListBatches(ctx context.Context) ([]Batch, error)

	// ExpiringBatches returns batches with remaining stock expiring on or
	// before deadline, ordered by FIFOLess.
	ExpiringBatches(ctx context.Context, deadline time.Time) ([]Batch, error)

	// DecrementBatch lowers remaining stock. Returns *InvariantError if amount
	// exceeds what remains.
	DecrementBatch(ctx context.Context, id BatchID, amount int64) error
}

// =============================================================================
// SALE STORE
// =============================================================================

// SaleStore persists sales together with their allocations.
type SaleStore interface {
	InvoiceExists(ctx context.Context, invoiceNumber string) (bool, error)

	// InsertSale writes the sale and all of its allocations.
	// Returns *ConflictError on a duplicate invoice number.
	InsertSale(ctx context.Context, s Sale) error

	// GetSale returns (nil, nil) when the sale does not exist.
	GetSale(ctx context.Context, id SaleID) (*Sale, error)

	// ListSales returns sales newest first, with allocations and retailer.
	ListSales(ctx context.Context) ([]Sale, error)
}

// Store is the full persistence surface.
type Store interface {
	CatalogStore
	BatchStore
	SaleStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// fn must only use the Store it is given.
	WithTx(ctx context.Context, fn func(Store) error) error
}
