/*
Package sqlite provides a SQLite-backed implementation of inventory.TxStore.

PURPOSE:
  Persists the catalog, inventory batches, sales and sale allocations in a
  single SQLite database. Queries go through sqlx so the same code runs on
  the connection pool and inside a transaction.

INTERFACES IMPLEMENTED:
  inventory.CatalogStore: products, suppliers, retailers
  inventory.BatchStore:   inventory batches
  inventory.SaleStore:    sales + allocations
  inventory.TxStore:      WithTx units of work

KEY TABLES:
  products, suppliers, retailers: catalog, names unique
  inventory_batches:  one row per purchase, UNIQUE(product_id, batch_code)
  sales:              one row per sale, invoice_number unique when present
  sale_allocations:   sale -> batch draws with the unit cost snapshot

CONSTRAINTS:
  The schema backs the engine's invariants:
  - CHECK 0 <= quantity_remaining <= quantity_initial
  - CHECK allocation quantity > 0
  - decrements are guarded UPDATEs that never go below zero
  Reference rules (cascade product, null supplier/retailer) are executed
  explicitly at delete time. Foreign keys only reject dangling rows.

INDEXES:
  - idx_batches_fifo: eligible batch lookup (hot path of every sale)
  - idx_batches_expiry: expiry alerts
  - idx_sales_invoice: partial unique index on invoice_number
  - idx_allocations_sale / idx_allocations_batch: allocation loading, cascades

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection. Transactions start with
  BEGIN IMMEDIATE (_txlock=immediate) so two sales can never read the same
  eligible stock before either decrements it.

TIME FORMAT:
  Timestamps are stored as fixed-width UTC text so that ORDER BY on the
  column is chronological. Dates are stored as YYYY-MM-DD.

USAGE:
  store, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  allocator := inventory.NewAllocator(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/stock-engine/inventory"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout      = "2006-01-02"
)

// Store implements inventory.TxStore using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
	q  queries
}

var _ inventory.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, q: queries{ext: db}}
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
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		contact_person TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		gst_number TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS retailers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		channel TEXT NOT NULL DEFAULT '',
		contact_person TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		gst_number TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inventory_batches (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		supplier_id TEXT REFERENCES suppliers(id),
		batch_code TEXT NOT NULL,
		quantity_initial INTEGER NOT NULL CHECK (quantity_initial > 0),
		quantity_remaining INTEGER NOT NULL
			CHECK (quantity_remaining >= 0 AND quantity_remaining <= quantity_initial),
		unit_cost TEXT NOT NULL,
		unit_size_value TEXT NOT NULL,
		unit_size_unit TEXT NOT NULL CHECK (unit_size_unit IN ('g', 'kg')),
		expiry_date TEXT NOT NULL,
		supplier_name TEXT,
		purchased_at TEXT NOT NULL,
		UNIQUE (product_id, batch_code)
	);

	-- Eligible batch lookup: WHERE product_id = ? AND quantity_remaining > 0
	-- ORDER BY expiry_date, purchased_at, batch_code
	CREATE INDEX IF NOT EXISTS idx_batches_fifo
		ON inventory_batches(product_id, expiry_date, purchased_at, batch_code);
	CREATE INDEX IF NOT EXISTS idx_batches_expiry
		ON inventory_batches(expiry_date) WHERE quantity_remaining > 0;
	CREATE INDEX IF NOT EXISTS idx_batches_supplier
		ON inventory_batches(supplier_id) WHERE supplier_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		retailer_id TEXT REFERENCES retailers(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		selling_price TEXT NOT NULL,
		unit_size_value TEXT NOT NULL,
		unit_size_unit TEXT NOT NULL CHECK (unit_size_unit IN ('g', 'kg')),
		invoice_number TEXT,
		customer_name TEXT,
		sale_date TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_invoice
		ON sales(invoice_number) WHERE invoice_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_sales_date
		ON sales(sale_date DESC);
	CREATE INDEX IF NOT EXISTS idx_sales_product
		ON sales(product_id);

	CREATE TABLE IF NOT EXISTS sale_allocations (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		batch_id TEXT NOT NULL REFERENCES inventory_batches(id),
		seq INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_cost TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_sale
		ON sale_allocations(sale_id, seq);
	CREATE INDEX IF NOT EXISTS idx_allocations_batch
		ON sale_allocations(batch_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q queries) error {
		return fn(&txStore{q: q})
	})
}

// inTx runs fn in a transaction. Callers hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(q queries) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{ext: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the Store handed to WithTx callbacks. The parent already holds
// the write lock, so nothing here locks again.
type txStore struct {
	q queries
}

func (ts *txStore) InsertProduct(ctx context.Context, p inventory.Product) error {
	return ts.q.insertProduct(ctx, p)
}

func (ts *txStore) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	return ts.q.getProduct(ctx, id)
}

func (ts *txStore) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return ts.q.listProducts(ctx)
}

func (ts *txStore) DeleteProduct(ctx context.Context, id inventory.ProductID) error {
	return ts.q.deleteProduct(ctx, id)
}

func (ts *txStore) InsertSupplier(ctx context.Context, sp inventory.Supplier) error {
	return ts.q.insertSupplier(ctx, sp)
}

func (ts *txStore) GetSupplier(ctx context.Context, id inventory.SupplierID) (*inventory.Supplier, error) {
	return ts.q.getSupplier(ctx, id)
}

func (ts *txStore) ListSuppliers(ctx context.Context) ([]inventory.Supplier, error) {
	return ts.q.listSuppliers(ctx)
}

func (ts *txStore) DeleteSupplier(ctx context.Context, id inventory.SupplierID) error {
	return ts.q.deleteSupplier(ctx, id)
}

func (ts *txStore) InsertRetailer(ctx context.Context, r inventory.Retailer) error {
	return ts.q.insertRetailer(ctx, r)
}

func (ts *txStore) GetRetailer(ctx context.Context, id inventory.RetailerID) (*inventory.Retailer, error) {
	return ts.q.getRetailer(ctx, id)
}

func (ts *txStore) ListRetailers(ctx context.Context) ([]inventory.Retailer, error) {
	return ts.q.listRetailers(ctx)
}

func (ts *txStore) DeleteRetailer(ctx context.Context, id inventory.RetailerID) error {
	return ts.q.deleteRetailer(ctx, id)
}

func (ts *txStore) InsertBatch(ctx context.Context, b inventory.Batch) error {
	return ts.q.insertBatch(ctx, b)
}

func (ts *txStore) BatchCodeExists(ctx context.Context, productID inventory.ProductID, code string) (bool, error) {
	return ts.q.batchCodeExists(ctx, productID, code)
}

func (ts *txStore) EligibleBatches(ctx context.Context, productID inventory.ProductID) ([]inventory.Batch, error) {
	return ts.q.eligibleBatches(ctx, productID)
}

func (ts *txStore) ListBatches(ctx context.Context) ([]inventory.Batch, error) {
	return ts.q.listBatches(ctx)
}

func (ts *txStore) ExpiringBatches(ctx context.Context, deadline time.Time) ([]inventory.Batch, error) {
	return ts.q.expiringBatches(ctx, deadline)
}

func (ts *txStore) DecrementBatch(ctx context.Context, id inventory.BatchID, amount int64) error {
	return ts.q.decrementBatch(ctx, id, amount)
}

func (ts *txStore) InvoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	return ts.q.invoiceExists(ctx, invoiceNumber)
}

func (ts *txStore) InsertSale(ctx context.Context, sale inventory.Sale) error {
	return ts.q.insertSale(ctx, sale)
}

func (ts *txStore) GetSale(ctx context.Context, id inventory.SaleID) (*inventory.Sale, error) {
	return ts.q.getSale(ctx, id)
}

func (ts *txStore) ListSales(ctx context.Context) ([]inventory.Sale, error) {
	return ts.q.listSales(ctx)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(q queries) error {
		tables := []string{"sale_allocations", "sales", "inventory_batches", "retailers", "suppliers", "products"}
		for _, table := range tables {
			if _, err := q.ext.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// queries runs every statement against either the pool or a transaction.
type queries struct {
	ext sqlx.ExtContext
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func formatDate(t time.Time) string {
	return inventory.DateOf(t).Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", value, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// uniqueViolationOn reports whether err is a unique failure naming column.
// SQLite reports "UNIQUE constraint failed: table.column[, table.column]".
func uniqueViolationOn(err error, column string) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), column)
}
