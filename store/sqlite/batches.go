package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// BATCH STORE (inventory.BatchStore interface)
// =============================================================================

const batchColumns = `id, product_id, supplier_id, batch_code, quantity_initial, quantity_remaining,
	unit_cost, unit_size_value, unit_size_unit, expiry_date, supplier_name, purchased_at`

// fifoOrder is the allocation order. batch_code makes it total.
const fifoOrder = `ORDER BY expiry_date ASC, purchased_at ASC, batch_code ASC`

type batchRow struct {
	ID                string         `db:"id"`
	ProductID         string         `db:"product_id"`
	SupplierID        sql.NullString `db:"supplier_id"`
	BatchCode         string         `db:"batch_code"`
	QuantityInitial   int64          `db:"quantity_initial"`
	QuantityRemaining int64          `db:"quantity_remaining"`
	UnitCost          string         `db:"unit_cost"`
	UnitSizeValue     string         `db:"unit_size_value"`
	UnitSizeUnit      string         `db:"unit_size_unit"`
	ExpiryDate        string         `db:"expiry_date"`
	SupplierName      sql.NullString `db:"supplier_name"`
	PurchasedAt       string         `db:"purchased_at"`
}

func (r batchRow) toDomain() (inventory.Batch, error) {
	unitCost, err := decimal.NewFromString(r.UnitCost)
	if err != nil {
		return inventory.Batch{}, fmt.Errorf("batch %s: bad unit_cost %q: %w", r.ID, r.UnitCost, err)
	}
	sizeValue, err := decimal.NewFromString(r.UnitSizeValue)
	if err != nil {
		return inventory.Batch{}, fmt.Errorf("batch %s: bad unit_size_value %q: %w", r.ID, r.UnitSizeValue, err)
	}
	expiry, err := parseDate(r.ExpiryDate)
	if err != nil {
		return inventory.Batch{}, err
	}
	purchasedAt, err := parseTimestamp(r.PurchasedAt)
	if err != nil {
		return inventory.Batch{}, err
	}

	b := inventory.Batch{
		ID:                inventory.BatchID(r.ID),
		ProductID:         inventory.ProductID(r.ProductID),
		BatchCode:         r.BatchCode,
		QuantityInitial:   r.QuantityInitial,
		QuantityRemaining: r.QuantityRemaining,
		UnitCost:          unitCost,
		UnitSize:          inventory.UnitSize{Value: sizeValue, Unit: inventory.SizeUnit(r.UnitSizeUnit)},
		ExpiryDate:        expiry,
		SupplierName:      r.SupplierName.String,
		PurchasedAt:       purchasedAt,
	}
	if r.SupplierID.Valid {
		id := inventory.SupplierID(r.SupplierID.String)
		b.SupplierID = &id
	}
	return b, nil
}

func batchesFromRows(rows []batchRow) ([]inventory.Batch, error) {
	out := make([]inventory.Batch, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// --- Store methods (locking) ---

func (s *Store) InsertBatch(ctx context.Context, b inventory.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.insertBatch(ctx, b)
}

func (s *Store) BatchCodeExists(ctx context.Context, productID inventory.ProductID, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.batchCodeExists(ctx, productID, code)
}

func (s *Store) EligibleBatches(ctx context.Context, productID inventory.ProductID) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.eligibleBatches(ctx, productID)
}

func (s *Store) ListBatches(ctx context.Context) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listBatches(ctx)
}

func (s *Store) ExpiringBatches(ctx context.Context, deadline time.Time) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.expiringBatches(ctx, deadline)
}

func (s *Store) DecrementBatch(ctx context.Context, id inventory.BatchID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.decrementBatch(ctx, id, amount)
}

// --- queries ---

func (q queries) insertBatch(ctx context.Context, b inventory.Batch) error {
	if err := b.CheckInvariant(); err != nil {
		return err
	}
	var supplierID sql.NullString
	if b.SupplierID != nil {
		supplierID = nullString(string(*b.SupplierID))
	}

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO inventory_batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.ProductID,
		supplierID,
		b.BatchCode,
		b.QuantityInitial,
		b.QuantityRemaining,
		b.UnitCost.String(),
		b.UnitSize.Value.String(),
		string(b.UnitSize.Unit),
		formatDate(b.ExpiryDate),
		nullString(b.SupplierName),
		formatTimestamp(b.PurchasedAt),
	)
	if err != nil {
		if uniqueViolationOn(err, "inventory_batches.batch_code") {
			return &inventory.ConflictError{Entity: "batch", Field: "batch_code", Value: b.BatchCode}
		}
		if isUniqueConstraintError(err) {
			return &inventory.ConflictError{Entity: "batch", Field: "id", Value: string(b.ID)}
		}
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (q queries) batchCodeExists(ctx context.Context, productID inventory.ProductID, code string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		`SELECT COUNT(*) FROM inventory_batches WHERE product_id = ? AND batch_code = ?`, productID, code)
	if err != nil {
		return false, fmt.Errorf("failed to check batch code: %w", err)
	}
	return n > 0, nil
}

func (q queries) eligibleBatches(ctx context.Context, productID inventory.ProductID) ([]inventory.Batch, error) {
	var rows []batchRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+batchColumns+` FROM inventory_batches
		WHERE product_id = ? AND quantity_remaining > 0
		`+fifoOrder, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load eligible batches: %w", err)
	}
	return batchesFromRows(rows)
}

func (q queries) listBatches(ctx context.Context) ([]inventory.Batch, error) {
	var rows []batchRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+batchColumns+` FROM inventory_batches
		ORDER BY expiry_date ASC, batch_code ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batchesFromRows(rows)
}

func (q queries) expiringBatches(ctx context.Context, deadline time.Time) ([]inventory.Batch, error) {
	var rows []batchRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+batchColumns+` FROM inventory_batches
		WHERE expiry_date <= ? AND quantity_remaining > 0
		`+fifoOrder, formatDate(deadline))
	if err != nil {
		return nil, fmt.Errorf("failed to load expiring batches: %w", err)
	}
	return batchesFromRows(rows)
}

// decrementBatch is a guarded UPDATE: it never drives remaining below zero.
func (q queries) decrementBatch(ctx context.Context, id inventory.BatchID, amount int64) error {
	if amount <= 0 {
		return &inventory.InvariantError{BatchID: id, Detail: fmt.Sprintf("non-positive decrement %d", amount)}
	}
	res, err := q.ext.ExecContext(ctx, `
		UPDATE inventory_batches
		SET quantity_remaining = quantity_remaining - ?
		WHERE id = ? AND quantity_remaining >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var remaining int64
	err = sqlx.GetContext(ctx, q.ext, &remaining,
		`SELECT quantity_remaining FROM inventory_batches WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &inventory.NotFoundError{Entity: "batch", ID: string(id)}
		}
		return fmt.Errorf("failed to read batch: %w", err)
	}
	return &inventory.InvariantError{
		BatchID: id,
		Detail:  fmt.Sprintf("decrement %d exceeds remaining %d", amount, remaining),
	}
}
