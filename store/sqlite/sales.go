package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// SALE STORE (inventory.SaleStore interface)
// =============================================================================

const saleColumns = `id, product_id, retailer_id, quantity, selling_price, unit_size_value,
	unit_size_unit, invoice_number, customer_name, sale_date`

type saleRow struct {
	ID            string         `db:"id"`
	ProductID     string         `db:"product_id"`
	RetailerID    sql.NullString `db:"retailer_id"`
	Quantity      int64          `db:"quantity"`
	SellingPrice  string         `db:"selling_price"`
	UnitSizeValue string         `db:"unit_size_value"`
	UnitSizeUnit  string         `db:"unit_size_unit"`
	InvoiceNumber sql.NullString `db:"invoice_number"`
	CustomerName  sql.NullString `db:"customer_name"`
	SaleDate      string         `db:"sale_date"`
}

func (r saleRow) toDomain() (inventory.Sale, error) {
	price, err := decimal.NewFromString(r.SellingPrice)
	if err != nil {
		return inventory.Sale{}, fmt.Errorf("sale %s: bad selling_price %q: %w", r.ID, r.SellingPrice, err)
	}
	sizeValue, err := decimal.NewFromString(r.UnitSizeValue)
	if err != nil {
		return inventory.Sale{}, fmt.Errorf("sale %s: bad unit_size_value %q: %w", r.ID, r.UnitSizeValue, err)
	}
	soldAt, err := parseTimestamp(r.SaleDate)
	if err != nil {
		return inventory.Sale{}, err
	}

	s := inventory.Sale{
		ID:            inventory.SaleID(r.ID),
		ProductID:     inventory.ProductID(r.ProductID),
		Quantity:      r.Quantity,
		SellingPrice:  price,
		UnitSize:      inventory.UnitSize{Value: sizeValue, Unit: inventory.SizeUnit(r.UnitSizeUnit)},
		InvoiceNumber: r.InvoiceNumber.String,
		CustomerName:  r.CustomerName.String,
		SoldAt:        soldAt,
	}
	if r.RetailerID.Valid {
		id := inventory.RetailerID(r.RetailerID.String)
		s.RetailerID = &id
	}
	return s, nil
}

type allocationRow struct {
	ID       string `db:"id"`
	SaleID   string `db:"sale_id"`
	BatchID  string `db:"batch_id"`
	Seq      int    `db:"seq"`
	Quantity int64  `db:"quantity"`
	UnitCost string `db:"unit_cost"`
}

func (r allocationRow) toDomain() (inventory.Allocation, error) {
	cost, err := decimal.NewFromString(r.UnitCost)
	if err != nil {
		return inventory.Allocation{}, fmt.Errorf("allocation %s: bad unit_cost %q: %w", r.ID, r.UnitCost, err)
	}
	return inventory.Allocation{
		ID:       inventory.AllocationID(r.ID),
		SaleID:   inventory.SaleID(r.SaleID),
		BatchID:  inventory.BatchID(r.BatchID),
		Quantity: r.Quantity,
		UnitCost: cost,
	}, nil
}

// --- Store methods (locking) ---

func (s *Store) InvoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.invoiceExists(ctx, invoiceNumber)
}

// InsertSale writes the sale and its allocations in one transaction.
func (s *Store) InsertSale(ctx context.Context, sale inventory.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q queries) error { return q.insertSale(ctx, sale) })
}

func (s *Store) GetSale(ctx context.Context, id inventory.SaleID) (*inventory.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getSale(ctx, id)
}

func (s *Store) ListSales(ctx context.Context) ([]inventory.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listSales(ctx)
}

// --- queries ---

func (q queries) invoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return false, nil
	}
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n, `SELECT COUNT(*) FROM sales WHERE invoice_number = ?`, invoiceNumber)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice number: %w", err)
	}
	return n > 0, nil
}

func (q queries) insertSale(ctx context.Context, sale inventory.Sale) error {
	var retailerID sql.NullString
	if sale.RetailerID != nil {
		retailerID = nullString(string(*sale.RetailerID))
	}

	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.ProductID,
		retailerID,
		sale.Quantity,
		sale.SellingPrice.String(),
		sale.UnitSize.Value.String(),
		string(sale.UnitSize.Unit),
		nullString(strings.TrimSpace(sale.InvoiceNumber)),
		nullString(sale.CustomerName),
		formatTimestamp(sale.SoldAt),
	)
	if err != nil {
		if uniqueViolationOn(err, "sales.invoice_number") {
			return &inventory.ConflictError{Entity: "sale", Field: "invoice_number", Value: sale.InvoiceNumber}
		}
		if isUniqueConstraintError(err) {
			return &inventory.ConflictError{Entity: "sale", Field: "id", Value: string(sale.ID)}
		}
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for i, a := range sale.Allocations {
		_, err := q.ext.ExecContext(ctx, `
			INSERT INTO sale_allocations (id, sale_id, batch_id, seq, quantity, unit_cost)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, sale.ID, a.BatchID, i, a.Quantity, a.UnitCost.String(),
		)
		if err != nil {
			if strings.Contains(err.Error(), "CHECK constraint failed") {
				return &inventory.InvariantError{BatchID: a.BatchID, Detail: "allocation quantity must be positive"}
			}
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}
	return nil
}

func (q queries) getSale(ctx context.Context, id inventory.SaleID) (*inventory.Sale, error) {
	var row saleRow
	err := sqlx.GetContext(ctx, q.ext, &row, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	sales, err := q.hydrateSales(ctx, []saleRow{row})
	if err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// listSales returns newest first; rowid breaks ties between equal timestamps.
func (q queries) listSales(ctx context.Context) ([]inventory.Sale, error) {
	var rows []saleRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT `+saleColumns+` FROM sales ORDER BY sale_date DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return q.hydrateSales(ctx, rows)
}

// hydrateSales converts rows and eagerly loads allocations and retailers.
func (q queries) hydrateSales(ctx context.Context, rows []saleRow) ([]inventory.Sale, error) {
	sales := make([]inventory.Sale, 0, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}

	saleIDs := make([]string, 0, len(rows))
	var retailerIDs []string
	for _, r := range rows {
		s, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
		saleIDs = append(saleIDs, r.ID)
		if r.RetailerID.Valid {
			retailerIDs = append(retailerIDs, r.RetailerID.String)
		}
	}

	allocations, err := q.allocationsBySale(ctx, saleIDs)
	if err != nil {
		return nil, err
	}
	retailers, err := q.retailersByID(ctx, retailerIDs)
	if err != nil {
		return nil, err
	}

	for i := range sales {
		sales[i].Allocations = allocations[sales[i].ID]
		if sales[i].RetailerID != nil {
			if r, ok := retailers[*sales[i].RetailerID]; ok {
				r := r
				sales[i].Retailer = &r
			}
		}
	}
	return sales, nil
}

func (q queries) allocationsBySale(ctx context.Context, saleIDs []string) (map[inventory.SaleID][]inventory.Allocation, error) {
	query, args, err := sqlx.In(`
		SELECT id, sale_id, batch_id, seq, quantity, unit_cost FROM sale_allocations
		WHERE sale_id IN (?)
		ORDER BY sale_id, seq`, saleIDs)
	if err != nil {
		return nil, err
	}
	var rows []allocationRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, q.ext.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	out := make(map[inventory.SaleID][]inventory.Allocation, len(saleIDs))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[a.SaleID] = append(out[a.SaleID], a)
	}
	return out, nil
}

func (q queries) retailersByID(ctx context.Context, ids []string) (map[inventory.RetailerID]inventory.Retailer, error) {
	out := make(map[inventory.RetailerID]inventory.Retailer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM retailers WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []retailerRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, q.ext.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load retailers: %w", err)
	}
	for _, row := range rows {
		r, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[r.ID] = r
	}
	return out, nil
}
