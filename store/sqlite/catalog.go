package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// CATALOG STORE (inventory.CatalogStore interface)
// =============================================================================

type productRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Category  string `db:"category"`
	Brand     string `db:"brand"`
	CreatedAt string `db:"created_at"`
}

func (r productRow) toDomain() (inventory.Product, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return inventory.Product{}, err
	}
	return inventory.Product{
		ID:        inventory.ProductID(r.ID),
		Name:      r.Name,
		Category:  r.Category,
		Brand:     r.Brand,
		CreatedAt: createdAt,
	}, nil
}

type supplierRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	ContactPerson string `db:"contact_person"`
	Phone         string `db:"phone"`
	Email         string `db:"email"`
	GSTNumber     string `db:"gst_number"`
	City          string `db:"city"`
	CreatedAt     string `db:"created_at"`
}

func (r supplierRow) toDomain() (inventory.Supplier, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return inventory.Supplier{}, err
	}
	return inventory.Supplier{
		ID:            inventory.SupplierID(r.ID),
		Name:          r.Name,
		ContactPerson: r.ContactPerson,
		Phone:         r.Phone,
		Email:         r.Email,
		GSTNumber:     r.GSTNumber,
		City:          r.City,
		CreatedAt:     createdAt,
	}, nil
}

type retailerRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Channel       string `db:"channel"`
	ContactPerson string `db:"contact_person"`
	Phone         string `db:"phone"`
	Email         string `db:"email"`
	GSTNumber     string `db:"gst_number"`
	CreatedAt     string `db:"created_at"`
}

func (r retailerRow) toDomain() (inventory.Retailer, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return inventory.Retailer{}, err
	}
	return inventory.Retailer{
		ID:            inventory.RetailerID(r.ID),
		Name:          r.Name,
		Channel:       r.Channel,
		ContactPerson: r.ContactPerson,
		Phone:         r.Phone,
		Email:         r.Email,
		GSTNumber:     r.GSTNumber,
		CreatedAt:     createdAt,
	}, nil
}

// --- Store methods (locking) ---

func (s *Store) InsertProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.insertProduct(ctx, p)
}

func (s *Store) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listProducts(ctx)
}

// DeleteProduct removes the product with its batches, sales and allocations.
func (s *Store) DeleteProduct(ctx context.Context, id inventory.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q queries) error { return q.deleteProduct(ctx, id) })
}

func (s *Store) InsertSupplier(ctx context.Context, sp inventory.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.insertSupplier(ctx, sp)
}

func (s *Store) GetSupplier(ctx context.Context, id inventory.SupplierID) (*inventory.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getSupplier(ctx, id)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]inventory.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listSuppliers(ctx)
}

// DeleteSupplier removes the supplier and clears batch links to it.
func (s *Store) DeleteSupplier(ctx context.Context, id inventory.SupplierID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q queries) error { return q.deleteSupplier(ctx, id) })
}

func (s *Store) InsertRetailer(ctx context.Context, r inventory.Retailer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.insertRetailer(ctx, r)
}

func (s *Store) GetRetailer(ctx context.Context, id inventory.RetailerID) (*inventory.Retailer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getRetailer(ctx, id)
}

func (s *Store) ListRetailers(ctx context.Context) ([]inventory.Retailer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listRetailers(ctx)
}

// DeleteRetailer removes the retailer and clears sale links to it.
func (s *Store) DeleteRetailer(ctx context.Context, id inventory.RetailerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q queries) error { return q.deleteRetailer(ctx, id) })
}

// --- queries ---

func (q queries) insertProduct(ctx context.Context, p inventory.Product) error {
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO products (id, name, category, brand, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Category, p.Brand, formatTimestamp(p.CreatedAt),
	)
	if err != nil {
		if uniqueViolationOn(err, "products.name") {
			return &inventory.ConflictError{Entity: "product", Field: "name", Value: p.Name}
		}
		if isUniqueConstraintError(err) {
			return &inventory.ConflictError{Entity: "product", Field: "id", Value: string(p.ID)}
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (q queries) getProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q.ext, &row, `SELECT * FROM products WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q queries) listProducts(ctx context.Context) ([]inventory.Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, `SELECT * FROM products ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	out := make([]inventory.Product, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// deleteProduct cascades in dependency order: allocations, sales, batches,
// then the product itself.
func (q queries) deleteProduct(ctx context.Context, id inventory.ProductID) error {
	statements := []struct {
		what  string
		query string
		args  []any
	}{
		{"allocations", `
			DELETE FROM sale_allocations
			WHERE sale_id IN (SELECT id FROM sales WHERE product_id = ?)
			   OR batch_id IN (SELECT id FROM inventory_batches WHERE product_id = ?)`, []any{id, id}},
		{"sales", `DELETE FROM sales WHERE product_id = ?`, []any{id}},
		{"batches", `DELETE FROM inventory_batches WHERE product_id = ?`, []any{id}},
	}
	for _, stmt := range statements {
		if _, err := q.ext.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to delete product %s: %w", stmt.what, err)
		}
	}

	res, err := q.ext.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(res, "product", string(id))
}

func (q queries) insertSupplier(ctx context.Context, sp inventory.Supplier) error {
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact_person, phone, email, gst_number, city, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.Name, sp.ContactPerson, sp.Phone, sp.Email, sp.GSTNumber, sp.City,
		formatTimestamp(sp.CreatedAt),
	)
	if err != nil {
		if uniqueViolationOn(err, "suppliers.name") {
			return &inventory.ConflictError{Entity: "supplier", Field: "name", Value: sp.Name}
		}
		if isUniqueConstraintError(err) {
			return &inventory.ConflictError{Entity: "supplier", Field: "id", Value: string(sp.ID)}
		}
		return fmt.Errorf("failed to insert supplier: %w", err)
	}
	return nil
}

func (q queries) getSupplier(ctx context.Context, id inventory.SupplierID) (*inventory.Supplier, error) {
	var row supplierRow
	err := sqlx.GetContext(ctx, q.ext, &row, `SELECT * FROM suppliers WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	sp, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (q queries) listSuppliers(ctx context.Context) ([]inventory.Supplier, error) {
	var rows []supplierRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, `SELECT * FROM suppliers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	out := make([]inventory.Supplier, 0, len(rows))
	for _, r := range rows {
		sp, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// deleteSupplier nulls supplier_id on batches; supplier_name stays.
func (q queries) deleteSupplier(ctx context.Context, id inventory.SupplierID) error {
	if _, err := q.ext.ExecContext(ctx,
		`UPDATE inventory_batches SET supplier_id = NULL WHERE supplier_id = ?`, id); err != nil {
		return fmt.Errorf("failed to unlink supplier batches: %w", err)
	}
	res, err := q.ext.ExecContext(ctx, `DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete supplier: %w", err)
	}
	return requireAffected(res, "supplier", string(id))
}

func (q queries) insertRetailer(ctx context.Context, r inventory.Retailer) error {
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO retailers (id, name, channel, contact_person, phone, email, gst_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Channel, r.ContactPerson, r.Phone, r.Email, r.GSTNumber,
		formatTimestamp(r.CreatedAt),
	)
	if err != nil {
		if uniqueViolationOn(err, "retailers.name") {
			return &inventory.ConflictError{Entity: "retailer", Field: "name", Value: r.Name}
		}
		if isUniqueConstraintError(err) {
			return &inventory.ConflictError{Entity: "retailer", Field: "id", Value: string(r.ID)}
		}
		return fmt.Errorf("failed to insert retailer: %w", err)
	}
	return nil
}

func (q queries) getRetailer(ctx context.Context, id inventory.RetailerID) (*inventory.Retailer, error) {
	var row retailerRow
	err := sqlx.GetContext(ctx, q.ext, &row, `SELECT * FROM retailers WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get retailer: %w", err)
	}
	r, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q queries) listRetailers(ctx context.Context) ([]inventory.Retailer, error) {
	var rows []retailerRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, `SELECT * FROM retailers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}
	out := make([]inventory.Retailer, 0, len(rows))
	for _, row := range rows {
		r, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// deleteRetailer nulls retailer_id on sales; customer_name stays.
func (q queries) deleteRetailer(ctx context.Context, id inventory.RetailerID) error {
	if _, err := q.ext.ExecContext(ctx,
		`UPDATE sales SET retailer_id = NULL WHERE retailer_id = ?`, id); err != nil {
		return fmt.Errorf("failed to unlink retailer sales: %w", err)
	}
	res, err := q.ext.ExecContext(ctx, `DELETE FROM retailers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete retailer: %w", err)
	}
	return requireAffected(res, "retailer", string(id))
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &inventory.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
