/*
catalog.go - Products, suppliers and retailers

PURPOSE:
  Catalog maintenance on top of CatalogStore. Names are trimmed and must be
  non-blank; uniqueness is enforced by the store.

DELETES:
  - DeleteProduct cascades to batches, sales and allocations
  - DeleteSupplier / DeleteRetailer keep the name snapshots on batches and
    sales, only the link is cleared

SEE ALSO:
  - store.go: delete rules each store implements
*/
package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductInput carries the fields of a new product.
type ProductInput struct {
	Name     string
	Category string
	Brand    string
}

// SupplierInput carries the fields of a new supplier.
type SupplierInput struct {
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	GSTNumber     string
	City          string
}

// RetailerInput carries the fields of a new retailer.
type RetailerInput struct {
	Name          string
	Channel       string
	ContactPerson string
	Phone         string
	Email         string
	GSTNumber     string
}

// Catalog manages products, suppliers and retailers.
type Catalog struct {
	Store  TxStore
	Now    Clock
	Logger *zap.Logger
}

func NewCatalog(store TxStore, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{Store: store, Now: systemClock, Logger: logger}
}

func requireName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &ValidationError{Field: field, Message: "must not be blank"}
	}
	return value, nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (c *Catalog) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	p := Product{
		ID:        ProductID(uuid.NewString()),
		Name:      name,
		Category:  strings.TrimSpace(in.Category),
		Brand:     strings.TrimSpace(in.Brand),
		CreatedAt: c.Now(),
	}
	if err := c.Store.InsertProduct(ctx, p); err != nil {
		return nil, err
	}
	c.Logger.Info("product created", zap.String("product_id", string(p.ID)), zap.String("name", p.Name))
	return &p, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id ProductID) (*Product, error) {
	p, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "product", ID: string(id)}
	}
	return p, nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]Product, error) {
	return c.Store.ListProducts(ctx)
}

// DeleteProduct removes the product with its batches and sales.
func (c *Catalog) DeleteProduct(ctx context.Context, id ProductID) error {
	err := c.Store.WithTx(ctx, func(s Store) error {
		return s.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}
	c.Logger.Info("product deleted", zap.String("product_id", string(id)))
	return nil
}

// =============================================================================
// SUPPLIERS
// =============================================================================

func (c *Catalog) CreateSupplier(ctx context.Context, in SupplierInput) (*Supplier, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	s := Supplier{
		ID:            SupplierID(uuid.NewString()),
		Name:          name,
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.TrimSpace(in.Email),
		GSTNumber:     strings.TrimSpace(in.GSTNumber),
		City:          strings.TrimSpace(in.City),
		CreatedAt:     c.Now(),
	}
	if err := c.Store.InsertSupplier(ctx, s); err != nil {
		return nil, err
	}
	c.Logger.Info("supplier created", zap.String("supplier_id", string(s.ID)), zap.String("name", s.Name))
	return &s, nil
}

func (c *Catalog) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return c.Store.ListSuppliers(ctx)
}

// DeleteSupplier removes the supplier; batches keep their supplier name.
func (c *Catalog) DeleteSupplier(ctx context.Context, id SupplierID) error {
	err := c.Store.WithTx(ctx, func(s Store) error {
		return s.DeleteSupplier(ctx, id)
	})
	if err != nil {
		return err
	}
	c.Logger.Info("supplier deleted", zap.String("supplier_id", string(id)))
	return nil
}

// =============================================================================
// RETAILERS
// =============================================================================

func (c *Catalog) CreateRetailer(ctx context.Context, in RetailerInput) (*Retailer, error) {
	name, err := requireName("name", in.Name)
	if err != nil {
		return nil, err
	}
	r := Retailer{
		ID:            RetailerID(uuid.NewString()),
		Name:          name,
		Channel:       strings.TrimSpace(in.Channel),
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.TrimSpace(in.Email),
		GSTNumber:     strings.TrimSpace(in.GSTNumber),
		CreatedAt:     c.Now(),
	}
	if err := c.Store.InsertRetailer(ctx, r); err != nil {
		return nil, err
	}
	c.Logger.Info("retailer created", zap.String("retailer_id", string(r.ID)), zap.String("name", r.Name))
	return &r, nil
}

func (c *Catalog) ListRetailers(ctx context.Context) ([]Retailer, error) {
	return c.Store.ListRetailers(ctx)
}

// DeleteRetailer removes the retailer; sales keep their customer name.
func (c *Catalog) DeleteRetailer(ctx context.Context, id RetailerID) error {
	err := c.Store.WithTx(ctx, func(s Store) error {
		return s.DeleteRetailer(ctx, id)
	})
	if err != nil {
		return err
	}
	c.Logger.Info("retailer deleted", zap.String("retailer_id", string(id)))
	return nil
}
