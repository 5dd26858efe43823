// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/stock-engine/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements inventory.TxStore in memory. Every call takes the
// mutex; WithTx holds it for the whole unit of work.
type Memory struct {
	mu   sync.RWMutex
	data *memoryData
}

var _ inventory.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: newMemoryData()}
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newMemoryData()
	return nil
}

func (m *Memory) Close() error { return nil }

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&txMemoryView{data: m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// read and write run fn against the live data under the matching lock.
func (m *Memory) read(fn func(d *memoryData)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.data)
}

func (m *Memory) write(fn func(d *memoryData) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *Memory) InsertProduct(_ context.Context, p inventory.Product) error {
	return m.write(func(d *memoryData) error { return d.insertProduct(p) })
}

func (m *Memory) GetProduct(_ context.Context, id inventory.ProductID) (p *inventory.Product, err error) {
	m.read(func(d *memoryData) { p = d.getProduct(id) })
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context) (out []inventory.Product, err error) {
	m.read(func(d *memoryData) { out = d.listProducts() })
	return out, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id inventory.ProductID) error {
	return m.write(func(d *memoryData) error { return d.deleteProduct(id) })
}

func (m *Memory) InsertSupplier(_ context.Context, s inventory.Supplier) error {
	return m.write(func(d *memoryData) error { return d.insertSupplier(s) })
}

func (m *Memory) GetSupplier(_ context.Context, id inventory.SupplierID) (s *inventory.Supplier, err error) {
	m.read(func(d *memoryData) { s = d.getSupplier(id) })
	return s, nil
}

func (m *Memory) ListSuppliers(_ context.Context) (out []inventory.Supplier, err error) {
	m.read(func(d *memoryData) { out = d.listSuppliers() })
	return out, nil
}

func (m *Memory) DeleteSupplier(_ context.Context, id inventory.SupplierID) error {
	return m.write(func(d *memoryData) error { return d.deleteSupplier(id) })
}

func (m *Memory) InsertRetailer(_ context.Context, r inventory.Retailer) error {
	return m.write(func(d *memoryData) error { return d.insertRetailer(r) })
}

func (m *Memory) GetRetailer(_ context.Context, id inventory.RetailerID) (r *inventory.Retailer, err error) {
	m.read(func(d *memoryData) { r = d.getRetailer(id) })
	return r, nil
}

func (m *Memory) ListRetailers(_ context.Context) (out []inventory.Retailer, err error) {
	m.read(func(d *memoryData) { out = d.listRetailers() })
	return out, nil
}

func (m *Memory) DeleteRetailer(_ context.Context, id inventory.RetailerID) error {
	return m.write(func(d *memoryData) error { return d.deleteRetailer(id) })
}

func (m *Memory) InsertBatch(_ context.Context, b inventory.Batch) error {
	return m.write(func(d *memoryData) error { return d.insertBatch(b) })
}

func (m *Memory) BatchCodeExists(_ context.Context, productID inventory.ProductID, code string) (ok bool, err error) {
	m.read(func(d *memoryData) { ok = d.batchCodeExists(productID, code) })
	return ok, nil
}

func (m *Memory) EligibleBatches(_ context.Context, productID inventory.ProductID) (out []inventory.Batch, err error) {
	m.read(func(d *memoryData) { out = d.eligibleBatches(productID) })
	return out, nil
}

func (m *Memory) ListBatches(_ context.Context) (out []inventory.Batch, err error) {
	m.read(func(d *memoryData) { out = d.listBatches() })
	return out, nil
}

func (m *Memory) ExpiringBatches(_ context.Context, deadline time.Time) (out []inventory.Batch, err error) {
	m.read(func(d *memoryData) { out = d.expiringBatches(deadline) })
	return out, nil
}

func (m *Memory) DecrementBatch(_ context.Context, id inventory.BatchID, amount int64) error {
	return m.write(func(d *memoryData) error { return d.decrementBatch(id, amount) })
}

func (m *Memory) InvoiceExists(_ context.Context, invoiceNumber string) (ok bool, err error) {
	m.read(func(d *memoryData) { ok = d.invoiceExists(invoiceNumber) })
	return ok, nil
}

func (m *Memory) InsertSale(_ context.Context, s inventory.Sale) error {
	return m.write(func(d *memoryData) error { return d.insertSale(s) })
}

func (m *Memory) GetSale(_ context.Context, id inventory.SaleID) (s *inventory.Sale, err error) {
	m.read(func(d *memoryData) { s = d.getSale(id) })
	return s, nil
}

func (m *Memory) ListSales(_ context.Context) (out []inventory.Sale, err error) {
	m.read(func(d *memoryData) { out = d.listSales() })
	return out, nil
}

// =============================================================================
// TRANSACTIONAL VIEW - used inside WithTx, the parent already holds the lock
// =============================================================================

type txMemoryView struct {
	data *memoryData
}

func (tv *txMemoryView) InsertProduct(_ context.Context, p inventory.Product) error {
	return tv.data.insertProduct(p)
}

func (tv *txMemoryView) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	return tv.data.getProduct(id), nil
}

func (tv *txMemoryView) ListProducts(_ context.Context) ([]inventory.Product, error) {
	return tv.data.listProducts(), nil
}

func (tv *txMemoryView) DeleteProduct(_ context.Context, id inventory.ProductID) error {
	return tv.data.deleteProduct(id)
}

func (tv *txMemoryView) InsertSupplier(_ context.Context, s inventory.Supplier) error {
	return tv.data.insertSupplier(s)
}

func (tv *txMemoryView) GetSupplier(_ context.Context, id inventory.SupplierID) (*inventory.Supplier, error) {
	return tv.data.getSupplier(id), nil
}

func (tv *txMemoryView) ListSuppliers(_ context.Context) ([]inventory.Supplier, error) {
	return tv.data.listSuppliers(), nil
}

func (tv *txMemoryView) DeleteSupplier(_ context.Context, id inventory.SupplierID) error {
	return tv.data.deleteSupplier(id)
}

func (tv *txMemoryView) InsertRetailer(_ context.Context, r inventory.Retailer) error {
	return tv.data.insertRetailer(r)
}

func (tv *txMemoryView) GetRetailer(_ context.Context, id inventory.RetailerID) (*inventory.Retailer, error) {
	return tv.data.getRetailer(id), nil
}

func (tv *txMemoryView) ListRetailers(_ context.Context) ([]inventory.Retailer, error) {
	return tv.data.listRetailers(), nil
}

func (tv *txMemoryView) DeleteRetailer(_ context.Context, id inventory.RetailerID) error {
	return tv.data.deleteRetailer(id)
}

func (tv *txMemoryView) InsertBatch(_ context.Context, b inventory.Batch) error {
	return tv.data.insertBatch(b)
}

func (tv *txMemoryView) BatchCodeExists(_ context.Context, productID inventory.ProductID, code string) (bool, error) {
	return tv.data.batchCodeExists(productID, code), nil
}

func (tv *txMemoryView) EligibleBatches(_ context.Context, productID inventory.ProductID) ([]inventory.Batch, error) {
	return tv.data.eligibleBatches(productID), nil
}

func (tv *txMemoryView) ListBatches(_ context.Context) ([]inventory.Batch, error) {
	return tv.data.listBatches(), nil
}

func (tv *txMemoryView) ExpiringBatches(_ context.Context, deadline time.Time) ([]inventory.Batch, error) {
	return tv.data.expiringBatches(deadline), nil
}

func (tv *txMemoryView) DecrementBatch(_ context.Context, id inventory.BatchID, amount int64) error {
	return tv.data.decrementBatch(id, amount)
}

func (tv *txMemoryView) InvoiceExists(_ context.Context, invoiceNumber string) (bool, error) {
	return tv.data.invoiceExists(invoiceNumber), nil
}

func (tv *txMemoryView) InsertSale(_ context.Context, s inventory.Sale) error {
	return tv.data.insertSale(s)
}

func (tv *txMemoryView) GetSale(_ context.Context, id inventory.SaleID) (*inventory.Sale, error) {
	return tv.data.getSale(id), nil
}

func (tv *txMemoryView) ListSales(_ context.Context) ([]inventory.Sale, error) {
	return tv.data.listSales(), nil
}

// =============================================================================
// DATA - unlocked state shared by Memory and txMemoryView
// =============================================================================

type memoryData struct {
	products  map[inventory.ProductID]inventory.Product
	suppliers map[inventory.SupplierID]inventory.Supplier
	retailers map[inventory.RetailerID]inventory.Retailer
	batches   map[inventory.BatchID]inventory.Batch
	sales     []inventory.Sale // insertion order
}

func newMemoryData() *memoryData {
	return &memoryData{
		products:  make(map[inventory.ProductID]inventory.Product),
		suppliers: make(map[inventory.SupplierID]inventory.Supplier),
		retailers: make(map[inventory.RetailerID]inventory.Retailer),
		batches:   make(map[inventory.BatchID]inventory.Batch),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range d.retailers {
		c.retailers[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	c.sales = make([]inventory.Sale, len(d.sales))
	for i, s := range d.sales {
		c.sales[i] = copySale(s)
	}
	return c
}

func copySale(s inventory.Sale) inventory.Sale {
	s.Allocations = append([]inventory.Allocation(nil), s.Allocations...)
	if s.RetailerID != nil {
		id := *s.RetailerID
		s.RetailerID = &id
	}
	s.Retailer = nil
	return s
}

func copyBatch(b inventory.Batch) inventory.Batch {
	if b.SupplierID != nil {
		id := *b.SupplierID
		b.SupplierID = &id
	}
	return b
}

// --- products ---

func (d *memoryData) insertProduct(p inventory.Product) error {
	if _, ok := d.products[p.ID]; ok {
		return &inventory.ConflictError{Entity: "product", Field: "id", Value: string(p.ID)}
	}
	for _, existing := range d.products {
		if existing.Name == p.Name {
			return &inventory.ConflictError{Entity: "product", Field: "name", Value: p.Name}
		}
	}
	d.products[p.ID] = p
	return nil
}

func (d *memoryData) getProduct(id inventory.ProductID) *inventory.Product {
	p, ok := d.products[id]
	if !ok {
		return nil
	}
	return &p
}

func (d *memoryData) listProducts() []inventory.Product {
	out := make([]inventory.Product, 0, len(d.products))
	for _, p := range d.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// deleteProduct cascades to the product's sales, allocations and batches.
func (d *memoryData) deleteProduct(id inventory.ProductID) error {
	if _, ok := d.products[id]; !ok {
		return &inventory.NotFoundError{Entity: "product", ID: string(id)}
	}
	kept := d.sales[:0]
	for _, s := range d.sales {
		if s.ProductID != id {
			kept = append(kept, s)
		}
	}
	d.sales = kept
	for bid, b := range d.batches {
		if b.ProductID == id {
			delete(d.batches, bid)
		}
	}
	delete(d.products, id)
	return nil
}

// --- suppliers ---

func (d *memoryData) insertSupplier(s inventory.Supplier) error {
	if _, ok := d.suppliers[s.ID]; ok {
		return &inventory.ConflictError{Entity: "supplier", Field: "id", Value: string(s.ID)}
	}
	for _, existing := range d.suppliers {
		if existing.Name == s.Name {
			return &inventory.ConflictError{Entity: "supplier", Field: "name", Value: s.Name}
		}
	}
	d.suppliers[s.ID] = s
	return nil
}

func (d *memoryData) getSupplier(id inventory.SupplierID) *inventory.Supplier {
	s, ok := d.suppliers[id]
	if !ok {
		return nil
	}
	return &s
}

func (d *memoryData) listSuppliers() []inventory.Supplier {
	out := make([]inventory.Supplier, 0, len(d.suppliers))
	for _, s := range d.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// deleteSupplier nulls the supplier link on its batches.
func (d *memoryData) deleteSupplier(id inventory.SupplierID) error {
	if _, ok := d.suppliers[id]; !ok {
		return &inventory.NotFoundError{Entity: "supplier", ID: string(id)}
	}
	for bid, b := range d.batches {
		if b.SupplierID != nil && *b.SupplierID == id {
			b.SupplierID = nil
			d.batches[bid] = b
		}
	}
	delete(d.suppliers, id)
	return nil
}

// --- retailers ---

func (d *memoryData) insertRetailer(r inventory.Retailer) error {
	if _, ok := d.retailers[r.ID]; ok {
		return &inventory.ConflictError{Entity: "retailer", Field: "id", Value: string(r.ID)}
	}
	for _, existing := range d.retailers {
		if existing.Name == r.Name {
			return &inventory.ConflictError{Entity: "retailer", Field: "name", Value: r.Name}
		}
	}
	d.retailers[r.ID] = r
	return nil
}

func (d *memoryData) getRetailer(id inventory.RetailerID) *inventory.Retailer {
	r, ok := d.retailers[id]
	if !ok {
		return nil
	}
	return &r
}

func (d *memoryData) listRetailers() []inventory.Retailer {
	out := make([]inventory.Retailer, 0, len(d.retailers))
	for _, r := range d.retailers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// deleteRetailer nulls the retailer link on its sales.
func (d *memoryData) deleteRetailer(id inventory.RetailerID) error {
	if _, ok := d.retailers[id]; !ok {
		return &inventory.NotFoundError{Entity: "retailer", ID: string(id)}
	}
	for i := range d.sales {
		if d.sales[i].RetailerID != nil && *d.sales[i].RetailerID == id {
			d.sales[i].RetailerID = nil
		}
	}
	delete(d.retailers, id)
	return nil
}

// --- batches ---

func (d *memoryData) insertBatch(b inventory.Batch) error {
	if _, ok := d.products[b.ProductID]; !ok {
		return &inventory.NotFoundError{Entity: "product", ID: string(b.ProductID)}
	}
	if _, ok := d.batches[b.ID]; ok {
		return &inventory.ConflictError{Entity: "batch", Field: "id", Value: string(b.ID)}
	}
	if d.batchCodeExists(b.ProductID, b.BatchCode) {
		return &inventory.ConflictError{Entity: "batch", Field: "batch_code", Value: b.BatchCode}
	}
	if err := b.CheckInvariant(); err != nil {
		return err
	}
	d.batches[b.ID] = copyBatch(b)
	return nil
}

func (d *memoryData) batchCodeExists(productID inventory.ProductID, code string) bool {
	for _, b := range d.batches {
		if b.ProductID == productID && b.BatchCode == code {
			return true
		}
	}
	return false
}

func (d *memoryData) eligibleBatches(productID inventory.ProductID) []inventory.Batch {
	var out []inventory.Batch
	for _, b := range d.batches {
		if b.ProductID == productID && b.Eligible() {
			out = append(out, copyBatch(b))
		}
	}
	inventory.SortFIFO(out)
	return out
}

func (d *memoryData) listBatches() []inventory.Batch {
	out := make([]inventory.Batch, 0, len(d.batches))
	for _, b := range d.batches {
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		if out[i].BatchCode != out[j].BatchCode {
			return out[i].BatchCode < out[j].BatchCode
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *memoryData) expiringBatches(deadline time.Time) []inventory.Batch {
	var out []inventory.Batch
	for _, b := range d.batches {
		if b.Eligible() && !b.ExpiryDate.After(deadline) {
			out = append(out, copyBatch(b))
		}
	}
	inventory.SortFIFO(out)
	return out
}

func (d *memoryData) decrementBatch(id inventory.BatchID, amount int64) error {
	b, ok := d.batches[id]
	if !ok {
		return &inventory.NotFoundError{Entity: "batch", ID: string(id)}
	}
	if err := b.Decrement(amount); err != nil {
		return err
	}
	d.batches[id] = b
	return nil
}

// --- sales ---

func (d *memoryData) invoiceExists(invoiceNumber string) bool {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return false
	}
	for _, s := range d.sales {
		if s.InvoiceNumber == invoiceNumber {
			return true
		}
	}
	return false
}

func (d *memoryData) insertSale(s inventory.Sale) error {
	if _, ok := d.products[s.ProductID]; !ok {
		return &inventory.NotFoundError{Entity: "product", ID: string(s.ProductID)}
	}
	if d.invoiceExists(s.InvoiceNumber) {
		return &inventory.ConflictError{Entity: "sale", Field: "invoice_number", Value: s.InvoiceNumber}
	}
	for _, existing := range d.sales {
		if existing.ID == s.ID {
			return &inventory.ConflictError{Entity: "sale", Field: "id", Value: string(s.ID)}
		}
	}
	for _, a := range s.Allocations {
		if _, ok := d.batches[a.BatchID]; !ok {
			return &inventory.NotFoundError{Entity: "batch", ID: string(a.BatchID)}
		}
		if a.Quantity <= 0 {
			return &inventory.InvariantError{BatchID: a.BatchID, Detail: "allocation quantity must be positive"}
		}
	}
	d.sales = append(d.sales, copySale(s))
	return nil
}

func (d *memoryData) withRetailer(s inventory.Sale) inventory.Sale {
	out := copySale(s)
	if out.RetailerID != nil {
		out.Retailer = d.getRetailer(*out.RetailerID)
	}
	return out
}

func (d *memoryData) getSale(id inventory.SaleID) *inventory.Sale {
	for _, s := range d.sales {
		if s.ID == id {
			out := d.withRetailer(s)
			return &out
		}
	}
	return nil
}

// listSales returns newest first; equal timestamps keep reverse insertion order.
func (d *memoryData) listSales() []inventory.Sale {
	out := make([]inventory.Sale, 0, len(d.sales))
	for i := len(d.sales) - 1; i >= 0; i-- {
		out = append(out, d.withRetailer(d.sales[i]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SoldAt.After(out[j].SoldAt) })
	return out
}
