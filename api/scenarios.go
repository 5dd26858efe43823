/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario goes through the same catalog,
	ledger and allocator services as the API, so the loaded data obeys every
	stock rule.

AVAILABLE SCENARIOS:

	fifo-split:        One sale drawn across two batches, earliest expiry first
	supplier-snapshot: Batch keeps its supplier name after the supplier is deleted
	monthly-profit:    Single sale with known revenue, cost of goods and profit
	sweet-shop:        Full shop with several products, retailers and months of sales

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create products, suppliers and retailers
 3. Record purchases (batches)
 4. Record sales (FIFO allocation)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "fifo-split"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: (h *Handler) loadXxxScenario(ctx)
 3. Register it in scenarioLoaders

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and services
  - inventory/allocator.go: FIFO allocation
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fifo-split",
		Name:        "FIFO Split",
		Description: "Sale of 70 drawn as 50 from the earliest-expiring batch and 20 from the next",
	},
	{
		ID:          "supplier-snapshot",
		Name:        "Supplier Snapshot",
		Description: "Supplier deleted after a purchase; the batch keeps the supplier name",
	},
	{
		ID:          "monthly-profit",
		Name:        "Monthly Profit",
		Description: "10 units sold at 150 from a batch costing 100: revenue 1500, profit 500",
	},
	{
		ID:          "sweet-shop",
		Name:        "Sweet Shop",
		Description: "Several products, suppliers and retailers with sales over three months",
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"fifo-split":        h.loadFIFOSplitScenario,
		"supplier-snapshot": h.loadSupplierSnapshotScenario,
		"monthly-profit":    h.loadMonthlyProfitScenario,
		"sweet-shop":        h.loadSweetShopScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		h.Logger.Error("scenario load failed", zap.String("scenario", req.ScenarioID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFIFOSplitScenario(ctx context.Context) error {
	today := inventory.DateOf(h.Batches.Now())

	product, err := h.Catalog.CreateProduct(ctx, inventory.ProductInput{Name: "Kaju Katli", Category: "Sweets", Brand: "House"})
	if err != nil {
		return err
	}

	// Purchased out of expiry order: FIFO must still draw A1 first.
	if _, err := h.Batches.RecordPurchase(ctx, inventory.PurchaseRequest{
		ProductID:   product.ID,
		BatchCode:   "B1",
		Quantity:    80,
		UnitCost:    decimal.NewFromInt(110),
		ExpiryDate:  today.AddDate(0, 0, 60),
		PurchasedAt: today.Add(-48 * time.Hour),
	}); err != nil {
		return err
	}
	if _, err := h.Batches.RecordPurchase(ctx, inventory.PurchaseRequest{
		ProductID:   product.ID,
		BatchCode:   "A1",
		Quantity:    50,
		UnitCost:    decimal.NewFromInt(120),
		ExpiryDate:  today.AddDate(0, 0, 30),
		PurchasedAt: today.Add(-24 * time.Hour),
	}); err != nil {
		return err
	}

	_, err = h.Allocator.AllocateSale(ctx, inventory.SaleRequest{
		ProductID:     product.ID,
		Quantity:      70,
		SellingPrice:  decimal.NewFromInt(150),
		CustomerName:  "Walk-in",
		InvoiceNumber: "INV-0001",
	})
	return err
}

func (h *Handler) loadSupplierSnapshotScenario(ctx context.Context) error {
	today := inventory.DateOf(h.Batches.Now())

	product, err := h.Catalog.CreateProduct(ctx, inventory.ProductInput{Name: "Rasgulla", Category: "Sweets"})
	if err != nil {
		return err
	}
	supplier, err := h.Catalog.CreateSupplier(ctx, inventory.SupplierInput{Name: "Ganesh Dairy", City: "Pune"})
	if err != nil {
		return err
	}

	if _, err := h.Batches.RecordPurchase(ctx, inventory.PurchaseRequest{
		ProductID:  product.ID,
		BatchCode:  "RG-01",
		Quantity:   40,
		UnitCost:   decimal.NewFromInt(25),
		UnitSize:   inventory.UnitSize{Value: decimal.NewFromInt(500), Unit: inventory.UnitGram},
		ExpiryDate: today.AddDate(0, 0, 5),
		SupplierID: &supplier.ID,
	}); err != nil {
		return err
	}

	return h.Catalog.DeleteSupplier(ctx, supplier.ID)
}

func (h *Handler) loadMonthlyProfitScenario(ctx context.Context) error {
	today := inventory.DateOf(h.Batches.Now())

	product, err := h.Catalog.CreateProduct(ctx, inventory.ProductInput{Name: "Soan Papdi", Category: "Sweets"})
	if err != nil {
		return err
	}
	retailer, err := h.Catalog.CreateRetailer(ctx, inventory.RetailerInput{Name: "Corner Store", Channel: "retail"})
	if err != nil {
		return err
	}

	if _, err := h.Batches.RecordPurchase(ctx, inventory.PurchaseRequest{
		ProductID:  product.ID,
		BatchCode:  "SP-01",
		Quantity:   100,
		UnitCost:   decimal.NewFromInt(100),
		ExpiryDate: today.AddDate(0, 2, 0),
	}); err != nil {
		return err
	}

	_, err = h.Allocator.AllocateSale(ctx, inventory.SaleRequest{
		ProductID:     product.ID,
		Quantity:      10,
		SellingPrice:  decimal.NewFromInt(150),
		RetailerID:    &retailer.ID,
		InvoiceNumber: "INV-0100",
	})
	return err
}

// sweetShopBatch is one purchase in the sweet-shop scenario.
type sweetShopBatch struct {
	product  string
	supplier string
	code     string
	quantity int64
	cost     string
	size     string
	unit     inventory.SizeUnit
	expiryIn int // days from today
}

// sweetShopSale is one sale in the sweet-shop scenario.
type sweetShopSale struct {
	product  string
	retailer string
	quantity int64
	price    string
	monthAgo int
	invoice  string
}

func (h *Handler) loadSweetShopScenario(ctx context.Context) error {
	today := inventory.DateOf(h.Batches.Now())

	products := make(map[string]inventory.ProductID)
	for _, in := range []inventory.ProductInput{
		{Name: "Kaju Katli", Category: "Sweets", Brand: "House"},
		{Name: "Gulab Jamun", Category: "Sweets", Brand: "House"},
		{Name: "Masala Mixture", Category: "Namkeen", Brand: "Crunch Co"},
		{Name: "Besan Ladoo", Category: "Sweets", Brand: "House"},
	} {
		p, err := h.Catalog.CreateProduct(ctx, in)
		if err != nil {
			return err
		}
		products[p.Name] = p.ID
	}

	suppliers := make(map[string]inventory.SupplierID)
	for _, in := range []inventory.SupplierInput{
		{Name: "Ganesh Dairy", ContactPerson: "R. Patil", City: "Pune"},
		{Name: "Shree Dry Fruits", ContactPerson: "M. Shah", City: "Mumbai"},
	} {
		s, err := h.Catalog.CreateSupplier(ctx, in)
		if err != nil {
			return err
		}
		suppliers[s.Name] = s.ID
	}

	retailers := make(map[string]inventory.RetailerID)
	for _, in := range []inventory.RetailerInput{
		{Name: "Corner Store", Channel: "retail"},
		{Name: "Festive Caterers", Channel: "wholesale"},
	} {
		rt, err := h.Catalog.CreateRetailer(ctx, in)
		if err != nil {
			return err
		}
		retailers[rt.Name] = rt.ID
	}

	batches := []sweetShopBatch{
		{"Kaju Katli", "Shree Dry Fruits", "KK-01", 60, "420", "250", inventory.UnitGram, 20},
		{"Kaju Katli", "Shree Dry Fruits", "KK-02", 80, "400", "250", inventory.UnitGram, 75},
		{"Gulab Jamun", "Ganesh Dairy", "GJ-01", 120, "90", "1", inventory.UnitKilogram, 4},
		{"Masala Mixture", "", "MM-01", 200, "55", "500", inventory.UnitGram, 120},
		{"Besan Ladoo", "Ganesh Dairy", "BL-01", 50, "180", "500", inventory.UnitGram, 6},
	}
	for _, b := range batches {
		req := inventory.PurchaseRequest{
			ProductID:   products[b.product],
			BatchCode:   b.code,
			Quantity:    b.quantity,
			UnitCost:    decimal.RequireFromString(b.cost),
			UnitSize:    inventory.UnitSize{Value: decimal.RequireFromString(b.size), Unit: b.unit},
			ExpiryDate:  today.AddDate(0, 0, b.expiryIn),
			PurchasedAt: today.AddDate(0, -3, 0),
		}
		if b.supplier != "" {
			id := suppliers[b.supplier]
			req.SupplierID = &id
		}
		if _, err := h.Batches.RecordPurchase(ctx, req); err != nil {
			return fmt.Errorf("purchase %s: %w", b.code, err)
		}
	}

	sales := []sweetShopSale{
		{"Kaju Katli", "Corner Store", 30, "560", 2, "INV-2001"},
		{"Gulab Jamun", "Festive Caterers", 70, "140", 2, "INV-2002"},
		{"Kaju Katli", "Festive Caterers", 45, "540", 1, "INV-2003"},
		{"Masala Mixture", "Corner Store", 25, "80", 1, "INV-2004"},
		{"Gulab Jamun", "Corner Store", 15, "150", 0, "INV-2005"},
		{"Kaju Katli", "", 10, "580", 0, ""},
	}
	for _, s := range sales {
		req := inventory.SaleRequest{
			ProductID:     products[s.product],
			Quantity:      s.quantity,
			SellingPrice:  decimal.RequireFromString(s.price),
			InvoiceNumber: s.invoice,
			SoldAt:        today.AddDate(0, -s.monthAgo, 0).Add(11 * time.Hour),
		}
		if s.retailer != "" {
			id := retailers[s.retailer]
			req.RetailerID = &id
		} else {
			req.CustomerName = "Walk-in"
		}
		if _, err := h.Allocator.AllocateSale(ctx, req); err != nil {
			return fmt.Errorf("sale of %s: %w", s.product, err)
		}
	}
	return nil
}
