/*
handlers.go - HTTP API handlers for the stock engine

PURPOSE:
  Exposes the inventory engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to the inventory and
  report packages.

ENDPOINTS:
  Catalog:
    GET    /api/products               List products (by name)
    POST   /api/products               Create product
    GET    /api/products/{id}          Get product
    DELETE /api/products/{id}          Delete product with its batches and sales
    GET    /api/suppliers              List suppliers
    POST   /api/suppliers              Create supplier
    DELETE /api/suppliers/{id}         Delete supplier (batches keep its name)
    GET    /api/retailers              List retailers
    POST   /api/retailers              Create retailer
    DELETE /api/retailers/{id}         Delete retailer (sales keep its name)

  Stock:
    GET    /api/purchases              List batches
    POST   /api/purchases              Record a purchase (new batch)
    GET    /api/stock                  Stock overview with totals
    GET    /api/stock/expiring?days=N  Expiry alerts

  Sales:
    GET    /api/sales                  List sales, newest first
    POST   /api/sales                  Record a sale (FIFO allocation)
    GET    /api/sales/{id}             Get sale with allocations

  Reports:
    GET    /api/reports/top-selling?limit=N
    GET    /api/reports/slow-moving?limit=N
    GET    /api/reports/monthly-profit
    GET    /api/reports/monthly-profit/export   XLSX workbook

REQUEST FLOW:
  1. Decode JSON body
  2. Validate shape (validator tags on the request DTO)
  3. Call the inventory/report service
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with:
  - 400: invalid input, insufficient stock
  - 404: unknown product/supplier/retailer/sale
  - 409: duplicate name, batch code or invoice number
  - 500: invariant violations (logged at error level) and storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
	"github.com/warp/stock-engine/report"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs: the inventory store plus Reset
// for demo scenarios.
type Store interface {
	inventory.TxStore
	Reset(ctx context.Context) error
}

// Options configures a Handler.
type Options struct {
	ExpiryAlertDays  int
	Currency         string
	SlowMovingWindow time.Duration
	Logger           *zap.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Catalog   *inventory.Catalog
	Batches   *inventory.BatchLedger
	Allocator *inventory.Allocator
	Sales     *inventory.SaleLedger
	Reports   *report.Projector

	ExpiryAlertDays int
	Logger          *zap.Logger

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services on top of store.
func NewHandler(store Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ExpiryAlertDays <= 0 {
		opts.ExpiryAlertDays = 7
	}
	return &Handler{
		Store:           store,
		Catalog:         inventory.NewCatalog(store, logger),
		Batches:         inventory.NewBatchLedger(store, logger),
		Allocator:       inventory.NewAllocator(store, logger),
		Sales:           inventory.NewSaleLedger(store),
		Reports:         report.NewProjector(store, opts.Currency, opts.SlowMovingWindow),
		ExpiryAlertDays: opts.ExpiryAlertDays,
		Logger:          logger,
		validate:        validator.New(),
	}
}

// SetClock points every service at the same clock.
func (h *Handler) SetClock(now inventory.Clock) {
	h.Catalog.Now = now
	h.Batches.Now = now
	h.Allocator.Now = now
	h.Reports.Now = now
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), inventory.ProductInput{
		Name:     req.Name,
		Category: req.Category,
		Brand:    req.Brand,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*p))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProduct(r.Context(), inventory.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteProduct(r.Context(), inventory.ProductID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, "Failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SUPPLIER HANDLERS
// =============================================================================

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.Catalog.ListSuppliers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list suppliers", err)
		return
	}
	dtos := make([]SupplierDTO, len(suppliers))
	for i, s := range suppliers {
		dtos[i] = toSupplierDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req CreateSupplierRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Catalog.CreateSupplier(r.Context(), inventory.SupplierInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		GSTNumber:     req.GSTNumber,
		City:          req.City,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create supplier", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSupplierDTO(*s))
}

func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteSupplier(r.Context(), inventory.SupplierID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, "Failed to delete supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RETAILER HANDLERS
// =============================================================================

func (h *Handler) ListRetailers(w http.ResponseWriter, r *http.Request) {
	retailers, err := h.Catalog.ListRetailers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list retailers", err)
		return
	}
	dtos := make([]RetailerDTO, len(retailers))
	for i, rt := range retailers {
		dtos[i] = toRetailerDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateRetailer(w http.ResponseWriter, r *http.Request) {
	var req CreateRetailerRequest
	if !h.decode(w, r, &req) {
		return
	}
	rt, err := h.Catalog.CreateRetailer(r.Context(), inventory.RetailerInput{
		Name:          req.Name,
		Channel:       req.Channel,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		GSTNumber:     req.GSTNumber,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create retailer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRetailerDTO(*rt))
}

func (h *Handler) DeleteRetailer(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteRetailer(r.Context(), inventory.RetailerID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, "Failed to delete retailer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PURCHASE + STOCK HANDLERS
// =============================================================================

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Batches.ListPurchases(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list purchases", err)
		return
	}
	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expiry_date", err)
		return
	}

	purchase := inventory.PurchaseRequest{
		ProductID:    inventory.ProductID(req.ProductID),
		BatchCode:    req.BatchCode,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		UnitSize:     unitSize(req.UnitSizeValue, req.UnitSizeUnit),
		ExpiryDate:   expiry,
		SupplierName: req.SupplierName,
	}
	if req.SupplierID != nil {
		id := inventory.SupplierID(*req.SupplierID)
		purchase.SupplierID = &id
	}

	batch, err := h.Batches.RecordPurchase(r.Context(), purchase)
	if err != nil {
		h.writeDomainError(w, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(*batch))
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Batches.StockOverview(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockOverviewDTO(overview))
}

func (h *Handler) GetExpiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", h.ExpiryAlertDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid days parameter", err)
		return
	}
	alerts, err := h.Batches.ExpiryAlerts(r.Context(), days)
	if err != nil {
		h.writeDomainError(w, "Failed to load expiry alerts", err)
		return
	}
	dtos := make([]ExpiryAlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = toExpiryAlertDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Sales.ListSales(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Sales.GetSale(r.Context(), inventory.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	saleReq := inventory.SaleRequest{
		ProductID:     inventory.ProductID(req.ProductID),
		Quantity:      req.Quantity,
		SellingPrice:  req.SellingPrice,
		UnitSize:      unitSize(req.UnitSizeValue, req.UnitSizeUnit),
		CustomerName:  req.CustomerName,
		InvoiceNumber: req.InvoiceNumber,
	}
	if req.RetailerID != nil {
		id := inventory.RetailerID(*req.RetailerID)
		saleReq.RetailerID = &id
	}
	if req.SaleDate != nil {
		saleReq.SoldAt = *req.SaleDate
	}

	sale, err := h.Allocator.AllocateSale(r.Context(), saleReq)
	if err != nil {
		h.writeDomainError(w, "Failed to record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(*sale))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) TopSelling(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", report.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}
	rows, err := h.Reports.TopSelling(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	dtos := make([]TopProductDTO, len(rows))
	for i, m := range rows {
		dtos[i] = TopProductDTO{
			ProductID:     string(m.ProductID),
			ProductName:   m.ProductName,
			TotalQuantity: m.QuantitySold,
			TotalRevenue:  m.Revenue,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SlowMoving(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", report.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}
	rows, err := h.Reports.SlowMoving(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	windowDays := int(h.Reports.SlowMovingWindow / (24 * time.Hour))
	dtos := make([]SlowProductDTO, len(rows))
	for i, m := range rows {
		dtos[i] = SlowProductDTO{
			ProductID:    string(m.ProductID),
			ProductName:  m.ProductName,
			QuantitySold: m.QuantitySold,
			WindowDays:   windowDays,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MonthlyProfit(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.MonthlyProfit(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfitReportDTO(rep))
}

// ExportMonthlyProfit streams the profit report and stock overview as XLSX.
func (h *Handler) ExportMonthlyProfit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, err := h.Reports.MonthlyProfit(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	stock, err := h.Batches.StockOverview(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to load stock", err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, rep, stock); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export report", err)
		return
	}
	filename := fmt.Sprintf("monthly-profit-%s.xlsx", h.Reports.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the 400 response itself
// and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Code: "invalid_input", Details: details})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps inventory errors to HTTP responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Insufficient stock",
			Code:  "insufficient_stock",
			Details: map[string]any{
				"product_id": string(stockErr.ProductID),
				"available":  stockErr.Available,
				"requested":  stockErr.Requested,
				"shortfall":  stockErr.Shortfall(),
			},
		})
	case errors.Is(err, inventory.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_input", Details: err.Error()})
	case errors.Is(err, inventory.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, inventory.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, inventory.ErrInvariantViolation):
		h.Logger.Error("inventory invariant violated", zap.String("operation", message), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Code: "invariant_violation", Details: err.Error()})
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return v, nil
}

// unitSize builds the domain pack size; missing parts take the defaults.
func unitSize(value *decimal.Decimal, unit string) inventory.UnitSize {
	if value == nil && unit == "" {
		return inventory.UnitSize{}
	}
	size := inventory.DefaultUnitSize
	if value != nil {
		size.Value = *value
	}
	if unit != "" {
		size.Unit = inventory.SizeUnit(unit)
	}
	return size
}
