/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, ranges, enums, date formats). Business rules that need
  the store (existence, uniqueness, stock) stay in the inventory package.

MONEY:
  Prices and costs are decimal.Decimal and serialize as JSON strings.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
	"github.com/warp/stock-engine/report"
)

// =============================================================================
// CATALOG
// =============================================================================

type CreateProductRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Category string `json:"category" validate:"max=80"`
	Brand    string `json:"brand" validate:"max=80"`
}

type ProductDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Brand     string    `json:"brand,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateSupplierRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	ContactPerson string `json:"contact_person" validate:"max=120"`
	Phone         string `json:"phone" validate:"max=40"`
	Email         string `json:"email" validate:"omitempty,email"`
	GSTNumber     string `json:"gst_number" validate:"max=20"`
	City          string `json:"city" validate:"max=80"`
}

type SupplierDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	GSTNumber     string    `json:"gst_number,omitempty"`
	City          string    `json:"city,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateRetailerRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Channel       string `json:"channel" validate:"max=40"`
	ContactPerson string `json:"contact_person" validate:"max=120"`
	Phone         string `json:"phone" validate:"max=40"`
	Email         string `json:"email" validate:"omitempty,email"`
	GSTNumber     string `json:"gst_number" validate:"max=20"`
}

type RetailerDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Channel       string    `json:"channel,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	GSTNumber     string    `json:"gst_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// =============================================================================
// PURCHASES + STOCK
// =============================================================================

// CreatePurchaseRequest records an incoming batch.
// UnitSizeValue defaults to 1 and UnitSizeUnit to "g".
type CreatePurchaseRequest struct {
	ProductID     string           `json:"product_id" validate:"required"`
	SupplierID    *string          `json:"supplier_id" validate:"omitempty,min=1"`
	SupplierName  string           `json:"supplier_name" validate:"max=120"`
	BatchCode     string           `json:"batch_code" validate:"required,max=40"`
	Quantity      int64            `json:"quantity" validate:"gt=0"`
	UnitCost      decimal.Decimal  `json:"unit_cost"`
	UnitSizeValue *decimal.Decimal `json:"unit_size_value"`
	UnitSizeUnit  string           `json:"unit_size_unit" validate:"omitempty,oneof=g kg"`
	ExpiryDate    string           `json:"expiry_date" validate:"required,datetime=2006-01-02"`
}

type BatchDTO struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	SupplierID        *string         `json:"supplier_id"`
	SupplierName      *string         `json:"supplier_name"`
	BatchCode         string          `json:"batch_code"`
	QuantityInitial   int64           `json:"quantity_initial"`
	QuantityRemaining int64           `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	UnitSizeValue     decimal.Decimal `json:"unit_size_value"`
	UnitSizeUnit      string          `json:"unit_size_unit"`
	ExpiryDate        string          `json:"expiry_date"`
	PurchasedAt       time.Time       `json:"purchased_at"`
}

type StockBatchDTO struct {
	BatchDTO
	ProductName string `json:"product_name"`
}

type StockOverviewDTO struct {
	TotalProducts int             `json:"total_products"`
	TotalBatches  int             `json:"total_batches"`
	TotalUnits    int64           `json:"total_units"`
	Batches       []StockBatchDTO `json:"batches"`
}

type ExpiryAlertDTO struct {
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	BatchID           string          `json:"batch_id"`
	BatchCode         string          `json:"batch_code"`
	ExpiresOn         string          `json:"expires_on"`
	DaysRemaining     int             `json:"days_remaining"`
	QuantityRemaining int64           `json:"quantity_remaining"`
	UnitSizeValue     decimal.Decimal `json:"unit_size_value"`
	UnitSizeUnit      string          `json:"unit_size_unit"`
}

// =============================================================================
// SALES
// =============================================================================

// CreateSaleRequest records a sale. SaleDate defaults to now.
type CreateSaleRequest struct {
	ProductID     string           `json:"product_id" validate:"required"`
	RetailerID    *string          `json:"retailer_id" validate:"omitempty,min=1"`
	CustomerName  string           `json:"customer_name" validate:"max=120"`
	InvoiceNumber string           `json:"invoice_number" validate:"max=40"`
	Quantity      int64            `json:"quantity" validate:"gt=0"`
	SellingPrice  decimal.Decimal  `json:"selling_price"`
	UnitSizeValue *decimal.Decimal `json:"unit_size_value"`
	UnitSizeUnit  string           `json:"unit_size_unit" validate:"omitempty,oneof=g kg"`
	SaleDate      *time.Time       `json:"sale_date"`
}

type AllocationDTO struct {
	BatchID  string          `json:"batch_id"`
	Quantity int64           `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type SaleDTO struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	RetailerID    *string         `json:"retailer_id"`
	Quantity      int64           `json:"quantity"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	SaleDate      time.Time       `json:"sale_date"`
	CustomerName  *string         `json:"customer_name"`
	InvoiceNumber *string         `json:"invoice_number"`
	UnitSizeValue decimal.Decimal `json:"unit_size_value"`
	UnitSizeUnit  string          `json:"unit_size_unit"`
	Revenue       decimal.Decimal `json:"revenue"`
	CostOfGoods   decimal.Decimal `json:"cogs"`
	Allocations   []AllocationDTO `json:"allocations"`
	Retailer      *RetailerDTO    `json:"retailer"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ProfitLineDTO struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	COGS    decimal.Decimal `json:"cogs"`
	Profit  decimal.Decimal `json:"profit"`
}

type ProfitReportDTO struct {
	Currency string          `json:"currency"`
	Months   []ProfitLineDTO `json:"months"`
}

type TopProductDTO struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type SlowProductDTO struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	QuantitySold int64  `json:"quantity_sold"`
	WindowDays   int    `json:"window_days"`
}

// =============================================================================
// SCENARIOS + ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toProductDTO(p inventory.Product) ProductDTO {
	return ProductDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Category:  p.Category,
		Brand:     p.Brand,
		CreatedAt: p.CreatedAt,
	}
}

func toSupplierDTO(s inventory.Supplier) SupplierDTO {
	return SupplierDTO{
		ID:            string(s.ID),
		Name:          s.Name,
		ContactPerson: s.ContactPerson,
		Phone:         s.Phone,
		Email:         s.Email,
		GSTNumber:     s.GSTNumber,
		City:          s.City,
		CreatedAt:     s.CreatedAt,
	}
}

func toRetailerDTO(r inventory.Retailer) RetailerDTO {
	return RetailerDTO{
		ID:            string(r.ID),
		Name:          r.Name,
		Channel:       r.Channel,
		ContactPerson: r.ContactPerson,
		Phone:         r.Phone,
		Email:         r.Email,
		GSTNumber:     r.GSTNumber,
		CreatedAt:     r.CreatedAt,
	}
}

func toBatchDTO(b inventory.Batch) BatchDTO {
	dto := BatchDTO{
		ID:                string(b.ID),
		ProductID:         string(b.ProductID),
		SupplierName:      optionalString(b.SupplierName),
		BatchCode:         b.BatchCode,
		QuantityInitial:   b.QuantityInitial,
		QuantityRemaining: b.QuantityRemaining,
		UnitCost:          b.UnitCost,
		UnitSizeValue:     b.UnitSize.Value,
		UnitSizeUnit:      string(b.UnitSize.Unit),
		ExpiryDate:        b.ExpiryDate.Format("2006-01-02"),
		PurchasedAt:       b.PurchasedAt,
	}
	if b.SupplierID != nil {
		dto.SupplierID = optionalString(string(*b.SupplierID))
	}
	return dto
}

func toStockOverviewDTO(o *inventory.StockOverview) StockOverviewDTO {
	dto := StockOverviewDTO{
		TotalProducts: o.TotalProducts,
		TotalBatches:  o.TotalBatches,
		TotalUnits:    o.TotalUnits,
		Batches:       make([]StockBatchDTO, len(o.Batches)),
	}
	for i, b := range o.Batches {
		row := StockBatchDTO{BatchDTO: toBatchDTO(b.Batch), ProductName: b.ProductName}
		row.SupplierName = optionalString(b.SupplierDisplay)
		dto.Batches[i] = row
	}
	return dto
}

func toExpiryAlertDTO(a inventory.ExpiryAlert) ExpiryAlertDTO {
	return ExpiryAlertDTO{
		ProductID:         string(a.ProductID),
		ProductName:       a.ProductName,
		BatchID:           string(a.ID),
		BatchCode:         a.BatchCode,
		ExpiresOn:         a.ExpiryDate.Format("2006-01-02"),
		DaysRemaining:     a.DaysRemaining,
		QuantityRemaining: a.QuantityRemaining,
		UnitSizeValue:     a.UnitSize.Value,
		UnitSizeUnit:      string(a.UnitSize.Unit),
	}
}

func toSaleDTO(s inventory.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            string(s.ID),
		ProductID:     string(s.ProductID),
		Quantity:      s.Quantity,
		SellingPrice:  s.SellingPrice,
		SaleDate:      s.SoldAt,
		CustomerName:  optionalString(s.CustomerName),
		InvoiceNumber: optionalString(s.InvoiceNumber),
		UnitSizeValue: s.UnitSize.Value,
		UnitSizeUnit:  string(s.UnitSize.Unit),
		Revenue:       s.Revenue(),
		CostOfGoods:   s.CostOfGoods(),
		Allocations:   make([]AllocationDTO, len(s.Allocations)),
	}
	if s.RetailerID != nil {
		dto.RetailerID = optionalString(string(*s.RetailerID))
	}
	if s.Retailer != nil {
		r := toRetailerDTO(*s.Retailer)
		dto.Retailer = &r
	}
	for i, a := range s.Allocations {
		dto.Allocations[i] = AllocationDTO{BatchID: string(a.BatchID), Quantity: a.Quantity, UnitCost: a.UnitCost}
	}
	return dto
}

func toProfitReportDTO(r *report.ProfitReport) ProfitReportDTO {
	dto := ProfitReportDTO{Currency: r.Currency, Months: make([]ProfitLineDTO, len(r.Months))}
	for i, m := range r.Months {
		dto.Months[i] = ProfitLineDTO{Month: m.Month, Revenue: m.Revenue, COGS: m.CostOfGoods, Profit: m.Profit}
	}
	return dto
}
