/*
Package report builds read-only projections over recorded sales.

PURPOSE:
  Profit and movement reports. Nothing here writes; every figure is derived
  from sales and their allocation cost snapshots, so a report never depends
  on the current state of a batch.

REPORTS:
  MonthlyProfit: revenue, cost of goods and profit per calendar month (UTC)
                 revenue = quantity * selling price
                 cogs    = sum(allocation quantity * allocation unit cost)
  TopSelling:    products by total quantity sold, descending
  SlowMoving:    products by quantity sold in a trailing window, ascending,
                 including products with no sales at all

SEE ALSO:
  - export.go: spreadsheet export of these reports
  - inventory/types.go: Sale.Revenue, Sale.CostOfGoods
*/
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/stock-engine/inventory"
)

const (
	DefaultCurrency         = "INR"
	DefaultSlowMovingWindow = 30 * 24 * time.Hour
	DefaultLimit            = 5
)

// Source is the read surface the projector needs.
type Source interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
	ListSales(ctx context.Context) ([]inventory.Sale, error)
}

// MonthlyProfit is one line of the profit report.
type MonthlyProfit struct {
	Month       string // YYYY-MM
	Revenue     decimal.Decimal
	CostOfGoods decimal.Decimal
	Profit      decimal.Decimal
}

// ProfitReport is the monthly profit report in ascending month order.
type ProfitReport struct {
	Currency string
	Months   []MonthlyProfit
}

// Totals sums every month of the report.
func (r ProfitReport) Totals() MonthlyProfit {
	total := MonthlyProfit{Month: "total", Revenue: decimal.Zero, CostOfGoods: decimal.Zero, Profit: decimal.Zero}
	for _, m := range r.Months {
		total.Revenue = total.Revenue.Add(m.Revenue)
		total.CostOfGoods = total.CostOfGoods.Add(m.CostOfGoods)
		total.Profit = total.Profit.Add(m.Profit)
	}
	return total
}

// ProductMovement is the sold quantity of one product.
type ProductMovement struct {
	ProductID    inventory.ProductID
	ProductName  string
	QuantitySold int64
	Revenue      decimal.Decimal
}

// Projector computes reports from a Source.
type Projector struct {
	Source           Source
	Currency         string
	SlowMovingWindow time.Duration
	Now              inventory.Clock
}

func NewProjector(source Source, currency string, slowMovingWindow time.Duration) *Projector {
	if currency == "" {
		currency = DefaultCurrency
	}
	if slowMovingWindow <= 0 {
		slowMovingWindow = DefaultSlowMovingWindow
	}
	return &Projector{
		Source:           source,
		Currency:         currency,
		SlowMovingWindow: slowMovingWindow,
		Now:              func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// MONTHLY PROFIT
// =============================================================================

func (p *Projector) MonthlyProfit(ctx context.Context) (*ProfitReport, error) {
	sales, err := p.Source.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*MonthlyProfit)
	for _, s := range sales {
		key := s.SoldAt.UTC().Format("2006-01")
		line, ok := byMonth[key]
		if !ok {
			line = &MonthlyProfit{Month: key, Revenue: decimal.Zero, CostOfGoods: decimal.Zero}
			byMonth[key] = line
		}
		line.Revenue = line.Revenue.Add(s.Revenue())
		line.CostOfGoods = line.CostOfGoods.Add(s.CostOfGoods())
	}

	report := &ProfitReport{Currency: p.Currency, Months: make([]MonthlyProfit, 0, len(byMonth))}
	for _, line := range byMonth {
		line.Profit = line.Revenue.Sub(line.CostOfGoods)
		report.Months = append(report.Months, *line)
	}
	sort.Slice(report.Months, func(i, j int) bool { return report.Months[i].Month < report.Months[j].Month })
	return report, nil
}

// =============================================================================
// MOVEMENT
// =============================================================================

// TopSelling returns up to limit products with sales, most units first.
func (p *Projector) TopSelling(ctx context.Context, limit int) ([]ProductMovement, error) {
	movement, err := p.movement(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	out := make([]ProductMovement, 0, len(movement))
	for _, m := range movement {
		if m.QuantitySold > 0 {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuantitySold != out[j].QuantitySold {
			return out[i].QuantitySold > out[j].QuantitySold
		}
		return out[i].ProductName < out[j].ProductName
	})
	return truncate(out, limit), nil
}

// SlowMoving returns up to limit products ordered by units sold within the
// trailing window, fewest first, then by name.
func (p *Projector) SlowMoving(ctx context.Context, limit int) ([]ProductMovement, error) {
	out, err := p.movement(ctx, p.Now().Add(-p.SlowMovingWindow))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuantitySold != out[j].QuantitySold {
			return out[i].QuantitySold < out[j].QuantitySold
		}
		return out[i].ProductName < out[j].ProductName
	})
	return truncate(out, limit), nil
}

// movement totals sales at or after since for every catalog product.
func (p *Projector) movement(ctx context.Context, since time.Time) ([]ProductMovement, error) {
	products, err := p.Source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := p.Source.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[inventory.ProductID]int, len(products))
	out := make([]ProductMovement, 0, len(products))
	for _, prod := range products {
		index[prod.ID] = len(out)
		out = append(out, ProductMovement{ProductID: prod.ID, ProductName: prod.Name, Revenue: decimal.Zero})
	}
	for _, s := range sales {
		if s.SoldAt.Before(since) {
			continue
		}
		i, ok := index[s.ProductID]
		if !ok {
			continue
		}
		out[i].QuantitySold += s.Quantity
		out[i].Revenue = out[i].Revenue.Add(s.Revenue())
	}
	return out, nil
}

func truncate(in []ProductMovement, limit int) []ProductMovement {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(in) > limit {
		return in[:limit]
	}
	return in
}
