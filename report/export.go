package report

import (
	"fmt"
	"io"

	"github.com/warp/stock-engine/inventory"
	"github.com/xuri/excelize/v2"
)

const (
	ProfitSheet = "Monthly Profit"
	StockSheet  = "Stock"

	// XLSXContentType is the MIME type of WriteWorkbook output.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteWorkbook writes the profit report and, when stock is non-nil, the
// stock overview as an .xlsx workbook.
func WriteWorkbook(w io.Writer, profit *ProfitReport, stock *inventory.StockOverview) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ProfitSheet); err != nil {
		return err
	}
	if err := writeProfitSheet(f, profit); err != nil {
		return fmt.Errorf("failed to write profit sheet: %w", err)
	}
	if stock != nil {
		if _, err := f.NewSheet(StockSheet); err != nil {
			return err
		}
		if err := writeStockSheet(f, stock); err != nil {
			return fmt.Errorf("failed to write stock sheet: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeProfitSheet(f *excelize.File, profit *ProfitReport) error {
	header := []any{"Month", "Revenue", "COGS", "Profit", "Currency"}
	if err := setRow(f, ProfitSheet, 1, header); err != nil {
		return err
	}
	row := 2
	for _, m := range profit.Months {
		values := []any{m.Month, m.Revenue.InexactFloat64(), m.CostOfGoods.InexactFloat64(), m.Profit.InexactFloat64(), profit.Currency}
		if err := setRow(f, ProfitSheet, row, values); err != nil {
			return err
		}
		row++
	}
	total := profit.Totals()
	return setRow(f, ProfitSheet, row, []any{
		"Total", total.Revenue.InexactFloat64(), total.CostOfGoods.InexactFloat64(), total.Profit.InexactFloat64(), profit.Currency,
	})
}

func writeStockSheet(f *excelize.File, stock *inventory.StockOverview) error {
	header := []any{"Product", "Batch", "Remaining", "Initial", "Unit Cost", "Unit Size", "Expiry", "Supplier"}
	if err := setRow(f, StockSheet, 1, header); err != nil {
		return err
	}
	for i, b := range stock.Batches {
		values := []any{
			b.ProductName,
			b.BatchCode,
			b.QuantityRemaining,
			b.QuantityInitial,
			b.UnitCost.InexactFloat64(),
			b.UnitSize.String(),
			b.ExpiryDate.Format("2006-01-02"),
			b.SupplierDisplay,
		}
		if err := setRow(f, StockSheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
