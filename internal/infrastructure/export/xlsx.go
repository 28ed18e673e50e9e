// Package export renders valuation and movement reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain/valuation"
)

const (
	ValuationSheet = "Valuation"
	MovementsSheet = "Movements"

	// ContentType is the MIME type of the rendered workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FileName returns the download name of a report for p.
func FileName(kind string, p *entity.InventoryPeriod) string {
	return fmt.Sprintf("%s-%s.xlsx", kind, p.Label())
}

// WriteValuation renders the period's snapshot with a total row.
func WriteValuation(w io.Writer, p *entity.InventoryPeriod, rows []entity.ValuationSnapshot) error {
	f, err := newWorkbook(ValuationSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{"Period", "Branch", "Item", "Quantity", "Value"}
	if err := f.SetSheetRow(ValuationSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		row := []any{
			p.Label(),
			r.BranchID.String(),
			r.ItemID.String(),
			r.Qty.Decimal().InexactFloat64(),
			r.TotalValue.InexactFloat64(),
		}
		if err := f.SetSheetRow(ValuationSheet, cell("A", i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	total := []any{"Total", "", "", "", valuation.TotalValue(rows).InexactFloat64()}
	if err := f.SetSheetRow(ValuationSheet, cell("A", len(rows)+2), &total); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	return write(f, w)
}

// WriteMovements renders the period's movement summaries.
func WriteMovements(w io.Writer, p *entity.InventoryPeriod, rows []entity.MovementSummary) error {
	f, err := newWorkbook(MovementsSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{"Period", "Item", "Event", "Quantity", "Cost", "Entries"}
	if err := f.SetSheetRow(MovementsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		row := []any{
			p.Label(),
			r.ItemID.String(),
			string(r.EventType),
			r.Qty.Decimal().InexactFloat64(),
			r.Cost.InexactFloat64(),
			r.Entries,
		}
		if err := f.SetSheetRow(MovementsSheet, cell("A", i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return write(f, w)
}

func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "C", 38); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return f, nil
}

func write(f *excelize.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
