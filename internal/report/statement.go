// Package report renders lease statements as spreadsheets.
package report

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/gosuda/leasekeep/internal/domain"
)

const statementSheet = "Statement"

var statementHeader = []string{"Date", "Entry", "Period", "Payment", "Charge", "Credit", "Balance"} //nolint:gochecknoglobals // static layout

var statementWidths = []float64{14, 10, 10, 38, 14, 14, 14} //nolint:gochecknoglobals // static layout

// StatementXLSX renders st as a workbook with one row per ledger entry,
// a running balance and a totals block.
func StatementXLSX(st *domain.Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(statementSheet)
	if err != nil {
		return nil, fmt.Errorf("report.StatementXLSX: sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("report.StatementXLSX: default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("report.StatementXLSX: style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("report.StatementXLSX: style: %w", err)
	}

	w := sheetWriter{f: f}
	w.set(1, 1, "Lease")
	w.set(2, 1, st.Lease.ID.String())
	w.set(1, 2, "Term")
	w.set(2, 2, st.Lease.StartDate.Format("2006-01-02")+" to "+st.Lease.EndDate.Format("2006-01-02"))
	w.set(1, 3, "Status")
	w.set(2, 3, string(st.Lease.Status))

	const headerRow = 5
	for i, h := range statementHeader {
		w.set(i+1, headerRow, h)
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.do(f.SetColWidth(statementSheet, col, col, statementWidths[i]))
	}
	w.style(1, headerRow, len(statementHeader), headerRow, bold)

	running := decimal.Zero
	row := headerRow
	for _, e := range st.Entries {
		row++
		w.set(1, row, e.CreatedAt.Format("2006-01-02"))
		w.set(2, row, string(e.Kind))
		w.set(3, row, string(e.Period))
		if e.PaymentID != nil {
			w.set(4, row, e.PaymentID.String())
		}
		if e.Kind.Charge() {
			running = running.Add(e.Amount)
			w.set(5, row, e.Amount.InexactFloat64())
		} else {
			running = running.Sub(e.Amount)
			w.set(6, row, e.Amount.InexactFloat64())
		}
		w.set(7, row, running.InexactFloat64())
	}
	if row > headerRow {
		w.style(5, headerRow+1, 7, row, money)
	}

	row += 2
	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"Total charges", st.Balance.Charges},
		{"Total payments", st.Balance.Payments},
		{"Balance due", st.Balance.Due},
	}
	for i, t := range totals {
		w.set(6, row+i, t.label)
		w.set(7, row+i, t.value.InexactFloat64())
	}
	w.style(6, row, 6, row+len(totals)-1, bold)
	w.style(7, row, 7, row+len(totals)-1, money)

	w.do(f.SetPanes(statementSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
		ActivePane:  "bottomLeft",
	}))
	if w.err != nil {
		return nil, fmt.Errorf("report.StatementXLSX: %w", w.err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("report.StatementXLSX: write: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first error of a run of cell writes.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) do(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *sheetWriter) set(col, row int, v any) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.do(err)
		return
	}
	w.do(w.f.SetCellValue(statementSheet, cell, v))
}

func (w *sheetWriter) style(c1, r1, c2, r2, style int) {
	from, err := excelize.CoordinatesToCellName(c1, r1)
	if err != nil {
		w.do(err)
		return
	}
	to, err := excelize.CoordinatesToCellName(c2, r2)
	if err != nil {
		w.do(err)
		return
	}
	w.do(w.f.SetCellStyle(statementSheet, from, to, style))
}
