package belvo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	SheetTransactions = "Transactions"
	SheetKPI          = "KPI"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportTransactions renders the same page ListTransactions returns into an XLSX workbook.
func (g *Gateway) ExportTransactions(ctx context.Context, q TransactionQuery) (*bytes.Buffer, error) {
	const op = "belvo.ExportTransactions"

	report, err := g.ListTransactions(ctx, q)
	if err != nil {
		return nil, err
	}

	buf, err := Workbook(report)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf, nil
}

// Workbook writes the transactions and the KPI triple into two sheets.
func Workbook(report TransactionsReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Transactions
	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return nil, err
	}

	headers := []any{"ID", "Transacted at", "Type", "Amount", "Category", "Description", "Status"}
	if err := f.SetSheetRow(SheetTransactions, "A1", &headers); err != nil {
		return nil, err
	}

	for i, t := range report.Transactions {
		row := []any{
			t.ID,
			t.TransactedAt,
			t.Type,
			t.Amount,
			deref(t.Category),
			deref(t.Description),
			t.Status,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetTransactions, cell, &row); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(SheetTransactions, "A", "B", 38)
	_ = f.SetColWidth(SheetTransactions, "E", "F", 30)

	if _, err := f.NewSheet(SheetKPI); err != nil {
		return nil, err
	}

	kpiRows := [][]any{
		{"Income", report.KPI.Income},
		{"Expenses", report.KPI.Expenses},
		{"Balance", report.KPI.Balance},
	}
	for i, r := range kpiRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetKPI, cell, &r); err != nil {
			return nil, err
		}
	}

	return f.WriteToBuffer()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
