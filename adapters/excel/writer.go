package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"jetfakes/domain/table"

	"github.com/xuri/excelize/v2"
)

// WriteCSV writes a table as a CSV store with a typed header
func WriteCSV(path string, tbl *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tbl.Schema.Header()); err != nil {
		return err
	}
	if err := w.WriteAll(tbl.Rows); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return f.Close()
}

// WriteXLSX writes a table as a workbook whose only sheet is named after the tree
func WriteXLSX(path string, tbl *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), tbl.Tree); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(tbl.Tree)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", stringCells(tbl.Schema.Header())); err != nil {
		return err
	}
	for i, row := range tbl.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, stringCells(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// stringCells keeps cells as text so the workbook holds the exact source values
func stringCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
