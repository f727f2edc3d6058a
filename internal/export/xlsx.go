package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"furtrade/internal/model"
)

const sheetName = "Trade Data"

// WriteXLSX writes the table to a spreadsheet with one data sheet. Quantity
// and value cells are written as numbers so downstream tooling can sum them.
func WriteXLSX(path string, records []model.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, column := range Columns {
		header[i] = column
	}
	if err := file.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, record := range records {
		row := []any{
			record.Reporter,
			record.Partner,
			record.Year,
			record.Flow.Label(),
			record.QuantityKG,
			record.ValueUSD,
			record.ValueEUR,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		if err := file.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}
