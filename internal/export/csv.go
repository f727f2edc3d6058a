// Package export serializes the assembled table. Writers preserve the row
// and column order exactly as produced by the assembler.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"furtrade/internal/model"
)

// Columns is the canonical column order of the output table.
var Columns = []string{
	"Reporter", "Partner", "Year", "Tradeflow",
	"Quantity in kg", "Trade Value USD", "Trade Value EUR",
}

// Row renders one record in canonical column order.
func Row(record model.Record) []string {
	return []string{
		record.Reporter,
		record.Partner,
		strconv.Itoa(record.Year),
		record.Flow.Label(),
		formatFloat(record.QuantityKG),
		formatFloat(record.ValueUSD),
		formatFloat(record.ValueEUR),
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// WriteCSV writes the table to a CSV file, creating parent directories as
// needed.
func WriteCSV(path string, records []model.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(Row(record)); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
