package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furtrade/internal/model"
)

func tableFixture() []model.Record {
	return []model.Record{
		{Reporter: "Canada", Partner: "United States", Year: 2021, Flow: model.FlowExport, QuantityKG: 10.5, ValueUSD: 1000, ValueEUR: 900},
		{Reporter: "Canada", Partner: model.PartnerEU, Year: 2021, Flow: model.FlowExport, QuantityKG: 0, ValueUSD: 0, ValueEUR: 0},
		{Reporter: "Canada", Partner: model.PartnerRestOfWorld, Year: 2021, Flow: model.FlowExport, QuantityKG: 2, ValueUSD: 300, ValueEUR: 270},
	}
}

func TestWriteCSVPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "table.csv")
	require.NoError(t, WriteCSV(path, tableFixture()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"Canada", "United States", "2021", "Export", "10.5", "1000", "900"}, rows[1])
	assert.Equal(t, "European Union", rows[2][1])
	assert.Equal(t, "Rest of World", rows[3][1])
}

func TestWriteCSVEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, WriteCSV(path, nil))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1) // header only
	assert.Equal(t, Columns, rows[0])
}
