package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furtrade/internal/model"
)

const validYAML = `
products: ["430110", "430120"]
reporters:
  - {name: Canada, code: CAN}
  - {name: Chile, code: CHL}
partners: [United States, China]
years: {from: 2020, to: 2024}
flows: [import, export]
`

func TestParseValid(t *testing.T) {
	cfg, duplicates, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	assert.Empty(t, duplicates)

	assert.Equal(t, []model.ProductCode{"430110", "430120"}, cfg.Products)
	assert.Equal(t, "CAN", cfg.Reporters[0].Code)
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, cfg.YearList())
	assert.Len(t, cfg.EUMembers, 27) // defaulted
}

func TestParseDeduplicatesProducts(t *testing.T) {
	yamlWithDup := `
products: ["430310", "430310"]
reporters: [{name: Canada, code: CAN}]
partners: [China]
`
	yamlWithout := `
products: ["430310"]
reporters: [{name: Canada, code: CAN}]
partners: [China]
`
	withDup, duplicates, err := Parse([]byte(yamlWithDup))
	require.NoError(t, err)
	require.Len(t, duplicates, 1)
	assert.Equal(t, model.ProductCode("430310"), duplicates[0])

	without, _, err := Parse([]byte(yamlWithout))
	require.NoError(t, err)
	assert.Equal(t, without.Products, withDup.Products)
}

func TestParseRejectsMalformedProductCode(t *testing.T) {
	for _, bad := range []string{"4301", "43011A", "4301100"} {
		_, _, err := Parse([]byte(`
products: ["` + bad + `"]
reporters: [{name: Canada, code: CAN}]
partners: [China]
`))
		require.Error(t, err, "product %q should be rejected", bad)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestParseRejectsEmptyProductList(t *testing.T) {
	_, _, err := Parse([]byte(`
products: []
reporters: [{name: Canada, code: CAN}]
partners: [China]
`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsYearOutOfRange(t *testing.T) {
	_, _, err := Parse([]byte(`
products: ["430110"]
reporters: [{name: Canada, code: CAN}]
partners: [China]
years: {from: 2019, to: 2024}
`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsReservedPartner(t *testing.T) {
	for _, reserved := range []string{model.PartnerWorld, model.PartnerEU, model.PartnerRestOfWorld} {
		_, _, err := Parse([]byte(`
products: ["430110"]
reporters: [{name: Canada, code: CAN}]
partners: ["` + reserved + `"]
`))
		require.Error(t, err, "partner %q should be rejected", reserved)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestDefaults(t *testing.T) {
	cfg, _, err := Parse([]byte(`
products: ["430110"]
reporters: [{name: Canada, code: CAN}]
partners: [China]
`))
	require.NoError(t, err)

	assert.Equal(t, Years{From: 2020, To: 2024}, cfg.Years)
	assert.Equal(t, []model.Flow{model.FlowImport, model.FlowExport}, cfg.Flows)
	assert.Contains(t, cfg.EUMembers, "Germany")
}
