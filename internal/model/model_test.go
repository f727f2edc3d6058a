package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductCodeValid(t *testing.T) {
	assert.True(t, ProductCode("430110").Valid())
	assert.False(t, ProductCode("4301").Valid())
	assert.False(t, ProductCode("4301100").Valid())
	assert.False(t, ProductCode("43011A").Valid())
	assert.False(t, ProductCode("").Valid())
}

func TestFlowLabel(t *testing.T) {
	assert.Equal(t, "Import", FlowImport.Label())
	assert.Equal(t, "Export", FlowExport.Label())
}

func TestRecordKey(t *testing.T) {
	record := Record{Reporter: "Canada", Partner: "China", Year: 2021, Flow: FlowExport, ValueUSD: 1}
	assert.Equal(t, Key{Reporter: "Canada", Partner: "China", Year: 2021, Flow: FlowExport}, record.Key())
}
