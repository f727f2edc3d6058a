package wits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furtrade/internal/model"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewWithConfig(Config{
		BaseURL:         server.URL,
		ProductPath:     "trade/{reporter}/{year}/{flow}/{product}",
		FlowImportCode:  "I",
		FlowExportCode:  "E",
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		ValueMultiplier: 1000,
	})
	require.NoError(t, err)
	return provider
}

func TestFetchProductParsesRows(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade/DEU/2021/E/430110", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"dataset": [
			{"Partner": "United States", "QuantityUnit": "Kg", "Quantity": 10, "TradeValue1000USD": 1.5, "TradeValueEUR": 1.2},
			{"Partner": "World", "QuantityUnit": "Kg", "Quantity": 100, "TradeValue1000USD": 20},
			{"Partner": "China", "QuantityUnit": "Item", "Quantity": 5, "TradeValue1000USD": 9}
		]}`))
	})

	observations, err := provider.FetchProduct(context.Background(), "DEU", 2021, model.FlowExport, "430110")
	require.NoError(t, err)
	require.Len(t, observations, 2) // the non-kg row is dropped

	us := observations[0]
	assert.Equal(t, "DEU", us.Reporter)
	assert.Equal(t, "United States", us.Partner)
	assert.Equal(t, 2021, us.Year)
	assert.Equal(t, model.FlowExport, us.Flow)
	assert.Equal(t, model.ProductCode("430110"), us.Product)
	assert.Equal(t, 10.0, us.QuantityKG)
	assert.Equal(t, 1500.0, us.ValueUSD)
	assert.Equal(t, 1200.0, us.ValueEUR)

	world := observations[1]
	assert.Equal(t, model.PartnerWorld, world.Partner)
	assert.Equal(t, 20000.0, world.ValueUSD)
	assert.Zero(t, world.ValueEUR) // absent value contributes 0
}

func TestFetchProductNoRecords(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "NoRecordsFound", http.StatusNotFound)
	})

	_, err := provider.FetchProduct(context.Background(), "DEU", 2021, model.FlowImport, "430110")
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestFetchProductEmptyDatasetIsNoRecords(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dataset": []}`))
	})

	_, err := provider.FetchProduct(context.Background(), "DEU", 2021, model.FlowImport, "430110")
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestFetchProductServerError(t *testing.T) {
	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := provider.FetchProduct(context.Background(), "DEU", 2021, model.FlowImport, "430110")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecords)
}

func TestNormalizePartner(t *testing.T) {
	assert.Equal(t, model.PartnerWorld, normalizePartner(" World "))
	assert.Equal(t, model.PartnerWorld, normalizePartner("WLD"))
	assert.Equal(t, "Chile", normalizePartner("Chile"))
}
