package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furtrade/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "furtrade.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordsRoundtrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	records := []model.Record{
		{Reporter: "Canada", Partner: "China", Year: 2021, Flow: model.FlowExport, QuantityKG: 10, ValueUSD: 100, ValueEUR: 90},
		{Reporter: "Canada", Partner: model.PartnerRestOfWorld, Year: 2021, Flow: model.FlowExport, QuantityKG: 5, ValueUSD: 50, ValueEUR: 45},
	}
	require.NoError(t, store.UpsertRecords(ctx, records))

	loaded, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, records, loaded)
}

func TestUpsertRecordsReplacesExisting(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	record := model.Record{Reporter: "Canada", Partner: "China", Year: 2021, Flow: model.FlowExport, ValueUSD: 100}
	require.NoError(t, store.UpsertRecords(ctx, []model.Record{record}))

	record.ValueUSD = 250
	require.NoError(t, store.UpsertRecords(ctx, []model.Record{record}))

	loaded, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 250.0, loaded[0].ValueUSD)
}

func TestFlagsRoundtrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	flags := []model.Flag{
		{
			Group:  model.Group{Reporter: "Canada", Year: 2021, Flow: model.FlowExport},
			Kind:   model.FlagMissingWorldTotal,
			Detail: "no World total in source data; Rest of World reported as 0",
		},
	}
	require.NoError(t, store.UpsertFlags(ctx, flags))

	loaded, err := store.ListFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, flags, loaded)
}

func TestEmptyUpsertsAreNoops(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecords(ctx, nil))
	require.NoError(t, store.UpsertFlags(ctx, nil))

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
