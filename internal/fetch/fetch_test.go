package fetch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furtrade/internal/config"
	"furtrade/internal/model"
	"furtrade/internal/providers/comtrade"
	"furtrade/internal/providers/wits"
)

type fakeProvider struct {
	fetch func(reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchProduct(ctx context.Context, reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
	return f.fetch(reporterCode, year, flow, product)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, _, err := config.Parse([]byte(`
products: ["430110", "430120"]
reporters:
  - {name: Canada, code: CAN}
  - {name: Chile, code: CHL}
partners: [China]
years: {from: 2020, to: 2021}
flows: [export]
`))
	require.NoError(t, err)
	return cfg
}

func TestRunJoinsFullGrid(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
			return []model.RawObservation{{
				Reporter: reporterCode, Partner: "China", Year: year, Flow: flow,
				Product: product, ValueUSD: 1,
			}}, nil
		},
	}

	result, err := New(provider, slog.Default(), 3).Run(context.Background(), testConfig(t))
	require.NoError(t, err)

	// 2 reporters x 2 years x 1 flow x 2 products
	assert.Equal(t, 8, result.Requests)
	assert.Equal(t, 8, result.Succeeded)
	assert.Len(t, result.Observations, 8)
	assert.Empty(t, result.Flags)

	// observations carry the configured reporter label, not the query code
	reporters := map[string]bool{}
	for _, observation := range result.Observations {
		reporters[observation.Reporter] = true
	}
	assert.Equal(t, map[string]bool{"Canada": true, "Chile": true}, reporters)
}

func TestRunFailedTupleIsFlaggedAndRunContinues(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
			if reporterCode == "CHL" && year == 2020 && product == "430110" {
				return nil, errors.New("upstream 500")
			}
			return []model.RawObservation{{Reporter: reporterCode, Partner: "China", Year: year, Flow: flow, Product: product}}, nil
		},
	}

	result, err := New(provider, slog.Default(), 2).Run(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 7, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Flags, 1)
	assert.Equal(t, model.FlagFetchFailed, result.Flags[0].Kind)
	assert.Equal(t, model.Group{Reporter: "Chile", Year: 2020, Flow: model.FlowExport}, result.Flags[0].Group)
	assert.Contains(t, result.Flags[0].Detail, "430110")
}

func TestRunNoRecordsIsNotAFailure(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
			return nil, wits.ErrNoRecords
		},
	}

	result, err := New(provider, slog.Default(), 2).Run(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 8, result.Empty)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Flags)
	assert.Empty(t, result.Observations)
}

func TestRunQuotaExhaustionAborts(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
			return nil, comtrade.ErrQuotaExceeded
		},
	}

	_, err := New(provider, slog.Default(), 1).Run(context.Background(), testConfig(t))
	assert.ErrorIs(t, err, comtrade.ErrQuotaExceeded)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{
		fetch: func(reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
			return nil, ctx.Err()
		},
	}

	_, err := New(provider, slog.Default(), 1).Run(ctx, testConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
}
