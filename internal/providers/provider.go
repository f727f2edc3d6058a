package providers

import (
	"context"

	"furtrade/internal/model"
)

// Provider returns the partner-level observations one source holds for a
// single (reporter, year, flow, product) request. Implementations return
// their package-level ErrNoRecords sentinel when the tuple has no data.
type Provider interface {
	Name() string
	FetchProduct(ctx context.Context, reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error)
}
