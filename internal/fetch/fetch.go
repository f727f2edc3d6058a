// Package fetch expands the configured reporter, year, flow and product grid
// into provider requests and joins all results before the reconciliation
// engine runs. The core never sees partial input: a failed tuple contributes
// nothing and is carried as a data-quality flag instead.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"furtrade/internal/config"
	"furtrade/internal/model"
	"furtrade/internal/providers"
	"furtrade/internal/providers/comtrade"
	"furtrade/internal/providers/wits"
)

const defaultConcurrency = 4

type Fetcher struct {
	provider    providers.Provider
	log         *slog.Logger
	concurrency int
}

func New(provider providers.Provider, log *slog.Logger, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{provider: provider, log: log, concurrency: concurrency}
}

// Result is the fully materialized input of one run.
type Result struct {
	Observations []model.RawObservation
	Flags        []model.Flag

	Requests  int
	Succeeded int
	Empty     int
	Failed    int
}

type tuple struct {
	reporter config.Reporter
	year     int
	flow     model.Flow
	product  model.ProductCode
}

// Run fetches every (reporter, year, flow, product) tuple of the
// configuration with bounded concurrency. A tuple the source has no records
// for is skipped; a tuple the source fails on is recorded as a fetch-failed
// flag and the run continues. Context cancellation and provider quota
// exhaustion abort the whole run.
func (f *Fetcher) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	tuples := make([]tuple, 0, len(cfg.Reporters)*len(cfg.Flows)*len(cfg.Products))
	for _, reporter := range cfg.Reporters {
		for _, year := range cfg.YearList() {
			for _, flow := range cfg.Flows {
				for _, product := range cfg.Products {
					tuples = append(tuples, tuple{reporter: reporter, year: year, flow: flow, product: product})
				}
			}
		}
	}

	result := &Result{Requests: len(tuples)}
	var mu sync.Mutex

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(f.concurrency)
	for _, t := range tuples {
		group.Go(func() error {
			observations, err := f.provider.FetchProduct(ctx, t.reporter.Code, t.year, t.flow, t.product)
			if err != nil {
				return f.record(ctx, result, &mu, t, err)
			}
			for i := range observations {
				observations[i].Reporter = t.reporter.Name
			}
			mu.Lock()
			result.Succeeded++
			result.Observations = append(result.Observations, observations...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (f *Fetcher) record(ctx context.Context, result *Result, mu *sync.Mutex, t tuple, err error) error {
	switch {
	case errors.Is(err, wits.ErrNoRecords), errors.Is(err, comtrade.ErrNoRecords):
		mu.Lock()
		result.Empty++
		mu.Unlock()
		return nil
	case errors.Is(err, comtrade.ErrQuotaExceeded):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}

	f.log.Warn("fetch failed, tuple contributes nothing",
		slog.String("reporter", t.reporter.Code),
		slog.Int("year", t.year),
		slog.String("flow", string(t.flow)),
		slog.String("product", string(t.product)),
		slog.String("error", err.Error()),
	)
	mu.Lock()
	result.Failed++
	result.Flags = append(result.Flags, model.Flag{
		Group:  model.Group{Reporter: t.reporter.Name, Year: t.year, Flow: t.flow},
		Kind:   model.FlagFetchFailed,
		Detail: fmt.Sprintf("product %s: %v", t.product, err),
	})
	mu.Unlock()
	return nil
}
