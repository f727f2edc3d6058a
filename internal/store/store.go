package store

import (
	"context"

	"furtrade/internal/model"
)

// Store persists the reconciled table and its data-quality flags so the
// publisher can re-export without refetching. Persistence is an output sink;
// the reconciliation engine never reads previous runs.
type Store interface {
	UpsertRecords(ctx context.Context, records []model.Record) error
	UpsertFlags(ctx context.Context, flags []model.Flag) error
	ListRecords(ctx context.Context) ([]model.Record, error)
	ListFlags(ctx context.Context) ([]model.Flag, error)
	Close() error
}

// NopStore is used when persistence is disabled.
type NopStore struct{}

func (s *NopStore) UpsertRecords(ctx context.Context, records []model.Record) error {
	_ = ctx
	_ = records
	return nil
}

func (s *NopStore) UpsertFlags(ctx context.Context, flags []model.Flag) error {
	_ = ctx
	_ = flags
	return nil
}

func (s *NopStore) ListRecords(ctx context.Context) ([]model.Record, error) {
	_ = ctx
	return nil, nil
}

func (s *NopStore) ListFlags(ctx context.Context) ([]model.Flag, error) {
	_ = ctx
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
