package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"furtrade/internal/model"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertRecords(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reconciled_trade (
			reporter, partner, year, flow, quantity_kg, value_usd, value_eur, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reporter, partner, year, flow)
		DO UPDATE SET
			quantity_kg = excluded.quantity_kg,
			value_usd = excluded.value_usd,
			value_eur = excluded.value_eur,
			ingested_at = excluded.ingested_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, record := range records {
		_, err = stmt.ExecContext(
			ctx,
			record.Reporter,
			record.Partner,
			record.Year,
			string(record.Flow),
			record.QuantityKG,
			record.ValueUSD,
			record.ValueEUR,
			now,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) UpsertFlags(ctx context.Context, flags []model.Flag) error {
	if len(flags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO data_flags (reporter, year, flow, kind, detail, flagged_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(reporter, year, flow, kind)
		DO UPDATE SET
			detail = excluded.detail,
			flagged_at = excluded.flagged_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, flag := range flags {
		_, err = stmt.ExecContext(
			ctx,
			flag.Group.Reporter,
			flag.Group.Year,
			string(flag.Group.Flow),
			string(flag.Kind),
			flag.Detail,
			now,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reporter, partner, year, flow, quantity_kg, value_usd, value_eur
		FROM reconciled_trade
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		var record model.Record
		var flow string
		if err := rows.Scan(&record.Reporter, &record.Partner, &record.Year, &flow, &record.QuantityKG, &record.ValueUSD, &record.ValueEUR); err != nil {
			return nil, err
		}
		record.Flow = model.Flow(flow)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ListFlags(ctx context.Context) ([]model.Flag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reporter, year, flow, kind, detail
		FROM data_flags
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make([]model.Flag, 0)
	for rows.Next() {
		var flag model.Flag
		var flow, kind string
		if err := rows.Scan(&flag.Group.Reporter, &flag.Group.Year, &flow, &kind, &flag.Detail); err != nil {
			return nil, err
		}
		flag.Group.Flow = model.Flow(flow)
		flag.Kind = model.FlagKind(kind)
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flags, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS reconciled_trade (
			reporter TEXT NOT NULL,
			partner TEXT NOT NULL,
			year INTEGER NOT NULL,
			flow TEXT NOT NULL,
			quantity_kg REAL NOT NULL,
			value_usd REAL NOT NULL,
			value_eur REAL NOT NULL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (reporter, partner, year, flow)
		);`,
		`CREATE TABLE IF NOT EXISTS data_flags (
			reporter TEXT NOT NULL,
			year INTEGER NOT NULL,
			flow TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL,
			flagged_at TEXT NOT NULL,
			PRIMARY KEY (reporter, year, flow, kind)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
