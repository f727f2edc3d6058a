package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"furtrade/internal/config"
	"furtrade/internal/export"
	"furtrade/internal/model"
	"furtrade/internal/reconcile"
	"furtrade/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		build(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func build(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "configs/furtrade.yaml", "run configuration file (supplies table ordering)")
	dbPath := fs.String("db", "furtrade.db", "sqlite database path")
	csvPath := fs.String("csv", "", "CSV output path")
	xlsxPath := fs.String("xlsx", "", "XLSX output path")
	logJSON := fs.Bool("log-json", false, "log in JSON format")
	fs.Parse(args)

	log := newLogger(*logJSON)
	if err := runBuild(log, *configPath, *dbPath, *csvPath, *xlsxPath); err != nil {
		log.Error("publisher build failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: publisher build [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -config   run configuration file (default: configs/furtrade.yaml)")
	fmt.Fprintln(os.Stderr, "  -db       sqlite database path (default: furtrade.db)")
	fmt.Fprintln(os.Stderr, "  -csv      CSV output path (default: none)")
	fmt.Fprintln(os.Stderr, "  -xlsx     XLSX output path (default: none)")
	fmt.Fprintln(os.Stderr, "  -log-json log in JSON format")
}

func runBuild(log *slog.Logger, configPath, dbPath, csvPath, xlsxPath string) error {
	if csvPath == "" && xlsxPath == "" {
		return errors.New("nothing to do: provide -csv and/or -xlsx")
	}

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	stored, err := st.ListRecords(ctx)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return errors.New("store holds no reconciled rows; run the collector first")
	}

	flags, err := st.ListFlags(ctx)
	if err != nil {
		return err
	}
	for _, f := range flags {
		log.Warn("stored data quality flag",
			slog.String("reporter", f.Group.Reporter),
			slog.Int("year", f.Group.Year),
			slog.String("flow", string(f.Group.Flow)),
			slog.String("kind", string(f.Kind)),
			slog.String("detail", f.Detail),
		)
	}

	rows := orderStored(stored, cfg)

	if csvPath != "" {
		if err := export.WriteCSV(csvPath, rows); err != nil {
			return err
		}
		log.Info("wrote CSV", slog.String("path", csvPath), slog.Int("rows", len(rows)))
	}
	if xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, rows); err != nil {
			return err
		}
		log.Info("wrote XLSX", slog.String("path", xlsxPath), slog.Int("rows", len(rows)))
	}

	log.Info("publisher build complete", slog.Int("rows", len(rows)))
	return nil
}

// orderStored re-applies the canonical ordering to rows loaded from the
// store. Stored rows are already reconciled, so synthetic partners are
// split out and fed through the assembler unchanged.
func orderStored(stored []model.Record, cfg *config.Config) []model.Record {
	aggregated := make([]model.Record, 0, len(stored))
	synthetic := make([]model.Record, 0)
	for _, record := range stored {
		switch record.Partner {
		case model.PartnerEU, model.PartnerRestOfWorld:
			synthetic = append(synthetic, record)
		default:
			aggregated = append(aggregated, record)
		}
	}

	reporters := make([]string, 0, len(cfg.Reporters))
	for _, reporter := range cfg.Reporters {
		reporters = append(reporters, reporter.Name)
	}
	order := reconcile.Order{Reporters: reporters, Partners: cfg.Partners, Flows: cfg.Flows}
	return reconcile.Assemble(aggregated, synthetic, order)
}

func newLogger(jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
