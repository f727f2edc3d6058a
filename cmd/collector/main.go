package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"furtrade/internal/config"
	"furtrade/internal/export"
	"furtrade/internal/fetch"
	"furtrade/internal/providers"
	"furtrade/internal/providers/comtrade"
	"furtrade/internal/providers/wits"
	"furtrade/internal/reconcile"
	"furtrade/internal/store"
	"furtrade/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/furtrade.yaml", "run configuration file")
	provider := fs.String("provider", "wits", "provider id (wits, comtrade)")
	dbPath := fs.String("db", "furtrade.db", "sqlite database path (empty disables persistence)")
	csvPath := fs.String("csv", "", "write the reconciled table to this CSV file")
	xlsxPath := fs.String("xlsx", "", "write the reconciled table to this XLSX file")
	concurrency := fs.Int("concurrency", 4, "parallel fetch requests")
	logJSON := fs.Bool("log-json", false, "log in JSON format")
	verbose := fs.Bool("verbose", false, "debug logging")
	fs.Parse(args)

	log := newLogger(*logJSON, *verbose)
	if err := runCollector(log, *configPath, *provider, *dbPath, *csvPath, *xlsxPath, *concurrency); err != nil {
		log.Error("collector run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: collector run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -config       run configuration file (default: configs/furtrade.yaml)")
	fmt.Fprintln(os.Stderr, "  -provider     provider id (default: wits)")
	fmt.Fprintln(os.Stderr, "  -db           sqlite database path (default: furtrade.db)")
	fmt.Fprintln(os.Stderr, "  -csv          CSV output path (default: none)")
	fmt.Fprintln(os.Stderr, "  -xlsx         XLSX output path (default: none)")
	fmt.Fprintln(os.Stderr, "  -concurrency  parallel fetch requests (default: 4)")
	fmt.Fprintln(os.Stderr, "  -log-json     log in JSON format")
	fmt.Fprintln(os.Stderr, "  -verbose      debug logging")
}

func runCollector(log *slog.Logger, configPath, providerID, dbPath, csvPath, xlsxPath string, concurrency int) error {
	// Configuration errors are fatal before any request is issued.
	cfg, duplicates, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, product := range duplicates {
		log.Warn("duplicate product code removed from configuration",
			slog.String("product", string(product)))
	}

	provider, err := buildProvider(providerID)
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	result, err := fetch.New(provider, log, concurrency).Run(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("fetch complete",
		slog.String("provider", provider.Name()),
		slog.Int("requests", result.Requests),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("empty", result.Empty),
		slog.Int("failed", result.Failed),
		slog.Int("observations", len(result.Observations)),
	)

	aggregated := reconcile.Aggregate(result.Observations)
	synthetic, flags := reconcile.Partners(aggregated, cfg.Partners, cfg.EUMembers)
	for _, f := range flags {
		log.Warn("data quality flag",
			slog.String("reporter", f.Group.Reporter),
			slog.Int("year", f.Group.Year),
			slog.String("flow", string(f.Group.Flow)),
			slog.String("kind", string(f.Kind)),
			slog.String("detail", f.Detail),
		)
	}
	flags = append(result.Flags, flags...)

	rows := reconcile.Assemble(aggregated, synthetic, tableOrder(cfg))

	if err := st.UpsertRecords(ctx, rows); err != nil {
		return err
	}
	if err := st.UpsertFlags(ctx, flags); err != nil {
		return err
	}

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

	log.Info("collector run complete",
		slog.Int("rows", len(rows)),
		slog.Int("flags", len(flags)),
	)
	return nil
}

func buildProvider(providerID string) (providers.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(providerID)) {
	case "wits":
		return wits.New()
	case "comtrade":
		return comtrade.New()
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerID)
	}
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func tableOrder(cfg *config.Config) reconcile.Order {
	reporters := make([]string, 0, len(cfg.Reporters))
	for _, reporter := range cfg.Reporters {
		reporters = append(reporters, reporter.Name)
	}
	return reconcile.Order{Reporters: reporters, Partners: cfg.Partners, Flows: cfg.Flows}
}

func newLogger(jsonFormat, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
