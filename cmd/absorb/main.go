package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/orderflow/config"
	"github.com/alejandrodnm/orderflow/internal/adapters/feed"
	"github.com/alejandrodnm/orderflow/internal/adapters/notify"
	"github.com/alejandrodnm/orderflow/internal/adapters/storage"
	"github.com/alejandrodnm/orderflow/internal/application/position"
	"github.com/alejandrodnm/orderflow/internal/application/sweep"
	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/alejandrodnm/orderflow/internal/ports"
	"github.com/alejandrodnm/orderflow/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "do not persist sweep results")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	csvPath := flag.String("csv", "", "read the tape from this CSV instead of the configured feed")
	importCSV := flag.String("import-csv", "", "import a CSV tape into storage and exit")
	symbol := flag.String("symbol", "", "symbol to sweep (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *symbol != "" {
		cfg.Feed.Symbol = *symbol
	}
	if *csvPath != "" {
		cfg.Feed.Kind = "csv"
		cfg.Feed.Path = *csvPath
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *importCSV != "" {
		if err := runImport(ctx, cfg, *importCSV); err != nil {
			slog.Error("import failed", "err", err, "path", *importCSV)
			os.Exit(1)
		}
		return
	}

	slog.Info("absorb starting",
		"config", *configPath,
		"symbol", cfg.Feed.Symbol,
		"feed", cfg.Feed.Kind,
		"dry_run", *dryRun,
	)

	if err := runSweep(ctx, cfg, *dryRun); err != nil {
		slog.Error("sweep exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("absorb stopped cleanly")
}

func runSweep(ctx context.Context, cfg *config.Config, dryRun bool) error {
	grid, err := cfg.ParameterGrid().Expand()
	if err != nil {
		return err
	}
	sweepCfg, err := sweepConfig(cfg)
	if err != nil {
		return err
	}

	var store *storage.SQLiteStorage
	if cfg.Feed.Kind == "sqlite" || !dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var tradeFeed ports.TradeFeed
	switch cfg.Feed.Kind {
	case "csv":
		if cfg.Feed.Path == "" {
			return errors.New("feed.kind=csv needs feed.path")
		}
		tradeFeed = feed.NewCSVFeed(cfg.Feed.Path)
	case "sqlite":
		tradeFeed = store
	default:
		return errors.New("unknown feed kind " + cfg.Feed.Kind)
	}

	var sink ports.ResultSink
	if !dryRun {
		sink = store
	}

	registry := strategy.NewRegistry()
	if cfg.Baseline.Enabled {
		registry.Register(strategy.NewMACrossover(strategy.MACrossoverConfig{
			BarInterval:   time.Duration(cfg.Baseline.BarIntervalSeconds) * time.Second,
			FastPeriod:    cfg.Baseline.FastPeriod,
			SlowPeriod:    cfg.Baseline.SlowPeriod,
			TakeProfitPct: cfg.Baseline.TakeProfitPct,
			StopLossPct:   cfg.Baseline.StopLossPct,
		}))
	}
	var baselines []strategy.Strategy
	for _, name := range registry.Names() {
		s, _ := registry.Get(name)
		baselines = append(baselines, s)
	}

	slog.Info("grid expanded", "parameter_sets", len(grid), "baselines", registry.Names())

	e := sweep.New(sweepCfg, tradeFeed, sink, notify.NewConsole(cfg.Sweep.TopN), baselines...)
	_, err = e.Run(ctx, grid)
	return err
}

func sweepConfig(cfg *config.Config) (sweep.Config, error) {
	sc := sweep.DefaultConfig()
	sc.Symbol = cfg.Feed.Symbol
	sc.Workers = cfg.Sweep.Workers
	sc.EvalHorizon = cfg.EvalHorizon()
	sc.BucketSize = cfg.Sweep.BucketSize
	sc.ReopenOnReverse = *cfg.Sweep.ReopenOnReverse

	var err error
	if sc.From, sc.To, err = cfg.Range(); err != nil {
		return sc, err
	}
	if sc.Location, err = cfg.Location(); err != nil {
		return sc, err
	}
	if sc.OnRepeatSignal, err = position.ParseRepeatPolicy(cfg.Sweep.OnRepeatSignal); err != nil {
		return sc, err
	}
	if sc.OnInvalidated, err = position.ParseInvalidatedPolicy(cfg.Sweep.OnInvalidated); err != nil {
		return sc, err
	}
	return sc, nil
}

// runImport carga un CSV al storage para sweeps posteriores.
func runImport(ctx context.Context, cfg *config.Config, path string) error {
	if cfg.Feed.Symbol == "" {
		return errors.New("import needs a symbol (feed.symbol or -symbol)")
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	from, to, err := cfg.Range()
	if err != nil {
		return err
	}
	trades, err := feed.NewCSVFeed(path).LoadTrades(ctx, cfg.Feed.Symbol, from, to)
	if err != nil {
		var dve *domain.DataValidationError
		if errors.As(err, &dve) {
			slog.Error("bad trade in tape", "index", dve.Index, "reason", dve.Reason)
		}
		return err
	}
	if err := store.SaveTrades(ctx, cfg.Feed.Symbol, trades); err != nil {
		return err
	}
	slog.Info("tape imported", "symbol", cfg.Feed.Symbol, "trades", len(trades), "dsn", cfg.Storage.DSN)
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
