package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"RSIPipeline/internal/analysis"
	"RSIPipeline/internal/collector"
	"RSIPipeline/internal/config"
	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/metrics"
	"RSIPipeline/internal/notifier"
	"RSIPipeline/internal/pipeline"
	"RSIPipeline/internal/recorder"
	"RSIPipeline/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Error().Err(err).Msg("rsipipeline exited with error")
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("rsipipeline", pflag.ContinueOnError)
	cfgPath := fs.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config file")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before the config")
	once := fs.Bool("once", false, "run the pipeline once, print the summary and exit")
	symbols := fs.StringSlice("symbols", nil, "symbols to analyze (overrides the configured universe)")
	noStore := fs.Bool("no-store", false, "compute RSI without writing results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(*symbols) > 0 && len(cfg.Pipeline.Symbols) == 0 {
		cfg.Pipeline.Symbols = *symbols
	}
	if *noStore {
		cfg.Pipeline.StoreResults = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("config", *cfgPath).Bool("once", *once).Msg("rsipipeline starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()
	log.Info().Str("provider", provider.Name()).Msg("data source ready")

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, reg)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	var n pipeline.Notifier
	if cfg.NotifyEnabled() {
		tn := notifier.NewTelegramNotifier(notifier.TelegramOptions{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Proxy:    cfg.Proxy,
		})
		defer tn.Close()
		n = tn
	}

	lookback, _ := collector.ParseLookback(cfg.Pipeline.Lookback)
	analyzer := analysis.NewAnalyzer(provider, cfg.Pipeline.RSIPeriod, lookback)
	analyzer.Timeout = cfg.Pipeline.SymbolTimeout
	orch := analysis.NewOrchestrator(analyzer, cfg.Pipeline.Workers, m)

	p := pipeline.New(buildUniverse(cfg), orch, store, cfg.Database.Table, m, n, pipeline.Options{
		StoreResults: cfg.StoreEnabled(),
		CleanupDays:  cfg.Pipeline.CleanupDays,
	})

	if *once {
		return runOnce(ctx, p, *symbols, stdout)
	}

	sched := scheduler.NewScheduler(ctx, p, *symbols)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("run_on_start enabled, executing pipeline now")
		go func() {
			if _, err := sched.RunNow(); err != nil {
				log.Error().Err(err).Msg("startup run failed")
			}
		}()
	}

	log.Info().Msg("rsipipeline is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
	return nil
}

func runOnce(ctx context.Context, p *pipeline.Pipeline, symbols []string, stdout io.Writer) error {
	summary, err := p.Run(ctx, symbols)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if !summary.PersistSkipped && !summary.Persisted.Success {
		return errors.New(summary.Persisted.Error)
	}
	return nil
}

func buildProvider(ctx context.Context, cfg *config.Config) (collector.PriceProvider, func(), error) {
	opts := collector.ClientOptions{
		BaseURL:           cfg.DataSource.BaseURL,
		APIKey:            cfg.DataSource.APIKey,
		Proxy:             cfg.Proxy,
		Timeout:           cfg.DataSource.Timeout,
		RetryCount:        cfg.DataSource.RetryCount,
		RequestsPerSecond: cfg.DataSource.RequestsPerSecond,
	}

	var provider collector.PriceProvider
	switch cfg.DataSource.Provider {
	case "rest":
		provider = collector.NewRESTProvider(opts)
	case "mock":
		provider = &collector.MockProvider{Price: 100}
	default:
		provider = collector.NewYahooProvider(opts)
	}

	if cfg.Cache.RedisAddr == "" {
		return provider, func() {}, nil
	}
	rdb, err := collector.NewRedisClient(ctx, collector.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without bar cache")
		return provider, func() {}, nil
	}
	return collector.NewCachedProvider(provider, rdb, cfg.Cache.TTL), func() { rdb.Close() }, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (recorder.Store, error) {
	if !cfg.StoreEnabled() {
		return recorder.NewNoopStore(), nil
	}
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return recorder.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.Table, cfg.Database.BatchSize)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return recorder.NewSQLiteStore(ctx, cfg.Database.SQLitePath, cfg.Database.Table, cfg.Database.BatchSize)
	}
}

func buildUniverse(cfg *config.Config) collector.SymbolUniverse {
	if cfg.Universe.Source == "nasdaq" {
		return collector.NewNasdaqUniverse(collector.ClientOptions{
			Proxy:      cfg.Proxy,
			RetryCount: cfg.DataSource.RetryCount,
		}, cfg.Universe.IncludeETFs, cfg.Universe.Limit)
	}
	return collector.StaticUniverse(cfg.Pipeline.Symbols)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
