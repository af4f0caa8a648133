package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/frequency-chain/frequency-ops/config"
	"github.com/frequency-chain/frequency-ops/database"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/retry"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// Version will be set at build time
var Version = "development"

// app is the state shared by every subcommand, built in PersistentPreRunE.
type app struct {
	v        *viper.Viper
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func main() {
	// Create context that will be canceled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *app {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)
	return a
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "frequency-ops",
		Short:         "Operator tooling for Frequency: message export and account upgrades",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("database-uri", "", "MongoDB URI; enables checkpoints, message storage and batch records")
	flags.String("metrics-port", "", "serve /metrics on this port while a procedure runs")
	bindFlags(a.v, flags, map[string]string{
		"log-level":    config.KeyLogLevel,
		"database-uri": config.KeyDatabaseURI,
		"metrics-port": config.KeyMetricsPort,
	})

	rootCmd.AddCommand(newFetchCmd(a))
	rootCmd.AddCommand(newUpgradeCmd(a))
	rootCmd.AddCommand(newServeCmd(a))

	return rootCmd
}

// bindFlags binds each flag to its config key so flags win over environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func (a *app) init() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	a.v.AutomaticEnv()

	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid %s: %w", config.KeyLogLevel, err)
	}

	a.logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	}))
	slog.SetDefault(a.logger)

	a.logger.Info("Starting frequency-ops ("+Version+")",
		"Go Version", runtime.Version(),
		"Operating System", runtime.GOOS,
		"Architecture", runtime.GOARCH)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	return nil
}

func (a *app) retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = a.cfg.RPC.MaxRetries
	return cfg
}

// openDatabase connects to MongoDB, or returns nil when no URI is configured.
func (a *app) openDatabase(ctx context.Context) (*database.Database, error) {
	if !a.cfg.Database.Enabled() {
		return nil, nil
	}

	db, err := database.NewDatabase(database.DatabaseOpts{
		URI:          a.cfg.Database.URI,
		DatabaseName: a.cfg.Database.Name,
		Logger:       a.logger.With("component", "database"),
	})
	if err != nil {
		return nil, err
	}

	if err := db.CreateIndexes(ctx); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to create database indexes: %w", err)
	}
	return db, nil
}

// serveMetrics exposes the registry on MetricsPort until ctx is done. It
// returns nil immediately when no port is configured.
func (a *app) serveMetrics(ctx context.Context) error {
	if a.cfg.MetricsPort == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              ":" + a.cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving metrics", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// runWithMetrics runs fn beside the metrics listener. The listener stops once
// fn returns.
func (a *app) runWithMetrics(ctx context.Context, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return fn(runCtx)
	})
	g.Go(func() error {
		return a.serveMetrics(runCtx)
	})

	return g.Wait()
}
