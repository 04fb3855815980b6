package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/marketsim/internal/config"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/handler"
	"github.com/efreitasn/marketsim/internal/metrics"
	"github.com/efreitasn/marketsim/internal/persist"
	"github.com/efreitasn/marketsim/internal/service"
	"github.com/efreitasn/marketsim/internal/store"
	"github.com/efreitasn/marketsim/internal/stream"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator and its HTTP/websocket API",
		Long: `Run the simulator and its HTTP/websocket API.

Instruments come from the first non-empty source: the YAML file named by
CATALOG_PATH, then the database at DB_PATH, then the built-in catalog. The
database is seeded with whatever was loaded, and later snapshots keep its
prices current.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn("config warning", slog.String("warning", w))
	}

	m := metrics.New()

	var db *store.SQLite
	if cfg.DBPath != "" {
		db, err = store.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open database", slog.String("path", cfg.DBPath), slog.String("error", err.Error()))
			return err
		}
		defer db.Close()
	}

	listings, fromDefault := store.LoadListings(ctx, logger, catalogChain(cfg.CatalogPath, db)...)
	logger.Info("instruments loaded", slog.Int("count", len(listings)), slog.Bool("builtin", fromDefault))

	var (
		sink  engine.Sink
		queue *persist.Queue
	)
	if db != nil {
		if err := db.SeedInstruments(ctx, listings); err != nil {
			logger.Warn("failed to seed instruments", slog.String("error", err.Error()))
		}
		queue = persist.NewQueue(db, cfg.PersistQueueSize, uint64(cfg.PersistMaxRetries), logger, m)
		sink = queue
	}

	// The hub validates subscriptions against the market, and the market
	// publishes through the hub, so the symbol check is bound late.
	var market *engine.Market
	hub := stream.NewHub(func(symbol string) bool {
		_, err := market.GetInstrument(symbol)
		return err == nil
	}, logger, m)

	market, err = engine.NewMarket(listings, engine.Options{
		Params:               cfg.MarketParameters(),
		Source:               engine.NewSource(cfg.Seed),
		Sink:                 sink,
		Broadcaster:          hub,
		Metrics:              m,
		Logger:               logger,
		MarketBroadcastEvery: cfg.MarketBroadcastEvery,
	})
	if err != nil {
		logger.Error("failed to build market", slog.String("error", err.Error()))
		return err
	}

	scheduler := engine.NewScheduler(market, cfg.SnapshotInterval, m, logger)

	router := handler.NewRouter(handler.Deps{
		Orders:  service.NewOrderService(market),
		Market:  service.NewMarketService(market),
		Stream:  hub,
		Metrics: m.Handler(),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Cancelled on a listener failure as well as on a signal.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	if queue != nil {
		g.Go(func() error { return queue.Run(gctx) })
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.Int("port", cfg.Port),
			slog.Int("instruments", len(listings)),
			slog.Bool("persistence", db != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-gctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
			stopAll(logger, srv, hub, cfg)
			_ = g.Wait()
			return err
		}
	}

	stopAll(logger, srv, hub, cfg)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("background task failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// catalogChain lists the instrument sources in priority order. An explicit
// YAML catalog wins over the instruments stored in the database, so edits
// to the file apply on the next start; without one the database restores
// the last snapshot prices.
func catalogChain(catalogPath string, db *store.SQLite) []store.Catalog {
	var catalogs []store.Catalog
	if catalogPath != "" {
		catalogs = append(catalogs, store.YAMLCatalog{Path: catalogPath})
	}
	if db != nil {
		catalogs = append(catalogs, db)
	}
	return catalogs
}

func stopAll(logger *slog.Logger, srv *http.Server, hub *stream.Hub, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	hub.Close()
}
