package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/catalog"
	"github.com/scoopcreamy/ninjapos/internal/commit"
	"github.com/scoopcreamy/ninjapos/internal/config"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/db"
	"github.com/scoopcreamy/ninjapos/internal/events"
	httpapi "github.com/scoopcreamy/ninjapos/internal/http"
	"github.com/scoopcreamy/ninjapos/internal/logging"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/punchcard"
	"github.com/scoopcreamy/ninjapos/internal/sequence"
	"github.com/scoopcreamy/ninjapos/internal/settings"
	"github.com/scoopcreamy/ninjapos/internal/suggest"
	"github.com/scoopcreamy/ninjapos/internal/terminal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pos-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(":8080")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New("pos-service", cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
	}

	sqlDB, err := db.OpenDB(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()

	products := catalog.NewPostgresRepository(pool)
	customers := customer.NewPostgresRepository(pool)
	punches := punchcard.NewPostgresRepository(pool)
	orders := order.NewPostgresRepository(pool)
	store := settings.NewPostgresRepository(pool)

	// --- AMQP ---
	conn, err := events.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	publisher, err := events.NewPublisher(conn, sequence.NewRepository(sqlDB), events.PublisherOptions{
		Producer: "pos-service",
		Timeout:  cfg.PublishTimeout,
	})
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer publisher.Close()

	// --- domain ---
	pipeline := commit.NewPipeline(orders, customers, punches, products, publisher, logger)
	suggester := suggest.NewService(orders, products, cfg.SuggestionHistory, cfg.SuggestionLimit)
	terminals := terminal.NewService(terminal.NewRegistry(), products, store, customers, pipeline, suggester, logger)

	// --- HTTP ---
	h := httpapi.NewPOSHandler(terminals, products, store, customers, punches, orders, logger)
	r := httpapi.NewPOSRouter(h, httpapi.RouterOptions{Logger: logger, AllowOrigins: cfg.CORSAllowOrigins})

	return serve(ctx, cfg.HTTPAddr, r, logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		logger.Error("http server failed", zap.Error(serveErr))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return serveErr
}
