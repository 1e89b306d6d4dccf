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
	"github.com/scoopcreamy/ninjapos/internal/config"
	"github.com/scoopcreamy/ninjapos/internal/db"
	"github.com/scoopcreamy/ninjapos/internal/events"
	httpapi "github.com/scoopcreamy/ninjapos/internal/http"
	"github.com/scoopcreamy/ninjapos/internal/kitchen"
	"github.com/scoopcreamy/ninjapos/internal/logging"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/sequence"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kitchen-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(":8081")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New("kitchen-service", cfg.LogLevel)
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

	orders := order.NewPostgresRepository(pool)
	products := catalog.NewPostgresRepository(pool)

	// --- AMQP ---
	conn, err := events.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	publisher, err := events.NewPublisher(conn, sequence.NewRepository(sqlDB), events.PublisherOptions{
		Producer: "kitchen-service",
		Timeout:  cfg.PublishTimeout,
	})
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer publisher.Close()

	// --- board ---
	service := kitchen.NewService(orders, products, publisher, cfg.BoardRecentWindow, logger)
	hub := kitchen.NewHub(service.Board, cfg.CORSAllowOrigins, logger)
	go hub.Run(ctx)

	watcher := kitchen.NewWatcher(service, hub, logger)
	stopConsumer, err := events.StartOrderChangeConsumer(ctx, conn, "kitchen-board", watcher.Handle, logger)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer stopConsumer()

	// --- HTTP ---
	h := httpapi.NewKitchenHandler(service, hub, logger)
	r := httpapi.NewKitchenRouter(h, httpapi.RouterOptions{Logger: logger, AllowOrigins: cfg.CORSAllowOrigins})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
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
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Info("shutdown complete")
	return serveErr
}
