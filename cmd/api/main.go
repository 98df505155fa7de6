package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/custodia-io/custodia/internal/adapter"
	"github.com/custodia-io/custodia/internal/api/middleware"
	"github.com/custodia-io/custodia/internal/api/rest"
	"github.com/custodia-io/custodia/internal/api/server"
	"github.com/custodia-io/custodia/internal/checkpoint"
	"github.com/custodia-io/custodia/internal/config"
	"github.com/custodia-io/custodia/internal/logger"
	"github.com/custodia-io/custodia/internal/qrcrypto"
	"github.com/custodia-io/custodia/internal/store"
	"github.com/custodia-io/custodia/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Custodia checkpoint API")

	// The codec rejects a wrong-sized key outright; a service with a broken
	// key must not come up at all
	codec, err := qrcrypto.NewCodec([]byte(cfg.Crypto.QRKey))
	if err != nil {
		logger.FatalCtx(ctx, "Failed to initialize QR codec", zap.Error(err))
	}

	// Connect to database, retrying while it comes up
	db, err := openDatabase(ctx, cfg.Database.DSN())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Run migrations
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to run migrations", zap.Error(err))
	}

	// Initialize store and adapters
	dataStore := store.NewGormStore(db)
	clock := adapter.NewClock()
	tokens := adapter.NewTokenSource()

	// Assemble the checkpoint services
	orchestrator := checkpoint.NewOrchestrator(dataStore, clock)
	registrar := checkpoint.NewRegistrar(dataStore, codec, tokens, clock, cfg.Token.TTL)
	detector := sweeper.NewAnomalyDetector(sweeper.AnomalyDetectorConfig{
		Threshold:      cfg.Anomaly.Threshold,
		WorkerPoolSize: cfg.Anomaly.WorkerPoolSize,
		OperatorID:     cfg.Anomaly.OperatorID,
	}, dataStore, clock)

	handler := rest.NewHandler(orchestrator, registrar, detector, dataStore, cfg.Anomaly.OperatorID)

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, handler)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}

// openDatabase connects to postgres with exponential backoff so restarts
// during a database failover recover on their own. TranslateError is required
// for unique violations to surface as gorm.ErrDuplicatedKey.
func openDatabase(ctx context.Context, dsn string) (*gorm.DB, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.RetryWithData(func() (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			logger.Warn("Database not ready, retrying", zap.Error(err))
			return nil, err
		}
		return db, nil
	}, policy)
}
