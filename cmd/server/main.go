/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the stock engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), then apply flags
  2. Build the zap logger
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the expiry watcher
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT, default 8080)
  -db      SQLite database path (overrides DATABASE_PATH, default stock.db)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_ENV, HTTP_PORT, DATABASE_PATH, CORS_ALLOWED_ORIGINS,
  LOGGER_LEVEL, LOGGER_ENCODING, LOGGER_DISABLE_CALLER, LOGGER_DISABLE_STACKTRACE,
  EXPIRY_ALERT_DAYS, EXPIRY_CHECK_INTERVAL_MINUTES, REPORT_CURRENCY, SLOW_MOVING_WINDOW_DAYS

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the expiry watcher
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/stock.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/stock-engine/api"
	"github.com/warp/stock-engine/config"
	"github.com/warp/stock-engine/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	// Flags
	port := flag.Int("port", cfg.Server.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", *dbPath), zap.Error(err))
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		ExpiryAlertDays:  cfg.Inventory.ExpiryAlertDays,
		Currency:         cfg.Report.Currency,
		SlowMovingWindow: time.Duration(cfg.Report.SlowMovingWindowDays) * 24 * time.Hour,
		Logger:           logger,
	})

	// Start expiry watcher
	watcher := api.NewExpiryWatcher(handler.Batches, cfg.Inventory.ExpiryAlertDays, logger)
	watcher.CheckInterval = time.Duration(cfg.Inventory.ExpiryCheckMinutes) * time.Minute
	watcher.Start()
	defer watcher.Stop()

	// Create router
	router := api.NewRouter(handler, cfg.Server.CORSAllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.String("env", cfg.Server.AppEnv),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}
