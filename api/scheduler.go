/*
scheduler.go - Periodic expiry sweep

PURPOSE:
  Periodically checks for batches with stock left that expire within the
  alert horizon and logs one warning per batch, so short-dated stock shows
  up in the server log without anyone polling /api/stock/expiring.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: uses BatchLedger.ExpiryAlerts, never touches stock
  - Sweeps once immediately on Start

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the watcher is active (default: true)

USAGE:
  watcher := NewExpiryWatcher(handler.Batches, 7, logger)
  watcher.Start()
  // ... later
  watcher.Stop()

SEE ALSO:
  - handlers.go: GetExpiring endpoint (on-demand alerts)
  - inventory/ledger.go: ExpiryAlerts
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/stock-engine/inventory"
	"go.uber.org/zap"
)

// ExpiryWatcher logs expiry alerts on a fixed interval.
type ExpiryWatcher struct {
	Ledger        *inventory.BatchLedger
	HorizonDays   int
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpiryWatcher creates a new watcher.
func NewExpiryWatcher(ledger *inventory.BatchLedger, horizonDays int, logger *zap.Logger) *ExpiryWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryWatcher{
		Ledger:        ledger,
		HorizonDays:   horizonDays,
		CheckInterval: time.Hour,
		Enabled:       true,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the watcher.
func (ew *ExpiryWatcher) Start() {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if !ew.Enabled || ew.CheckInterval <= 0 {
		ew.Logger.Info("expiry watcher disabled")
		return
	}
	if ew.ticker != nil {
		return
	}

	ew.ticker = time.NewTicker(ew.CheckInterval)
	ew.wg.Add(1)

	go ew.run()

	ew.Logger.Info("expiry watcher started",
		zap.Duration("interval", ew.CheckInterval),
		zap.Int("horizon_days", ew.HorizonDays),
	)
}

// Stop stops the watcher and waits for a running sweep to finish.
func (ew *ExpiryWatcher) Stop() {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if ew.ticker != nil {
		ew.ticker.Stop()
		close(ew.stop)
		ew.wg.Wait()
		ew.ticker = nil
		ew.Logger.Info("expiry watcher stopped")
	}
}

func (ew *ExpiryWatcher) run() {
	defer ew.wg.Done()

	// Run immediately on start
	ew.Sweep(context.Background())

	for {
		select {
		case <-ew.ticker.C:
			ew.Sweep(context.Background())
		case <-ew.stop:
			return
		}
	}
}

// Sweep logs the current expiry alerts and returns them.
func (ew *ExpiryWatcher) Sweep(ctx context.Context) []inventory.ExpiryAlert {
	alerts, err := ew.Ledger.ExpiryAlerts(ctx, ew.HorizonDays)
	if err != nil {
		ew.Logger.Error("expiry sweep failed", zap.Error(err))
		return nil
	}

	for _, a := range alerts {
		ew.Logger.Warn("batch expiring",
			zap.String("product", a.ProductName),
			zap.String("batch_code", a.BatchCode),
			zap.Int("days_remaining", a.DaysRemaining),
			zap.Int64("quantity_remaining", a.QuantityRemaining),
		)
	}
	if len(alerts) > 0 {
		ew.Logger.Info("expiry sweep completed", zap.Int("alerts", len(alerts)))
	}
	return alerts
}
