package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/collisionworks/partspipe/internal/errorreport"
	"go.uber.org/zap"
)

// ReportJanitor periodically prunes resolved error reports from the
// in-memory store so long-running deployments do not accumulate
// reports without bound. Unresolved reports are never touched.
type ReportJanitor struct {
	store  *errorreport.Store
	logger *zap.Logger

	// Configuration
	sweepInterval time.Duration // How often to sweep (default: 1 hour)
	retention     time.Duration // How long resolved reports are kept (default: 24 hours)

	// State
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewReportJanitor creates a new report janitor
func NewReportJanitor(store *errorreport.Store, logger *zap.Logger) *ReportJanitor {
	return &ReportJanitor{
		store:         store,
		logger:        logger,
		sweepInterval: time.Hour,
		retention:     24 * time.Hour,
	}
}

// WithSchedule overrides the sweep interval and retention window.
// Values must be positive; non-positive values keep the defaults.
func (j *ReportJanitor) WithSchedule(interval, retention time.Duration) *ReportJanitor {
	if interval > 0 {
		j.sweepInterval = interval
	}
	if retention > 0 {
		j.retention = retention
	}
	return j
}

// Start starts the janitor worker
func (j *ReportJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		return fmt.Errorf("report janitor is already running")
	}

	j.ctx, j.cancel = context.WithCancel(ctx)
	j.isRunning = true

	j.logger.Info("ReportJanitor started",
		zap.Duration("sweep_interval", j.sweepInterval),
		zap.Duration("retention", j.retention))

	go j.sweepLoop()

	return nil
}

// Stop stops the janitor worker
func (j *ReportJanitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.isRunning {
		return
	}

	j.isRunning = false
	if j.cancel != nil {
		j.cancel()
	}

	j.logger.Info("ReportJanitor stopped")
}

// Name returns the worker name for identification
func (j *ReportJanitor) Name() string {
	return "ReportJanitor"
}

// sweepLoop runs the periodic sweep
func (j *ReportJanitor) sweepLoop() {
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			j.logger.Debug("Sweep loop context cancelled")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep removes resolved reports older than the retention window
func (j *ReportJanitor) sweep() {
	cutoff := time.Now().Add(-j.retention)
	removed := j.store.Prune(cutoff)
	if removed > 0 {
		j.logger.Info("Pruned resolved error reports",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff))
	}
}
