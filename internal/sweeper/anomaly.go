package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/custodia-io/custodia/internal/adapter"
	"github.com/custodia-io/custodia/internal/logger"
	"github.com/custodia-io/custodia/internal/store"
)

// DefaultOverstayThreshold is how long a custody session may stay open
// before it is flagged
const DefaultOverstayThreshold = 8 * time.Hour

// AnomalyDetectorConfig holds configuration for the anomaly detector
type AnomalyDetectorConfig struct {
	Threshold      time.Duration // Sessions open longer than this get flagged
	Interval       time.Duration // Time to sleep between sweep cycles
	WorkerPoolSize int           // Concurrent session checks per cycle
	OperatorID     int64         // Administrative account flags are attributed to
}

// SweepReport summarizes one sweep over the open sessions
type SweepReport struct {
	RunID   string
	Scanned int
	Flagged int
	Errors  []error
}

// AnomalyDetector sweeps open custody sessions and flags the ones that have
// overstayed the threshold. It never closes or mutates a session; it only
// records anomaly rows, at most one unresolved per session.
type AnomalyDetector struct {
	config AnomalyDetectorConfig
	store  store.Store
	clock  adapter.Clock

	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewAnomalyDetector creates a new anomaly detector
func NewAnomalyDetector(config AnomalyDetectorConfig, st store.Store, clock adapter.Clock) *AnomalyDetector {
	if config.Threshold <= 0 {
		config.Threshold = DefaultOverstayThreshold
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}
	return &AnomalyDetector{
		config:    config,
		store:     st,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (d *AnomalyDetector) Name() string {
	return "anomaly-detector"
}

// Sweep runs a single pass over all open sessions. Individual insert
// failures are collected into the report and do not abort the sweep of the
// remaining sessions.
func (d *AnomalyDetector) Sweep(ctx context.Context, operatorID int64) (*SweepReport, error) {
	report := &SweepReport{RunID: ulid.Make().String()}

	sessions, err := d.store.ListOpenSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	report.Scanned = len(sessions)

	pool := pond.NewPool(d.config.WorkerPoolSize, pond.WithContext(ctx))

	var flagged atomic.Int32
	var mu sync.Mutex
	appendErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Errors = append(report.Errors, err)
	}

	now := d.clock.Now()
	for _, session := range sessions {
		pool.Submit(func() {
			elapsed := now.Sub(session.OpenedAt())
			if elapsed <= d.config.Threshold {
				return
			}

			exists, err := d.store.HasUnresolvedAnomaly(ctx, session.ID)
			if err != nil {
				appendErr(fmt.Errorf("session %d: %w", session.ID, err))
				return
			}
			if exists {
				return
			}

			_, err = d.store.CreateAnomaly(ctx, store.AnomalyInput{
				SessionID: session.ID,
				Description: fmt.Sprintf(
					"Equipo %d con ingreso abierto por %.1f horas (umbral %.0f horas), sesión %d sin salida registrada",
					session.EquipmentID, elapsed.Hours(), d.config.Threshold.Hours(), session.ID),
				ManagerID: operatorID,
				CreatedAt: now,
			})
			if err != nil {
				appendErr(fmt.Errorf("session %d: %w", session.ID, err))
				return
			}
			flagged.Add(1)

			logger.WarnCtx(ctx, "Flagged overstayed custody session",
				zap.String("run_id", report.RunID),
				zap.Int64("session_id", session.ID),
				zap.Int64("equipment_id", session.EquipmentID),
				zap.Float64("elapsed_hours", elapsed.Hours()),
			)
		})
	}

	pool.StopAndWait()
	report.Flagged = int(flagged.Load())

	logger.InfoCtx(ctx, "Anomaly sweep finished",
		zap.String("run_id", report.RunID),
		zap.Int("scanned", report.Scanned),
		zap.Int("flagged", report.Flagged),
		zap.Int("errors", len(report.Errors)),
	)

	return report, nil
}

// Start begins the detector's main loop, sweeping every configured interval
// until the context is canceled or Stop is called
func (d *AnomalyDetector) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		d.running.Store(false)
		close(d.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting anomaly detector",
		zap.Duration("threshold", d.config.Threshold),
		zap.Duration("interval", d.config.Interval),
		zap.Int("worker_pool_size", d.config.WorkerPoolSize),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Anomaly detector stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-d.stopChan:
			logger.InfoCtx(ctx, "Anomaly detector stop requested")
			return nil
		default:
			if _, err := d.Sweep(ctx, d.config.OperatorID); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
			if !d.sleep(ctx, d.config.Interval) {
				return nil
			}
		}
	}
}

// Stop gracefully stops the detector with timeout support
func (d *AnomalyDetector) Stop(ctx context.Context) error {
	if !d.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	close(d.stopChan)

	select {
	case <-d.stoppedCh:
		logger.InfoCtx(ctx, "Anomaly detector stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Anomaly detector stop interrupted by context timeout")
		return ctx.Err()
	}
}

// sleep waits for the interval, returning false if interrupted by shutdown
func (d *AnomalyDetector) sleep(ctx context.Context, interval time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-d.stopChan:
		return false
	case <-d.clock.After(interval):
		return true
	}
}
