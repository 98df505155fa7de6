package sweeper_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-io/custodia/internal/store"
	"github.com/custodia-io/custodia/internal/store/schema"
	"github.com/custodia-io/custodia/internal/sweeper"
)

var sweepNow = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time                         { return c.now }
func (c *fakeClock) Since(t time.Time) time.Duration        { return c.now.Sub(t) }
func (c *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(time.Millisecond) }

// sweepStore fakes just the store surface the detector touches; the embedded
// interface panics on anything else
type sweepStore struct {
	store.Store

	mu         sync.Mutex
	sessions   []*schema.CustodySession
	unresolved map[int64]bool
	created    []store.AnomalyInput
	listErr    error
	createErr  map[int64]error
}

func newSweepStore() *sweepStore {
	return &sweepStore{
		unresolved: make(map[int64]bool),
		createErr:  make(map[int64]error),
	}
}

func (f *sweepStore) ListOpenSessions(ctx context.Context) ([]*schema.CustodySession, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sessions, nil
}

func (f *sweepStore) HasUnresolvedAnomaly(ctx context.Context, sessionID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unresolved[sessionID], nil
}

func (f *sweepStore) CreateAnomaly(ctx context.Context, input store.AnomalyInput) (*schema.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[input.SessionID]; err != nil {
		return nil, err
	}
	f.created = append(f.created, input)
	f.unresolved[input.SessionID] = true
	return &schema.Anomaly{
		ID:          int64(len(f.created)),
		SessionID:   input.SessionID,
		Description: input.Description,
		ManagerID:   input.ManagerID,
		CreatedAt:   input.CreatedAt,
	}, nil
}

// openSession builds a session opened the given duration before sweepNow
func openSession(id, equipmentID int64, age time.Duration) *schema.CustodySession {
	openedAt := sweepNow.Add(-age)
	return &schema.CustodySession{
		ID:          id,
		EquipmentID: equipmentID,
		HolderID:    1,
		EntryDate:   time.Date(openedAt.Year(), openedAt.Month(), openedAt.Day(), 0, 0, 0, 0, time.UTC),
		EntryTime:   openedAt.Format(schema.TimeOfDayLayout),
		OperatorID:  1,
	}
}

func newDetector(st store.Store, threshold time.Duration) *sweeper.AnomalyDetector {
	return sweeper.NewAnomalyDetector(sweeper.AnomalyDetectorConfig{
		Threshold:      threshold,
		Interval:       time.Minute,
		WorkerPoolSize: 4,
		OperatorID:     50,
	}, st, &fakeClock{now: sweepNow})
}

func TestSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("flags sessions past the threshold only", func(t *testing.T) {
		st := newSweepStore()
		st.sessions = []*schema.CustodySession{
			openSession(1, 10, 9*time.Hour),  // overdue
			openSession(2, 20, 7*time.Hour),  // within threshold
			openSession(3, 30, 8*time.Hour),  // exactly at threshold, not over
			openSession(4, 40, 30*time.Hour), // very overdue
		}

		report, err := newDetector(st, 8*time.Hour).Sweep(ctx, 50)
		require.NoError(t, err)

		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, 4, report.Scanned)
		assert.Equal(t, 2, report.Flagged)
		assert.Empty(t, report.Errors)

		flagged := make(map[int64]store.AnomalyInput)
		for _, input := range st.created {
			flagged[input.SessionID] = input
		}
		require.Contains(t, flagged, int64(1))
		require.Contains(t, flagged, int64(4))
		assert.Equal(t, int64(50), flagged[1].ManagerID)
		assert.Contains(t, flagged[1].Description, "Equipo 10")
		assert.Contains(t, flagged[1].Description, "9.0 horas")
	})

	t.Run("never flags a session twice", func(t *testing.T) {
		st := newSweepStore()
		st.sessions = []*schema.CustodySession{openSession(1, 10, 9*time.Hour)}
		st.unresolved[1] = true

		report, err := newDetector(st, 8*time.Hour).Sweep(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Flagged)
		assert.Empty(t, st.created)
	})

	t.Run("a second sweep is a no-op after the first flagged", func(t *testing.T) {
		st := newSweepStore()
		st.sessions = []*schema.CustodySession{openSession(1, 10, 9*time.Hour)}
		detector := newDetector(st, 8*time.Hour)

		first, err := detector.Sweep(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Flagged)

		second, err := detector.Sweep(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Flagged)
		assert.Len(t, st.created, 1)
	})

	t.Run("insert failures are collected without aborting the sweep", func(t *testing.T) {
		st := newSweepStore()
		st.sessions = []*schema.CustodySession{
			openSession(1, 10, 9*time.Hour),
			openSession(2, 20, 9*time.Hour),
		}
		st.createErr[1] = fmt.Errorf("disk full")

		report, err := newDetector(st, 8*time.Hour).Sweep(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Flagged)
		require.Len(t, report.Errors, 1)
		assert.ErrorContains(t, report.Errors[0], "disk full")
	})

	t.Run("listing failure aborts the sweep", func(t *testing.T) {
		st := newSweepStore()
		st.listErr = fmt.Errorf("connection refused")

		_, err := newDetector(st, 8*time.Hour).Sweep(ctx, 50)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("empty sweep reports zero activity", func(t *testing.T) {
		st := newSweepStore()
		report, err := newDetector(st, 8*time.Hour).Sweep(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Scanned)
		assert.Equal(t, 0, report.Flagged)
	})
}

func TestStartStop(t *testing.T) {
	t.Run("stop interrupts the loop", func(t *testing.T) {
		st := newSweepStore()
		detector := newDetector(st, 8*time.Hour)

		ctx := context.Background()
		done := make(chan error, 1)
		go func() {
			done <- detector.Start(ctx)
		}()

		time.Sleep(20 * time.Millisecond)

		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		require.NoError(t, detector.Stop(stopCtx))

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("detector did not stop")
		}
	})

	t.Run("context cancellation stops the loop", func(t *testing.T) {
		st := newSweepStore()
		detector := newDetector(st, 8*time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- detector.Start(ctx)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("detector did not stop")
		}
	})
}
