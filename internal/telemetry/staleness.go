package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

// StateSource lists units and applies the conditional offline update.
// *device.Engine satisfies it.
type StateSource interface {
	GetAll() []device.DeviceState
	MarkOfflineIfStale(ctx context.Context, id string, cutoff time.Time) (device.UpdateResult, error)
}

// StalenessMonitor marks units offline when their last_seen is older than
// the threshold. The offline policy lives here, not in the engine.
type StalenessMonitor struct {
	engine    StateSource
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	logger    Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// StalenessOptions configures a StalenessMonitor.
type StalenessOptions struct {
	Engine StateSource

	// Interval between checks. Default: 30 seconds.
	Interval time.Duration

	// Threshold after which a silent unit is considered offline.
	// Default: 60 seconds.
	Threshold time.Duration

	// Now overrides the clock (tests).
	Now func() time.Time

	Logger Logger
}

// NewStalenessMonitor creates a monitor. Call Start to begin checking.
func NewStalenessMonitor(opts StalenessOptions) (*StalenessMonitor, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("telemetry: engine is required")
	}

	m := &StalenessMonitor{
		engine:    opts.Engine,
		interval:  opts.Interval,
		threshold: opts.Threshold,
		now:       opts.Now,
		logger:    opts.Logger,
		done:      make(chan struct{}),
	}
	if m.interval <= 0 {
		m.interval = 30 * time.Second
	}
	if m.threshold <= 0 {
		m.threshold = 60 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	return m, nil
}

// Start begins periodic checks until ctx is cancelled or Stop is called.
func (m *StalenessMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the check loop and waits for it to exit.
// Safe to call multiple times.
func (m *StalenessMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}

func (m *StalenessMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check marks every stale, not-yet-offline unit as offline and returns how
// many were marked. The listing only selects candidates; staleness is
// re-checked by the engine when each update commits.
func (m *StalenessMonitor) Check(ctx context.Context) int {
	cutoff := m.now().Add(-m.threshold)

	marked := 0
	for _, d := range m.engine.GetAll() {
		if d.Status == device.StatusOffline || !d.LastSeen.Before(cutoff) {
			continue
		}

		res, err := m.engine.MarkOfflineIfStale(ctx, d.ID, cutoff)
		if err != nil {
			m.logger.Error("marking stale device offline failed", "device_id", d.ID, "error", err)
			continue
		}
		if res.Outcome == device.OutcomeUpdated {
			marked++
			m.logger.Warn("device went silent, marked offline",
				"device_id", d.ID,
				"last_seen", d.LastSeen,
				"threshold", m.threshold)
		}
	}
	return marked
}
