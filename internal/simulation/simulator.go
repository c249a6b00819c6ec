// Package simulation is a demo update source that applies random status
// transitions to the fleet on a timer. It is disabled by default
// (monitor.simulation.enabled) and knows nothing about change detection;
// it only calls Engine.UpdateDeviceStatus.
package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

// Logger is the logging surface used by the simulator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine is the subset of *device.Engine the simulator drives.
type Engine interface {
	GetAll() []device.DeviceState
	UpdateDeviceStatus(ctx context.Context, id string, u device.Update) (device.UpdateResult, error)
}

var (
	statuses = []device.Status{device.StatusOnline, device.StatusOffline, device.StatusMaintenance, device.StatusError}
	healths  = []device.HealthStatus{device.HealthOptimal, device.HealthWarning, device.HealthCritical}
)

// Options configures a Simulator.
type Options struct {
	Engine Engine

	// Interval between ticks. Default: 30 seconds.
	Interval time.Duration

	// Rand is the random source. Default: a time-seeded PCG.
	Rand *rand.Rand

	Logger Logger
}

// Simulator mutates a random unit on each tick.
type Simulator struct {
	engine   Engine
	interval time.Duration
	logger   Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a simulator. Call Start to begin ticking.
func New(opts Options) (*Simulator, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("simulation: engine is required")
	}

	s := &Simulator{
		engine:   opts.Engine,
		interval: opts.Interval,
		logger:   opts.Logger,
		rng:      opts.Rand,
		done:     make(chan struct{}),
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano()) //nolint:gosec // demo randomness
		s.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return s, nil
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (s *Simulator) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("simulation started", "interval", s.interval)
}

// Stop halts the loop and waits for it. Safe to call multiple times.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.logger.Info("simulation stopped")
	})
}

func (s *Simulator) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("simulation tick failed", "error", err)
			}
		}
	}
}

// Tick applies one random transition and returns the engine's result.
// With an empty fleet it does nothing.
func (s *Simulator) Tick(ctx context.Context) (device.UpdateResult, error) {
	fleet := s.engine.GetAll()
	if len(fleet) == 0 {
		return device.UpdateResult{Outcome: device.OutcomeNotFound}, nil
	}

	s.rngMu.Lock()
	target := fleet[s.rng.IntN(len(fleet))]
	u := s.transition(target)
	s.rngMu.Unlock()

	res, err := s.engine.UpdateDeviceStatus(ctx, target.ID, u)
	if err != nil {
		return res, fmt.Errorf("simulating %s: %w", target.ID, err)
	}
	s.logger.Debug("simulated update", "device_id", target.ID, "outcome", res.Outcome.String())
	return res, nil
}

// transition picks one field to change. Callers hold rngMu.
func (s *Simulator) transition(cur device.DeviceState) device.Update {
	switch s.rng.IntN(4) {
	case 0:
		return device.Update{}.WithStatus(pickOther(s.rng, statuses, cur.Status))
	case 1:
		return device.Update{}.WithAlert(!cur.HasAlert)
	case 2:
		return device.Update{}.WithAlarm(!cur.HasAlarm)
	default:
		return device.Update{}.WithHealth(pickOther(s.rng, healths, cur.HealthStatus))
	}
}

// pickOther returns a random element of options different from cur.
func pickOther[T comparable](rng *rand.Rand, options []T, cur T) T {
	candidates := make([]T, 0, len(options))
	for _, o := range options {
		if o != cur {
			candidates = append(candidates, o)
		}
	}
	return candidates[rng.IntN(len(candidates))]
}
