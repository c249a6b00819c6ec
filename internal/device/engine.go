package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxHistorySize bounds the change ledger. Non-positive values keep
// the default of 1000.
func WithMaxHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.history = NewHistory(n)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStrictUnknownDevices makes UpdateDeviceStatus return ErrDeviceNotFound
// for unregistered IDs instead of only reporting OutcomeNotFound.
func WithStrictUnknownDevices(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// Engine tracks the last-known state of every unit, detects significant
// transitions, keeps a bounded history of them and fans them out to
// listeners.
//
// Mutations (Initialize, UpdateDeviceStatus) are serialised: the diff,
// commit, history append and listener dispatch of one update finish before
// the next update is diffed. Reads run concurrently and return copies.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Engine struct {
	updateMu sync.Mutex // serialises Initialize and UpdateDeviceStatus

	store       *store
	history     *History
	subscribers *subscribers

	logger Logger
	now    func() time.Time
	strict bool
}

// NewEngine creates an empty engine. Call Initialize before sending updates.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		store:   newStore(),
		history: NewHistory(DefaultMaxHistorySize),
		logger:  noopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.subscribers = newSubscribers(e.logger)
	return e
}

// Initialize loads the initial fleet snapshot.
//
// It is idempotent: once the engine holds a snapshot further calls do
// nothing and return nil. Seeds must have unique, non-empty IDs; otherwise
// ErrInvalidSeed is returned and nothing is loaded.
func (e *Engine) Initialize(seeds []Seed) error {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	loaded, err := e.store.initialize(seeds, e.timestamp())
	if err != nil {
		return fmt.Errorf("initializing devices: %w", err)
	}
	if !loaded {
		e.logger.Debug("device engine already initialized, ignoring seed")
		return nil
	}

	e.logger.Info("device engine initialized", "devices", len(seeds))
	return nil
}

// Initialized reports whether Initialize has loaded a snapshot.
func (e *Engine) Initialized() bool {
	return e.store.isInitialized()
}

// UpdateDeviceStatus merges u into the unit's snapshot.
//
// The merged snapshot is always committed and LastSeen refreshed. If the
// detector finds significant changes, an event is appended to the history,
// delivered to every listener, and returned with OutcomeUpdated. Otherwise
// the outcome is OutcomeUnchanged.
//
// Unknown IDs yield OutcomeNotFound, with ErrDeviceNotFound in strict mode.
func (e *Engine) UpdateDeviceStatus(ctx context.Context, id string, u Update) (UpdateResult, error) {
	return e.update(ctx, id, u, nil)
}

// MarkOfflineIfStale sets the unit offline when, at commit time, it is not
// already offline and was last seen before cutoff. The check and the update
// run under the same lock, so a report committed after the caller listed the
// fleet wins. A unit that fails the check is left untouched and the outcome
// is OutcomeUnchanged.
func (e *Engine) MarkOfflineIfStale(ctx context.Context, id string, cutoff time.Time) (UpdateResult, error) {
	return e.update(ctx, id, Update{}.WithStatus(StatusOffline), func(d DeviceState) bool {
		return d.Status != StatusOffline && d.LastSeen.Before(cutoff)
	})
}

func (e *Engine) update(ctx context.Context, id string, u Update, guard func(DeviceState) bool) (UpdateResult, error) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	now := e.timestamp()
	old, cur, found, applied := e.store.apply(id, u, now, guard)
	if !found {
		if e.strict {
			return UpdateResult{Outcome: OutcomeNotFound}, fmt.Errorf("updating %q: %w", id, ErrDeviceNotFound)
		}
		e.logger.Debug("update for unknown device ignored", "device_id", id)
		return UpdateResult{Outcome: OutcomeNotFound}, nil
	}
	if !applied {
		return UpdateResult{Outcome: OutcomeUnchanged}, nil
	}

	changes := Detect(old, cur)
	if len(changes) == 0 {
		return UpdateResult{Outcome: OutcomeUnchanged}, nil
	}

	event := &StatusChangeEvent{
		DeviceID:   cur.ID,
		DeviceName: cur.Name,
		Timestamp:  now,
		Changes:    changes,
		OldStatus:  old,
		NewStatus:  cur,
	}

	e.history.Append(event)
	e.logger.Info("device status changed",
		"device_id", cur.ID,
		"changes", len(changes),
		"status", string(cur.Status),
	)
	e.subscribers.dispatch(ctx, event)

	return UpdateResult{Outcome: OutcomeUpdated, Event: event.DeepCopy()}, nil
}

// Get returns a copy of the unit's state.
func (e *Engine) Get(id string) (DeviceState, bool) {
	return e.store.get(id)
}

// GetAll returns copies of every unit's state in registration order.
func (e *Engine) GetAll() []DeviceState {
	return e.store.all()
}

// Count returns the number of registered units.
func (e *Engine) Count() int {
	return e.store.len()
}

// Recent returns up to limit history events, newest first.
//
// A limit of zero or less stands for an omitted limit and selects
// DefaultRecentLimit (50).
func (e *Engine) Recent(limit int) []StatusChangeEvent {
	return e.history.Recent(limit)
}

// HistoryLen returns the number of retained history events.
func (e *Engine) HistoryLen() int {
	return e.history.Len()
}

// SetMaxHistorySize changes the history bound, trimming immediately.
func (e *Engine) SetMaxHistorySize(n int) {
	e.history.SetMaxSize(n)
}

// Notifications projects the windowSize most recent events into the
// notification feed for role. A non-positive window uses the default of 20.
func (e *Engine) Notifications(role string, windowSize int) []Notification {
	if windowSize <= 0 {
		windowSize = DefaultNotificationWindow
	}
	return Project(e.history.Recent(windowSize), role)
}

// Subscribe registers l for every future status change event.
//
// The returned function removes the registration and may be called any
// number of times. A nil listener returns ErrInvalidListener with a
// function that does nothing.
func (e *Engine) Subscribe(l Listener) (func(), error) {
	return e.subscribers.add(l)
}

// SubscriberCount returns the number of registered listeners.
func (e *Engine) SubscriberCount() int {
	return e.subscribers.count()
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}
