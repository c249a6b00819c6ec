package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Queue defaults.
const (
	DefaultQueueSize    = 256
	DefaultDrainTimeout = 5 * time.Second
)

// QueueOptions configures a QueuedListener.
type QueueOptions struct {
	// Name identifies the queue in logs and stats.
	Name string

	// Size bounds the number of pending events. Default: 256
	Size int

	// DrainTimeout bounds how long Stop waits for pending events.
	// Default: 5 seconds
	DrainTimeout time.Duration

	Logger Logger
}

// QueueStats counts what happened to events handed to a QueuedListener.
type QueueStats struct {
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

type queuedEvent struct {
	ctx   context.Context
	event StatusChangeEvent
}

// QueuedListener runs a listener that does network or disk I/O on its own
// goroutine. HandleStatusChange only enqueues, so the engine's dispatch
// never waits on the wrapped listener. Events are delivered one at a time
// in commit order. When the queue is full the event is dropped and counted.
type QueuedListener struct {
	next         Listener
	name         string
	logger       Logger
	drainTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEvent

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
}

// NewQueuedListener wraps next and starts its delivery goroutine.
// Call Stop to drain and release it.
func NewQueuedListener(next Listener, opts QueueOptions) (*QueuedListener, error) {
	if next == nil {
		return nil, ErrInvalidListener
	}
	if opts.Size <= 0 {
		opts.Size = DefaultQueueSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	q := &QueuedListener{
		next:         next,
		name:         opts.Name,
		logger:       opts.Logger,
		drainTimeout: opts.DrainTimeout,
		queue:        make(chan queuedEvent, opts.Size),
		done:         make(chan struct{}),
	}
	go q.run()
	return q, nil
}

// HandleStatusChange enqueues event without blocking. It satisfies Listener.
func (q *QueuedListener) HandleStatusChange(ctx context.Context, event StatusChangeEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}

	select {
	case q.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("listener queue full, event dropped",
			"queue", q.name,
			"device_id", event.DeviceID,
			"dropped", n,
		)
	}
	return nil
}

// Stop refuses further events and waits up to the drain timeout for the
// pending ones to be delivered. Safe to call multiple times.
func (q *QueuedListener) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.queue)
		q.mu.Unlock()

		select {
		case <-q.done:
		case <-time.After(q.drainTimeout):
			q.logger.Warn("listener queue not drained before timeout",
				"queue", q.name,
				"pending", len(q.queue),
			)
		}
	})
}

// Stats returns the queue's counters.
func (q *QueuedListener) Stats() QueueStats {
	return QueueStats{
		Name:      q.name,
		Pending:   len(q.queue),
		Delivered: q.delivered.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
	}
}

func (q *QueuedListener) run() {
	defer close(q.done)
	for item := range q.queue {
		if err := q.deliver(item); err != nil {
			q.failed.Add(1)
			q.logger.Error("queued listener failed",
				"queue", q.name,
				"device_id", item.event.DeviceID,
				"error", err,
			)
			continue
		}
		q.delivered.Add(1)
	}
}

func (q *QueuedListener) deliver(item queuedEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panic: %v", p)
		}
	}()
	return q.next.HandleStatusChange(item.ctx, item.event)
}
