package device

import (
	"context"
	"fmt"
	"sync"
)

// Listener receives status change events from the Engine.
//
// HandleStatusChange is called synchronously on the updating goroutine, in
// registration order. It must not call Engine.UpdateDeviceStatus or
// Engine.Initialize on the same Engine; hand the work to another goroutine
// instead. Returned errors and panics are logged and do not affect other
// listeners.
type Listener interface {
	HandleStatusChange(ctx context.Context, event StatusChangeEvent) error
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(ctx context.Context, event StatusChangeEvent) error

// HandleStatusChange calls f(ctx, event).
func (f ListenerFunc) HandleStatusChange(ctx context.Context, event StatusChangeEvent) error {
	return f(ctx, event)
}

// subscription is the registry's handle for one Subscribe call. Identity is
// the handle itself, so the same Listener may be registered twice and
// removed independently.
type subscription struct {
	listener Listener
}

// subscribers holds registered listeners and fans events out to them.
type subscribers struct {
	mu     sync.Mutex
	subs   []*subscription
	logger Logger
}

func newSubscribers(logger Logger) *subscribers {
	return &subscribers{logger: logger}
}

// add registers l and returns an idempotent function that removes it.
// A nil listener returns ErrInvalidListener and an inert remover.
func (r *subscribers) add(l Listener) (func(), error) {
	if l == nil {
		return func() {}, ErrInvalidListener
	}
	if f, ok := l.(ListenerFunc); ok && f == nil {
		return func() {}, ErrInvalidListener
	}

	sub := &subscription{listener: l}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(sub) })
	}, nil
}

func (r *subscribers) remove(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s == sub {
			// Copy rather than shift in place: dispatch may hold the old slice.
			next := make([]*subscription, 0, len(r.subs)-1)
			next = append(next, r.subs[:i]...)
			r.subs = append(next, r.subs[i+1:]...)
			return
		}
	}
}

func (r *subscribers) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// snapshot returns the listeners registered right now.
func (r *subscribers) snapshot() []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*subscription, len(r.subs))
	copy(out, r.subs)
	return out
}

// dispatch delivers event to every listener registered when dispatch
// started. Listeners added during dispatch do not see this event; listeners
// removed during dispatch still do.
func (r *subscribers) dispatch(ctx context.Context, event *StatusChangeEvent) {
	for _, sub := range r.snapshot() {
		if err := r.deliver(ctx, sub.listener, event); err != nil {
			r.logger.Error("status change listener failed",
				"device_id", event.DeviceID,
				"error", err,
			)
		}
	}
}

// deliver calls one listener with its own copy of the event, converting a
// panic into an error.
func (r *subscribers) deliver(ctx context.Context, l Listener, event *StatusChangeEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panic: %v", p)
		}
	}()
	return l.HandleStatusChange(ctx, *event.DeepCopy())
}
