package device

import (
	"fmt"
	"sync"
	"time"
)

// store holds the authoritative last-known state per device ID.
//
// Reads take the read lock and return deep copies. Writers are serialised
// by the Engine; the write lock here only protects readers from seeing a
// half-applied commit.
type store struct {
	mu          sync.RWMutex
	devices     map[string]*DeviceState
	order       []string // registration order
	initialized bool
}

func newStore() *store {
	return &store{
		devices: make(map[string]*DeviceState),
	}
}

// initialize populates the store from seeds. It returns false without
// touching state if the store was already initialised.
func (s *store) initialize(seeds []Seed, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return false, nil
	}

	seen := make(map[string]struct{}, len(seeds))
	for i, seed := range seeds {
		if seed.ID == "" {
			return false, fmt.Errorf("%w: seed %d has empty id", ErrInvalidSeed, i)
		}
		if _, dup := seen[seed.ID]; dup {
			return false, fmt.Errorf("%w: duplicate id %q", ErrInvalidSeed, seed.ID)
		}
		seen[seed.ID] = struct{}{}
	}

	s.devices = make(map[string]*DeviceState, len(seeds))
	s.order = make([]string, 0, len(seeds))
	for _, seed := range seeds {
		s.devices[seed.ID] = seed.state(now)
		s.order = append(s.order, seed.ID)
	}
	s.initialized = true
	return true, nil
}

func (s *store) isInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *store) get(id string) (DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return DeviceState{}, false
	}
	return *d.DeepCopy(), true
}

func (s *store) all() []DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DeviceState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.devices[id].DeepCopy())
	}
	return out
}

func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// apply merges u over the device's snapshot and commits the result.
// It returns copies of the prior and committed snapshots.
//
// A non-nil guard is evaluated against the current snapshot under the write
// lock; when it returns false nothing is committed and applied is false.
func (s *store) apply(id string, u Update, now time.Time, guard func(DeviceState) bool) (old, cur DeviceState, found, applied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return DeviceState{}, DeviceState{}, false, false
	}
	if guard != nil && !guard(*d) {
		return *d.DeepCopy(), *d.DeepCopy(), true, false
	}

	prev := d.DeepCopy()
	next := d.DeepCopy()
	u.applyTo(next)

	next.IsOnline = next.Status.IsOnline()
	next.LastSeen = now
	if next.Status != prev.Status {
		next.LastStatusChange = now
	}

	s.devices[id] = next
	return *prev, *next.DeepCopy(), true, true
}
