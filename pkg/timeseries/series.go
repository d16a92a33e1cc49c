// Package timeseries implements the time-series manager and the
// reader/writer cursors that user code and filters interact with.
package timeseries

import (
	"sync"
	"time"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Observer is notified when a series is modified or deleted. Manager
// dispatches these calls while still holding the series' write lock, so
// observers never see an incoherent state.
type Observer interface {
	SeriesModified(name string)
	SeriesDeleted(name string)
}

// series is the manager's internal per-name state: a backend, its
// declared timestamp policy, and the set of registered observers. Its
// mutex is the "shared_mutex" of the design: read transactions take
// the read lock, write transactions take the write lock.
type series struct {
	mu        sync.RWMutex
	name      string
	backend   backend.Backend
	policy    message.TimestampType
	deleted   bool
	observers map[Observer]struct{}

	// notifyMu/notifyCh implement wait_modification independently of
	// the data lock: notifyCh is closed and replaced on every
	// modification, so a waiter holding a stale channel reference
	// observes the close immediately, with no missed-wakeup window.
	notifyMu sync.Mutex
	notifyCh chan struct{}
}

func newSeries(name string, b backend.Backend, policy message.TimestampType) *series {
	return &series{
		name:      name,
		backend:   b,
		policy:    policy,
		observers: make(map[Observer]struct{}),
		notifyCh:  make(chan struct{}),
	}
}

// notifyModified must be called while holding the write lock.
func (s *series) notifyModified() {
	for o := range s.observers {
		o.SeriesModified(s.name)
	}
	s.bumpGeneration()
}

// notifyDeleted must be called while holding the write lock.
func (s *series) notifyDeleted() {
	for o := range s.observers {
		o.SeriesDeleted(s.name)
	}
	s.bumpGeneration()
}

func (s *series) bumpGeneration() {
	s.notifyMu.Lock()
	old := s.notifyCh
	s.notifyCh = make(chan struct{})
	s.notifyMu.Unlock()
	close(old)
}

// watch returns the current notification channel; it closes the next
// time this series is modified or deleted.
func (s *series) watch() <-chan struct{} {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return s.notifyCh
}

// waitModification blocks until the series is next modified/deleted or
// timeout elapses, returning true iff a modification was observed.
func (s *series) waitModification(timeout time.Duration) bool {
	select {
	case <-s.watch():
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *series) registerObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[o] = struct{}{}
}

func (s *series) unregisterObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, o)
}
