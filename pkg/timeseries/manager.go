package timeseries

import (
	"fmt"
	"log"
	"sync"

	"github.com/abrandao/iotseries/pkg/ierrors"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
)

// Factory materializes backends for declared and auto-created series.
// CreateAuto returns ok=false if no auto-creation policy is configured
// for the given name, matching the manager's "fails otherwise" contract
// for open_cursor on an unknown series.
type Factory interface {
	CreateManual(name string) (backend.Backend, error)
	CreateAuto(name string) (b backend.Backend, policy message.TimestampType, ok bool, err error)
}

// Manager names, creates, destroys, and locks series, and dispatches
// modification/deletion events to registered observers.
type Manager struct {
	mu      sync.Mutex
	content map[string]*series
	factory Factory
}

// NewManager builds an empty Manager around the given Factory.
func NewManager(factory Factory) *Manager {
	return &Manager{
		content: make(map[string]*series),
		factory: factory,
	}
}

// Create declares a new series manually. Errors (Fatal, per §7) if the
// name already exists.
func (m *Manager) Create(name string, policy message.TimestampType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.content[name]; exists {
		return ierrors.New(ierrors.Fatal, fmt.Sprintf("cannot create twice the same time series: %s", name))
	}

	b, err := m.factory.CreateManual(name)
	if err != nil {
		return ierrors.Wrap(ierrors.Fatal, fmt.Sprintf("factory cannot construct series %s", name), err)
	}

	log.Printf("time series created: %s", name)
	m.content[name] = newSeries(name, b, policy)
	return nil
}

// Delete notifies observers of series_deleted, drops the backend, and
// removes the series from the manager. Held cursors transition to an
// empty read-only state.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.content[name]
	if !ok {
		return ierrors.New(ierrors.NotFound, fmt.Sprintf("unknown time series: %s", name))
	}

	s.mu.Lock()
	s.deleted = true
	b := s.backend
	s.backend = nil
	s.notifyDeleted()
	s.mu.Unlock()

	if b != nil {
		if err := b.Close(); err != nil {
			log.Printf("error closing backend for deleted series %s: %v", name, err)
		}
	}

	delete(m.content, name)
	log.Printf("time series deleted: %s", name)
	return nil
}

// List returns the names of every currently declared series.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.content))
	for name := range m.content {
		names = append(names, name)
	}
	return names
}

// RegisterObserver subscribes o to name's modification/deletion events.
// A reference to an already-deleted series is silently ignored, as
// deletion has already fired its notification.
func (m *Manager) RegisterObserver(name string, o Observer) {
	m.mu.Lock()
	s, ok := m.content[name]
	m.mu.Unlock()
	if ok {
		s.registerObserver(o)
	}
}

// UnregisterObserver removes a previously registered observer.
func (m *Manager) UnregisterObserver(name string, o Observer) {
	m.mu.Lock()
	s, ok := m.content[name]
	m.mu.Unlock()
	if ok {
		s.unregisterObserver(o)
	}
}

// getOrAutoCreate resolves name to its series, auto-creating it via the
// factory if it is not yet declared and an auto-creation policy exists.
func (m *Manager) getOrAutoCreate(name string) (*series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.content[name]; ok {
		return s, nil
	}

	b, policy, ok, err := m.factory.CreateAuto(name)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Fatal, fmt.Sprintf("auto-creation of series %s failed", name), err)
	}
	if !ok {
		return nil, ierrors.New(ierrors.NotFound, fmt.Sprintf("unknown time series: %s", name))
	}

	log.Printf("auto-creation of time series: %s", name)
	s := newSeries(name, b, policy)
	m.content[name] = s
	return s, nil
}

// OpenReader opens a Reader cursor onto name, auto-creating the series
// if configured to do so. blocking selects whether WaitModification
// truly blocks on the series' notification channel or degrades to a
// plain sleep.
func (m *Manager) OpenReader(name string, blocking bool) (*Reader, error) {
	s, err := m.getOrAutoCreate(name)
	if err != nil {
		return nil, err
	}
	return &Reader{series: s, blocking: blocking}, nil
}

// OpenWriter opens a Writer cursor onto name, auto-creating the series
// if configured to do so.
func (m *Manager) OpenWriter(name string) (*Writer, error) {
	s, err := m.getOrAutoCreate(name)
	if err != nil {
		return nil, err
	}
	return &Writer{series: s}, nil
}
