package monitor

import (
	"sync"

	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/model"
	"go.uber.org/zap"
)

// Monitor observes an external system (chat, code hosting) and emits an
// event for every occurrence it sees. Delivery is at least once; the
// core tolerates duplicates and never assumes exactly-once.
type Monitor interface {
	Name() string
	Start(emit func(event model.Event)) error
	Stop() error
}

// Manager owns the registered monitors and their lifecycle.
type Manager struct {
	emit func(event model.Event)

	mu       sync.Mutex
	monitors map[string]Monitor
	running  map[string]bool
}

func NewManager(emit func(event model.Event)) *Manager {
	return &Manager{
		emit:     emit,
		monitors: make(map[string]Monitor),
		running:  make(map[string]bool),
	}
}

func (m *Manager) Register(mon Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.monitors[mon.Name()]; exists {
		return model.NewConfigError("monitor %s already registered", mon.Name())
	}
	m.monitors[mon.Name()] = mon
	return nil
}

// StartAll starts every monitor. One monitor failing to start is
// reported but does not stop the others.
func (m *Manager) StartAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, mon := range m.monitors {
		if m.running[name] {
			continue
		}
		if err := mon.Start(m.emit); err != nil {
			logger.Error("failed to start monitor", zap.String("monitor", name), zap.Error(err))
			continue
		}
		m.running[name] = true
		logger.Info("monitor started", zap.String("monitor", name))
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, mon := range m.monitors {
		if !m.running[name] {
			continue
		}
		if err := mon.Stop(); err != nil {
			logger.Error("error stopping monitor", zap.String("monitor", name), zap.Error(err))
		}
		m.running[name] = false
	}
}

func (m *Manager) Running() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.monitors))
	for name := range m.monitors {
		out[name] = m.running[name]
	}
	return out
}
