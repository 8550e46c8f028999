package display

import (
	"io"
	"log/slog"
	"sort"
)

// ModeSwitch toggles the host's high-precision change tracking.
type ModeSwitch interface {
	EnableAccurateMode()
	DisableAccurateMode()
}

// Source is a host display backend: a Query plus the accurate-mode switch.
type Source interface {
	Query
	ModeSwitch
}

// Manager owns the per-display states of a process and the accurate-mode
// reference count. One Manager is expected per process.
//
// A Manager is not safe for concurrent use; callers confine it to one
// goroutine.
type Manager struct {
	source   Source
	logger   *slog.Logger
	displays map[int]*State
	accurate int
}

// NewManager creates a manager backed by source. logger may be nil.
func NewManager(source Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		source:   source,
		logger:   logger,
		displays: make(map[int]*State),
	}
}

// Get returns the cached state for id, creating and populating it from the
// manager's source on first use.
func (m *Manager) Get(id int) *State {
	if st, ok := m.displays[id]; ok {
		return st
	}
	return m.Refresh(id, m.source)
}

// Lookup returns the cached state for id without creating it.
func (m *Manager) Lookup(id int) (*State, bool) {
	st, ok := m.displays[id]
	return st, ok
}

// Refresh re-reads display id from q, creating its state if needed.
func (m *Manager) Refresh(id int, q Query) *State {
	st, ok := m.displays[id]
	if !ok {
		st = newState(id)
		m.displays[id] = st
	}
	before := st.rotation
	if st.Update(q) && ok {
		m.logger.Info("display rotation changed",
			"display", id,
			"from", before,
			"to", st.rotation,
			"observers", st.observers.len())
	}
	return st
}

// Forget drops the cached state for a display that no longer exists.
func (m *Manager) Forget(id int) {
	if _, ok := m.displays[id]; !ok {
		return
	}
	delete(m.displays, id)
	m.logger.Info("display forgotten", "display", id)
}

// IDs returns the cached display ids in ascending order.
func (m *Manager) IDs() []int {
	ids := make([]int, 0, len(m.displays))
	for id := range m.displays {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// StartAccurateListening enables accurate mode on the first outstanding
// request. Each call must be matched by StopAccurateListening.
func (m *Manager) StartAccurateListening() {
	m.accurate++
	if m.accurate == 1 {
		m.logger.Debug("accurate mode enabled")
		m.source.EnableAccurateMode()
	}
}

// StopAccurateListening disables accurate mode once every start has been
// matched. An unmatched stop is ignored and the count stays at zero.
func (m *Manager) StopAccurateListening() {
	if m.accurate == 0 {
		m.logger.Warn("unmatched accurate listening stop ignored")
		return
	}
	m.accurate--
	if m.accurate == 0 {
		m.logger.Debug("accurate mode disabled")
		m.source.DisableAccurateMode()
	}
}

// AccurateListeners returns the number of outstanding start calls.
func (m *Manager) AccurateListeners() int {
	return m.accurate
}

// Accurate reports whether accurate mode is enabled.
func (m *Manager) Accurate() bool {
	return m.accurate > 0
}
