package platform

import (
	"io"
	"log/slog"

	"github.com/1broseidon/displayd/internal/display"
)

// Source adapts a Backend to display.Source. Query methods answer from the
// most recently loaded snapshot; backend failures are logged and leave the
// previous snapshot in place.
type Source struct {
	backend Backend
	logger  *slog.Logger
	last    Snapshot
	loaded  bool
}

var _ display.Source = (*Source)(nil)

// NewSource creates a source over backend. logger may be nil.
func NewSource(backend Backend, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Source{backend: backend, logger: logger}
}

// Load fetches a fresh snapshot. On error the previous snapshot is kept and
// returned.
func (s *Source) Load() Snapshot {
	snap, err := s.backend.Snapshot()
	if err != nil {
		s.logger.Warn("display query failed", "error", err)
		return s.last
	}
	s.last = snap
	s.loaded = true
	return snap
}

// Current returns the last loaded snapshot, loading one if none exists yet.
func (s *Source) Current() Snapshot {
	if !s.loaded {
		return s.Load()
	}
	return s.last
}

func (s *Source) LogicalSize(id int) display.Size {
	return s.Current().LogicalSize(id)
}

func (s *Source) PhysicalSize(id int) (display.Size, bool) {
	return s.Current().PhysicalSize(id)
}

func (s *Source) Rotation(id int) display.Rotation {
	return s.Current().Rotation(id)
}

// EnableAccurateMode subscribes to display server change events.
func (s *Source) EnableAccurateMode() {
	if err := s.backend.SetChangeEvents(true); err != nil {
		s.logger.Warn("failed to enable accurate mode", "error", err)
	}
}

// DisableAccurateMode unsubscribes from display server change events.
func (s *Source) DisableAccurateMode() {
	if err := s.backend.SetChangeEvents(false); err != nil {
		s.logger.Warn("failed to disable accurate mode", "error", err)
	}
}
