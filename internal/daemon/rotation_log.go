package daemon

import (
	"log/slog"

	"github.com/1broseidon/displayd/internal/display"
)

// RotationLog is a display observer that logs rotation transitions. The
// daemon keeps one per display alive for as long as the display exists.
type RotationLog struct {
	displayID   int
	last        display.Rotation
	transitions int
	logger      *slog.Logger
}

func newRotationLog(st *display.State, logger *slog.Logger) *RotationLog {
	return &RotationLog{displayID: st.ID(), last: st.Rotation(), logger: logger}
}

// OnRotationChanged implements display.Observer.
func (r *RotationLog) OnRotationChanged(rot display.Rotation) {
	r.transitions++
	r.logger.Info("rotation transition",
		"display", r.displayID,
		"from", r.last,
		"to", rot,
		"portrait", rot.Portrait(),
		"transitions", r.transitions)
	r.last = rot
}

// Transitions returns how many rotation changes were observed.
func (r *RotationLog) Transitions() int {
	return r.transitions
}
