package display

// Query reads the current geometry of a display from the host.
//
// PhysicalSize reports ok=false when the host cannot provide it; the
// previously known physical size is kept in that case.
type Query interface {
	LogicalSize(id int) Size
	PhysicalSize(id int) (size Size, ok bool)
	Rotation(id int) Rotation
}

// Info is a point-in-time copy of a display's state.
type Info struct {
	ID       int      `json:"id"`
	Logical  Size     `json:"logical"`
	Physical Size     `json:"physical"`
	Rotation Rotation `json:"rotation"`
}

// State is the cached geometry of one display plus the observers interested
// in its rotation. States are owned by a Manager; holding a *State does not
// keep its observers alive.
type State struct {
	id        int
	logical   Size
	physical  Size
	rotation  Rotation
	observers observerSet
}

func newState(id int) *State {
	return &State{id: id, rotation: Rotation0}
}

// ID returns the display identifier.
func (s *State) ID() int { return s.id }

// LogicalSize returns the usable size of the display.
func (s *State) LogicalSize() Size { return s.logical }

// PhysicalSize returns the full native size, or zero if never supported.
func (s *State) PhysicalSize() Size { return s.physical }

// Rotation returns the last known rotation.
func (s *State) Rotation() Rotation { return s.rotation }

// Info returns a copy of the current values.
func (s *State) Info() Info {
	return Info{
		ID:       s.id,
		Logical:  s.logical,
		Physical: s.physical,
		Rotation: s.rotation,
	}
}

// ObserverCount returns the number of registrations, including observers
// that were collected but not yet pruned by a dispatch.
func (s *State) ObserverCount() int {
	return s.observers.len()
}

// Update re-reads the display from q. Sizes are always overwritten; the
// rotation comparison only decides whether observers are notified. It
// reports whether the rotation changed.
func (s *State) Update(q Query) bool {
	s.logical = q.LogicalSize(s.id)
	if physical, ok := q.PhysicalSize(s.id); ok {
		s.physical = physical
	}

	newRotation := NormalizeRotation(int(q.Rotation(s.id)))
	rotationChanged := newRotation != s.rotation
	s.rotation = newRotation

	if rotationChanged {
		for _, obs := range s.observers.snapshot() {
			obs.OnRotationChanged(newRotation)
		}
	}
	return rotationChanged
}
