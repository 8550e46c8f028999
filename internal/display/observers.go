package display

import (
	"unsafe"
	"weak"
)

// Observer is notified when a display's rotation changes.
type Observer interface {
	OnRotationChanged(rotation Rotation)
}

// observerEntry resolves a weakly held observer. resolve returns nil once the
// observer has been garbage collected.
type observerEntry struct {
	key     any
	resolve func() Observer
}

// observerSet is an insertion-ordered set of weakly held observers.
type observerSet struct {
	entries []observerEntry
}

func (s *observerSet) add(key any, resolve func() Observer) {
	for _, e := range s.entries {
		if e.key == key {
			return
		}
	}
	s.entries = append(s.entries, observerEntry{key: key, resolve: resolve})
}

func (s *observerSet) remove(key any) {
	for i, e := range s.entries {
		if e.key == key {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

// snapshot resolves the live observers and drops entries whose observer has
// been collected. The returned slice is independent of the set, so callbacks
// may add or remove observers while it is being iterated.
func (s *observerSet) snapshot() []Observer {
	live := make([]Observer, 0, len(s.entries))
	kept := s.entries[:0]
	for _, e := range s.entries {
		obs := e.resolve()
		if obs == nil {
			continue
		}
		live = append(live, obs)
		kept = append(kept, e)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	return live
}

func (s *observerSet) len() int {
	return len(s.entries)
}

// AddObserver registers obs for rotation changes on st. The registration
// holds obs weakly: once nothing else references obs it stops receiving
// notifications and disappears from the set. Adding the same observer twice
// registers it once.
//
// obs must point to heap memory, as returned by new or &T{}. Pointers to
// zero-size types are held strongly until removed, since they are never
// collected.
func AddObserver[T any, P interface {
	*T
	Observer
}](st *State, obs P) {
	if st == nil || obs == nil {
		return
	}
	if zeroSize[T]() {
		st.observers.add(obs, func() Observer { return obs })
		return
	}
	wp := weak.Make((*T)(obs))
	st.observers.add(wp, func() Observer {
		p := wp.Value()
		if p == nil {
			return nil
		}
		return P(p)
	})
}

// RemoveObserver unregisters obs from st. Removing an observer that is not
// registered is a no-op.
func RemoveObserver[T any, P interface {
	*T
	Observer
}](st *State, obs P) {
	if st == nil || obs == nil {
		return
	}
	if zeroSize[T]() {
		st.observers.remove(obs)
		return
	}
	st.observers.remove(weak.Make((*T)(obs)))
}

func zeroSize[T any]() bool {
	var v T
	return unsafe.Sizeof(v) == 0
}
