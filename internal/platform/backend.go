package platform

import (
	"sort"

	"github.com/1broseidon/displayd/internal/display"
	"github.com/1broseidon/displayd/internal/suppress"
)

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size returns the rectangle's dimensions.
func (r Rect) Size() display.Size {
	return display.Size{Width: r.Width, Height: r.Height}
}

// Geometry describes a physical display as reported by the display server.
type Geometry struct {
	ID       int
	Name     string
	Bounds   Rect
	Usable   Rect
	Native   display.Size // unrotated mode size; zero when unknown
	Rotation display.Rotation
}

// Snapshot holds the geometry of every active display at one instant.
type Snapshot struct {
	displays        map[int]Geometry
	nativeSupported bool
}

var _ display.Query = Snapshot{}

// NewSnapshot builds a snapshot. nativeSupported reports whether the server
// can provide native (physical) sizes at all.
func NewSnapshot(geometries []Geometry, nativeSupported bool) Snapshot {
	displays := make(map[int]Geometry, len(geometries))
	for _, g := range geometries {
		displays[g.ID] = g
	}
	return Snapshot{displays: displays, nativeSupported: nativeSupported}
}

// IDs returns the display ids in ascending order.
func (s Snapshot) IDs() []int {
	ids := make([]int, 0, len(s.displays))
	for id := range s.displays {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Geometry returns the geometry of one display.
func (s Snapshot) Geometry(id int) (Geometry, bool) {
	g, ok := s.displays[id]
	return g, ok
}

// Len returns the number of displays.
func (s Snapshot) Len() int {
	return len(s.displays)
}

// LogicalSize returns the usable area of the display.
func (s Snapshot) LogicalSize(id int) display.Size {
	return s.displays[id].Usable.Size()
}

// PhysicalSize returns the native mode size in the current orientation.
func (s Snapshot) PhysicalSize(id int) (display.Size, bool) {
	g, ok := s.displays[id]
	if !ok || !s.nativeSupported || g.Native == (display.Size{}) {
		return display.Size{}, false
	}
	if g.Rotation.Portrait() {
		return display.Size{Width: g.Native.Height, Height: g.Native.Width}, true
	}
	return g.Native, true
}

// Rotation returns the display's rotation.
func (s Snapshot) Rotation(id int) display.Rotation {
	return s.displays[id].Rotation
}

// Backend abstracts the display server.
type Backend interface {
	Snapshot() (Snapshot, error)
	SetChangeEvents(enable bool) error
	OnDisplayChange(fn func())
	Surface(windowTypes []string) suppress.Surface
	EventLoop()
	Quit()
	Disconnect()
}
