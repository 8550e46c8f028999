package platform

import (
	"errors"
	"testing"

	"github.com/1broseidon/displayd/internal/display"
	"github.com/1broseidon/displayd/internal/suppress"
)

type fakeBackend struct {
	snap       Snapshot
	snapErr    error
	snapCalls  int
	selects    []bool
	selectErr  error
	changeHook func()
}

func (f *fakeBackend) Snapshot() (Snapshot, error) {
	f.snapCalls++
	if f.snapErr != nil {
		return Snapshot{}, f.snapErr
	}
	return f.snap, nil
}

func (f *fakeBackend) SetChangeEvents(enable bool) error {
	f.selects = append(f.selects, enable)
	return f.selectErr
}

func (f *fakeBackend) OnDisplayChange(fn func())                     { f.changeHook = fn }
func (f *fakeBackend) Surface(windowTypes []string) suppress.Surface { return nil }
func (f *fakeBackend) EventLoop()                                    {}
func (f *fakeBackend) Quit()                                         {}
func (f *fakeBackend) Disconnect()                                   {}

func landscape(id int) Geometry {
	return Geometry{
		ID:     id,
		Name:   "HDMI-1",
		Bounds: Rect{Width: 1920, Height: 1080},
		Usable: Rect{Y: 32, Width: 1920, Height: 1048},
		Native: display.Size{Width: 1920, Height: 1080},
	}
}

func TestSnapshotQueries(t *testing.T) {
	portrait := landscape(2)
	portrait.Rotation = display.Rotation90
	snap := NewSnapshot([]Geometry{portrait, landscape(1)}, true)

	if got := snap.IDs(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("IDs() = %v, want [1 2]", got)
	}
	if got := snap.LogicalSize(1); got != (display.Size{Width: 1920, Height: 1048}) {
		t.Errorf("LogicalSize(1) = %v", got)
	}
	if got, ok := snap.PhysicalSize(1); !ok || got != (display.Size{Width: 1920, Height: 1080}) {
		t.Errorf("PhysicalSize(1) = %v, %v", got, ok)
	}
	if got, ok := snap.PhysicalSize(2); !ok || got != (display.Size{Width: 1080, Height: 1920}) {
		t.Errorf("PhysicalSize(2) = %v, %v; want rotated native size", got, ok)
	}
	if got := snap.Rotation(2); got != display.Rotation90 {
		t.Errorf("Rotation(2) = %v", got)
	}
	if _, ok := snap.Geometry(3); ok {
		t.Error("Geometry(3) reported an unknown display")
	}
}

func TestSnapshotPhysicalSizeUnsupported(t *testing.T) {
	snap := NewSnapshot([]Geometry{landscape(1)}, false)
	if _, ok := snap.PhysicalSize(1); ok {
		t.Fatal("PhysicalSize reported support without mode info")
	}

	noMode := landscape(1)
	noMode.Native = display.Size{}
	snap = NewSnapshot([]Geometry{noMode}, true)
	if _, ok := snap.PhysicalSize(1); ok {
		t.Fatal("PhysicalSize reported a zero native size")
	}
}

func TestSourceKeepsLastSnapshotOnError(t *testing.T) {
	backend := &fakeBackend{snap: NewSnapshot([]Geometry{landscape(1)}, true)}
	src := NewSource(backend, nil)

	if got := src.LogicalSize(1); got.Width != 1920 {
		t.Fatalf("LogicalSize(1) = %v", got)
	}
	if backend.snapCalls != 1 {
		t.Fatalf("snapshot calls = %d, want 1", backend.snapCalls)
	}

	src.Rotation(1)
	if backend.snapCalls != 1 {
		t.Fatalf("queries re-fetched the snapshot: calls = %d", backend.snapCalls)
	}

	backend.snapErr = errors.New("connection lost")
	snap := src.Load()
	if snap.Len() != 1 {
		t.Fatalf("Load() after error returned %d displays, want previous snapshot", snap.Len())
	}
	if got := src.LogicalSize(1); got.Width != 1920 {
		t.Fatalf("LogicalSize(1) after error = %v", got)
	}
}

func TestSourceAccurateModeAbsorbsErrors(t *testing.T) {
	backend := &fakeBackend{selectErr: errors.New("no randr")}
	src := NewSource(backend, nil)

	src.EnableAccurateMode()
	src.DisableAccurateMode()

	if len(backend.selects) != 2 || !backend.selects[0] || backend.selects[1] {
		t.Fatalf("selects = %v, want [true false]", backend.selects)
	}
}

func TestSourceDrivesManager(t *testing.T) {
	geom := landscape(7)
	backend := &fakeBackend{snap: NewSnapshot([]Geometry{geom}, true)}
	src := NewSource(backend, nil)
	mgr := display.NewManager(src, nil)

	st := mgr.Get(7)
	if st.Rotation() != display.Rotation0 {
		t.Fatalf("initial rotation = %v", st.Rotation())
	}

	geom.Rotation = display.Rotation270
	backend.snap = NewSnapshot([]Geometry{geom}, true)
	if got := mgr.Refresh(7, src.Load()); got != st {
		t.Fatal("Refresh created a second state for the same display")
	}
	if st.Rotation() != display.Rotation270 {
		t.Fatalf("rotation = %v, want 270", st.Rotation())
	}

	mgr.StartAccurateListening()
	mgr.StopAccurateListening()
	if len(backend.selects) != 2 {
		t.Fatalf("selects = %v", backend.selects)
	}
}
