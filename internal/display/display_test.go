package display

import (
	"bytes"
	"log/slog"
	"runtime"
	"strings"
	"testing"
)

type fakeSource struct {
	logical  map[int]Size
	physical map[int]Size
	rotation map[int]Rotation
	noReal   bool

	enables  int
	disables int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		logical:  map[int]Size{},
		physical: map[int]Size{},
		rotation: map[int]Rotation{},
	}
}

func (f *fakeSource) LogicalSize(id int) Size { return f.logical[id] }

func (f *fakeSource) PhysicalSize(id int) (Size, bool) {
	if f.noReal {
		return Size{}, false
	}
	return f.physical[id], true
}

func (f *fakeSource) Rotation(id int) Rotation { return f.rotation[id] }
func (f *fakeSource) EnableAccurateMode()      { f.enables++ }
func (f *fakeSource) DisableAccurateMode()     { f.disables++ }

type recorder struct {
	got *[]Rotation
}

func (r *recorder) OnRotationChanged(rotation Rotation) {
	*r.got = append(*r.got, rotation)
}

func newRecorder() (*recorder, *[]Rotation) {
	got := new([]Rotation)
	return &recorder{got: got}, got
}

func TestRotationScenario(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)

	st := m.Refresh(1, src)
	if st.Rotation() != Rotation0 {
		t.Fatalf("initial rotation = %v, want 0", st.Rotation())
	}

	a, got := newRecorder()
	AddObserver(st, a)

	src.rotation[1] = Rotation90
	m.Refresh(1, src)
	if len(*got) != 1 || (*got)[0] != Rotation90 {
		t.Fatalf("notifications = %v, want [90]", *got)
	}

	m.Refresh(1, src)
	if len(*got) != 1 {
		t.Fatalf("notifications = %v, want no repeat for unchanged rotation", *got)
	}
	runtime.KeepAlive(a)
}

func TestAddObserverTwiceNotifiesOnce(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)
	st := m.Get(3)

	o, got := newRecorder()
	AddObserver(st, o)
	AddObserver(st, o)
	if st.ObserverCount() != 1 {
		t.Fatalf("ObserverCount() = %d, want 1", st.ObserverCount())
	}

	src.rotation[3] = Rotation270
	m.Refresh(3, src)
	if len(*got) != 1 {
		t.Fatalf("notifications = %v, want exactly one", *got)
	}
	runtime.KeepAlive(o)
}

func TestRemoveObserver(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)
	st := m.Get(1)

	o, got := newRecorder()
	other, _ := newRecorder()
	RemoveObserver(st, other) // absent: no-op
	AddObserver(st, o)
	RemoveObserver(st, o)

	src.rotation[1] = Rotation180
	m.Refresh(1, src)
	if len(*got) != 0 {
		t.Fatalf("removed observer notified: %v", *got)
	}
	runtime.KeepAlive(o)
	runtime.KeepAlive(other)
}

var zeroObserverCalls []Rotation

type zeroObserver struct{}

func (*zeroObserver) OnRotationChanged(rotation Rotation) {
	zeroObserverCalls = append(zeroObserverCalls, rotation)
}

func TestZeroSizeObserver(t *testing.T) {
	zeroObserverCalls = nil
	src := newFakeSource()
	m := NewManager(src, nil)
	st := m.Get(1)

	o := &zeroObserver{}
	AddObserver(st, o)
	AddObserver(st, o)
	if st.ObserverCount() != 1 {
		t.Fatalf("ObserverCount() = %d, want 1", st.ObserverCount())
	}

	runtime.GC()
	src.rotation[1] = Rotation90
	m.Refresh(1, src)
	if len(zeroObserverCalls) != 1 || zeroObserverCalls[0] != Rotation90 {
		t.Fatalf("notifications = %v, want [90]", zeroObserverCalls)
	}

	RemoveObserver(st, o)
	src.rotation[1] = Rotation180
	m.Refresh(1, src)
	if len(zeroObserverCalls) != 1 || st.ObserverCount() != 0 {
		t.Fatalf("removed zero-size observer still registered: %v", zeroObserverCalls)
	}
}

func TestFirstRefreshDoesNotLogRotationChange(t *testing.T) {
	var buf bytes.Buffer
	src := newFakeSource()
	src.rotation[4] = Rotation90
	m := NewManager(src, slog.New(slog.NewTextHandler(&buf, nil)))

	st := m.Refresh(4, src)
	if st.Rotation() != Rotation90 {
		t.Fatalf("Rotation() = %v, want 90", st.Rotation())
	}
	if strings.Contains(buf.String(), "rotation changed") {
		t.Fatalf("first refresh logged a rotation change: %s", buf.String())
	}

	src.rotation[4] = Rotation180
	m.Refresh(4, src)
	if strings.Count(buf.String(), "rotation changed") != 1 {
		t.Fatalf("expected one rotation change log, got: %s", buf.String())
	}
}

//go:noinline
func addDroppedObserver(st *State) *[]Rotation {
	o, got := newRecorder()
	AddObserver(st, o)
	return got
}

func TestDroppedObserverIsNotNotified(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)
	st := m.Get(1)

	got := addDroppedObserver(st)
	runtime.GC()
	runtime.GC()

	src.rotation[1] = Rotation90
	m.Refresh(1, src)

	if len(*got) != 0 {
		t.Fatalf("collected observer was notified: %v", *got)
	}
	if st.ObserverCount() != 0 {
		t.Fatalf("ObserverCount() = %d, want dead entry pruned", st.ObserverCount())
	}
}

type selfRemover struct {
	st    *State
	other *recorder
	calls int
}

func (s *selfRemover) OnRotationChanged(Rotation) {
	s.calls++
	RemoveObserver(s.st, s)
	RemoveObserver(s.st, s.other)
}

func TestObserverMayMutateSetDuringDispatch(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)
	st := m.Get(1)

	other, got := newRecorder()
	remover := &selfRemover{st: st, other: other}
	AddObserver(st, remover)
	AddObserver(st, other)

	src.rotation[1] = Rotation90
	m.Refresh(1, src)

	if remover.calls != 1 {
		t.Fatalf("remover called %d times, want 1", remover.calls)
	}
	// The snapshot was taken before dispatch, so other still hears this one.
	if len(*got) != 1 {
		t.Fatalf("other notifications = %v, want one from the in-flight dispatch", *got)
	}

	src.rotation[1] = Rotation180
	m.Refresh(1, src)
	if remover.calls != 1 || len(*got) != 1 {
		t.Fatalf("removed observers notified again: remover=%d other=%v", remover.calls, *got)
	}
	runtime.KeepAlive(other)
	runtime.KeepAlive(remover)
}

type reentrant struct {
	m   *Manager
	src *fakeSource
	got []Rotation
}

func (r *reentrant) OnRotationChanged(rotation Rotation) {
	r.got = append(r.got, rotation)
	if rotation == Rotation90 {
		r.src.rotation[1] = Rotation180
		r.m.Refresh(1, r.src)
	}
}

func TestObserverMayRefreshDuringDispatch(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)
	st := m.Get(1)

	r := &reentrant{m: m, src: src}
	AddObserver(st, r)

	src.rotation[1] = Rotation90
	m.Refresh(1, src)

	if len(r.got) != 2 || r.got[0] != Rotation90 || r.got[1] != Rotation180 {
		t.Fatalf("notifications = %v, want [90 180]", r.got)
	}
	if st.Rotation() != Rotation180 {
		t.Fatalf("Rotation() = %v, want 180", st.Rotation())
	}
}

func TestRefreshOverwritesSizes(t *testing.T) {
	src := newFakeSource()
	src.logical[2] = Size{Width: 1920, Height: 1050}
	src.physical[2] = Size{Width: 1920, Height: 1080}
	m := NewManager(src, nil)

	st := m.Get(2)
	if st.LogicalSize() != (Size{1920, 1050}) || st.PhysicalSize() != (Size{1920, 1080}) {
		t.Fatalf("unexpected sizes: %+v", st.Info())
	}

	src.logical[2] = Size{Width: 1050, Height: 1920}
	src.physical[2] = Size{Width: 1080, Height: 1920}
	m.Refresh(2, src)
	if st.LogicalSize() != (Size{1050, 1920}) || st.PhysicalSize() != (Size{1080, 1920}) {
		t.Fatalf("sizes not refreshed without rotation change: %+v", st.Info())
	}
}

func TestPhysicalSizeKeptWhenUnsupported(t *testing.T) {
	src := newFakeSource()
	src.physical[1] = Size{Width: 2560, Height: 1440}
	m := NewManager(src, nil)
	st := m.Get(1)

	src.noReal = true
	src.physical[1] = Size{Width: 1, Height: 1}
	m.Refresh(1, src)
	if st.PhysicalSize() != (Size{2560, 1440}) {
		t.Fatalf("PhysicalSize() = %+v, want previous value kept", st.PhysicalSize())
	}

	fresh := NewManager(src, nil).Get(9)
	if fresh.PhysicalSize() != (Size{}) {
		t.Fatalf("PhysicalSize() = %+v, want zero when never supported", fresh.PhysicalSize())
	}
}

func TestStatesAreKeyedByDisplay(t *testing.T) {
	src := newFakeSource()
	src.logical[1] = Size{Width: 100, Height: 100}
	src.logical[2] = Size{Width: 200, Height: 200}
	m := NewManager(src, nil)

	a := m.Get(1)
	b := m.Get(2)
	if a == b {
		t.Fatal("distinct displays share state")
	}
	if m.Get(1) != a {
		t.Fatal("Get did not return cached state")
	}
	if a.LogicalSize().Width != 100 || b.LogicalSize().Width != 200 {
		t.Fatalf("states mixed up: %+v %+v", a.Info(), b.Info())
	}

	ids := m.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("IDs() = %v, want [1 2]", ids)
	}

	m.Forget(1)
	if _, ok := m.Lookup(1); ok {
		t.Fatal("forgotten display still cached")
	}
}

func TestAccurateListeningEdges(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)

	m.StartAccurateListening()
	m.StartAccurateListening()
	m.StopAccurateListening()

	if !m.Accurate() || m.AccurateListeners() != 1 {
		t.Fatalf("accurate=%v listeners=%d, want enabled with 1", m.Accurate(), m.AccurateListeners())
	}
	if src.enables != 1 || src.disables != 0 {
		t.Fatalf("enables=%d disables=%d, want 1/0", src.enables, src.disables)
	}

	m.StopAccurateListening()
	if m.Accurate() {
		t.Fatal("expected accurate mode disabled after matching stop")
	}
	if src.disables != 1 {
		t.Fatalf("disables=%d, want 1", src.disables)
	}
}

func TestUnmatchedStopClampsAtZero(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, nil)

	m.StopAccurateListening()
	if m.AccurateListeners() != 0 || src.disables != 0 {
		t.Fatalf("listeners=%d disables=%d, want 0/0", m.AccurateListeners(), src.disables)
	}

	m.StartAccurateListening()
	if src.enables != 1 {
		t.Fatalf("enables=%d, want 1 after clamped stop", src.enables)
	}
}

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		in   int
		want Rotation
	}{
		{0, Rotation0},
		{90, Rotation90},
		{180, Rotation180},
		{270, Rotation270},
		{360, Rotation0},
		{-90, Rotation270},
		{89, Rotation90},
		{44, Rotation0},
		{316, Rotation0},
		{450, Rotation90},
	}
	for _, tt := range tests {
		if got := NormalizeRotation(tt.in); got != tt.want {
			t.Errorf("NormalizeRotation(%d) = %v, want %v", tt.in, got, tt.want)
		}
		if !NormalizeRotation(tt.in).Valid() {
			t.Errorf("NormalizeRotation(%d) not canonical", tt.in)
		}
	}
}
