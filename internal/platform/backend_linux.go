//go:build linux

package platform

import (
	"fmt"
	"sort"

	"github.com/1broseidon/displayd/internal/display"
	"github.com/1broseidon/displayd/internal/suppress"
	"github.com/1broseidon/displayd/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Quit stops the X11 event loop.
func (b *LinuxBackend) Quit() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// RandRVersion returns the negotiated RandR protocol version.
func (b *LinuxBackend) RandRVersion() (major, minor uint32) {
	if b == nil || b.conn == nil {
		return 0, 0
	}
	return b.conn.RandRVersion()
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Snapshot reads the geometry of every active output.
func (b *LinuxBackend) Snapshot() (Snapshot, error) {
	conn, err := b.connection()
	if err != nil {
		return Snapshot{}, err
	}

	outputs, err := conn.Outputs()
	if err != nil {
		return Snapshot{}, err
	}

	geometries := make([]Geometry, 0, len(outputs))
	for _, out := range outputs {
		geometries = append(geometries, geometryFromOutput(out, conn.UsableArea(out)))
	}
	sort.Slice(geometries, func(i, j int) bool {
		return geometries[i].ID < geometries[j].ID
	})

	return NewSnapshot(geometries, conn.SupportsModeInfo()), nil
}

// SetChangeEvents toggles RandR change notifications.
func (b *LinuxBackend) SetChangeEvents(enable bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SelectChangeEvents(enable)
}

// OnDisplayChange registers fn for RandR change events.
func (b *LinuxBackend) OnDisplayChange(fn func()) {
	if conn, err := b.connection(); err == nil {
		conn.OnDisplayChange(fn)
	}
}

// Surface returns the dock windows as a suppressible surface.
func (b *LinuxBackend) Surface(windowTypes []string) suppress.Surface {
	return x11.NewDockSurface(b.conn, windowTypes)
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 connection not initialized")
	}
	return b.conn, nil
}

func geometryFromOutput(out x11.Output, usable x11.Rect) Geometry {
	return Geometry{
		ID:   out.ID,
		Name: out.Name,
		Bounds: Rect{
			X:      out.X,
			Y:      out.Y,
			Width:  out.Width,
			Height: out.Height,
		},
		Usable: Rect{
			X:      usable.X,
			Y:      usable.Y,
			Width:  usable.Width,
			Height: usable.Height,
		},
		Native:   display.Size{Width: out.ModeWidth, Height: out.ModeHeight},
		Rotation: display.NormalizeRotation(x11.RotationDegrees(out.Rotation)),
	}
}
