package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	randrMajor uint32
	randrMinor uint32
}

// NewConnection establishes a connection to the X11 server and initializes required extensions
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	// Initialize keybind module (required for global hotkeys)
	keybind.Initialize(xu)

	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	version, err := randr.QueryVersion(xu.Conn(), 1, 5).Reply()
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr version query failed: %w", err)
	}

	return &Connection{
		XUtil:      xu,
		Root:       xu.RootWin(),
		randrMajor: version.MajorVersion,
		randrMinor: version.MinorVersion,
	}, nil
}

// RandRVersion returns the RandR protocol version negotiated with the server.
func (c *Connection) RandRVersion() (major, minor uint32) {
	return c.randrMajor, c.randrMinor
}

// SupportsModeInfo reports whether the server exposes per-CRTC mode info
// (RandR 1.2+), which is needed to report native panel sizes.
func (c *Connection) SupportsModeInfo() bool {
	return c.randrMajor > 1 || (c.randrMajor == 1 && c.randrMinor >= 2)
}

// EventLoop starts the main X11 event loop (blocking)
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops a running EventLoop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
