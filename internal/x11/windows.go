package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

const dockWindowType = "_NET_WM_WINDOW_TYPE_DOCK"

// hasWindowType checks whether a window advertises any of the given
// _NET_WM_WINDOW_TYPE atoms.
func (c *Connection) hasWindowType(windowID xproto.Window, wanted ...string) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, t := range types {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

// isViewable reports whether a window is currently mapped and visible.
func (c *Connection) isViewable(windowID xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// candidateWindows returns the EWMH client list followed by the root's
// direct children. Many panels never appear in _NET_CLIENT_LIST, so both
// sources are scanned; duplicates are removed.
func (c *Connection) candidateWindows() []xproto.Window {
	seen := make(map[xproto.Window]struct{})
	var windows []xproto.Window
	add := func(w xproto.Window) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		windows = append(windows, w)
	}

	if clients, err := ewmh.ClientListGet(c.XUtil); err == nil {
		for _, w := range clients {
			add(w)
		}
	}
	if tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		for _, w := range tree.Children {
			add(w)
		}
	}
	return windows
}
