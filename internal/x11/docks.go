package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

// DockSurface hides panel/dock windows by unmapping them and restores the
// same set of windows afterwards.
type DockSurface struct {
	conn        *Connection
	windowTypes []string
	hidden      []xproto.Window
}

// NewDockSurface creates a surface over windows advertising any of
// windowTypes. An empty list selects _NET_WM_WINDOW_TYPE_DOCK.
func NewDockSurface(conn *Connection, windowTypes []string) *DockSurface {
	if len(windowTypes) == 0 {
		windowTypes = []string{dockWindowType}
	}
	return &DockSurface{conn: conn, windowTypes: windowTypes}
}

// Hide unmaps every visible dock window. Windows that fail to unmap are
// reported but the rest are still hidden.
func (d *DockSurface) Hide() error {
	var errs []error
	for _, w := range d.conn.candidateWindows() {
		if !d.conn.hasWindowType(w, d.windowTypes...) || !d.conn.isViewable(w) {
			continue
		}
		if err := xproto.UnmapWindowChecked(d.conn.XUtil.Conn(), w).Check(); err != nil {
			errs = append(errs, fmt.Errorf("unmap window %d: %w", w, err))
			continue
		}
		d.hidden = append(d.hidden, w)
	}
	return errors.Join(errs...)
}

// Show remaps the windows hidden by the previous Hide. Windows destroyed in
// the meantime are skipped.
func (d *DockSurface) Show() error {
	var errs []error
	for _, w := range d.hidden {
		if err := xproto.MapWindowChecked(d.conn.XUtil.Conn(), w).Check(); err != nil {
			errs = append(errs, fmt.Errorf("map window %d: %w", w, err))
		}
	}
	d.hidden = nil
	return errors.Join(errs...)
}
