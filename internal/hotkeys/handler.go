package hotkeys

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/1broseidon/displayd/internal/config"
	"github.com/1broseidon/displayd/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Actions are the daemon operations reachable from the keyboard. They are
// invoked on the X event goroutine and must not block.
type Actions interface {
	RefreshAll()
	TogglePresent()
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	actions Actions
	logger  *slog.Logger
	mu      sync.Mutex
	bound   []string
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler.
func NewHandler(backend platform.Backend, actions Actions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var xu *xgbutil.XUtil
	var root xproto.Window
	if accessor, ok := backend.(x11Accessor); ok {
		xu = accessor.XUtil()
		root = accessor.RootWindow()
	}

	if xu != nil {
		ignoreModsOnce.Do(func() {
			configureIgnoreMods(xu)
		})
	}

	return &Handler{
		xu:      xu,
		root:    root,
		actions: actions,
		logger:  logger,
	}
}

// Bind replaces the current bindings with the ones in cfg. Empty sequences
// are skipped. A sequence that fails to bind is reported but does not stop
// the others.
func (h *Handler) Bind(cfg config.HotkeyConfig) error {
	if h.xu == nil {
		return fmt.Errorf("hotkeys require an X11 backend")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked()

	var errs []error
	bind := func(name, seq string, fn func()) {
		if seq == "" {
			return
		}
		if err := h.registerFunc(seq, fn); err != nil {
			errs = append(errs, fmt.Errorf("failed to register %s hotkey %q: %w", name, seq, err))
			return
		}
		h.bound = append(h.bound, seq)
		h.logger.Info("hotkey registered", "action", name, "keys", seq)
	}

	bind("refresh", cfg.Refresh, func() {
		h.logger.Debug("refresh hotkey triggered")
		h.actions.RefreshAll()
	})
	bind("present", cfg.Present, func() {
		h.logger.Debug("present hotkey triggered")
		h.actions.TogglePresent()
	})

	return errors.Join(errs...)
}

// Bound returns the key sequences currently grabbed.
func (h *Handler) Bound() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.bound...)
}

func (h *Handler) unbindLocked() {
	if len(h.bound) == 0 {
		return
	}
	keybind.Detach(h.xu, h.root)
	xproto.UngrabKey(h.xu.Conn(), xproto.GrabAny, h.root, xproto.ModMaskAny)
	h.bound = nil
}

// registerFunc registers an arbitrary hotkey callback.
func (h *Handler) registerFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	xevent.IgnoreMods = ignoreModCombinations(caps, numLock, scrollLock)
}

// ignoreModCombinations returns every combination of the distinct non-zero
// lock masks, including the empty one.
func ignoreModCombinations(locks ...uint16) []uint16 {
	var base []uint16
	seen := make(map[uint16]struct{})
	for _, m := range locks {
		if m == 0 {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		base = append(base, m)
	}

	out := make([]uint16, 0, 1<<len(base))
	for subset := 0; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		out = append(out, mask)
	}
	return out
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
