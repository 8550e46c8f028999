package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

const accurateNotifyMask = randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange

// xgbutil hooks cannot be disconnected, so one RandR hook is installed per
// process.
var hookOnce sync.Once

// SelectChangeEvents subscribes (enable=true) or unsubscribes the root
// window from RandR screen, CRTC and output change notifications. Change
// events reach OnDisplayChange only while subscribed.
func (c *Connection) SelectChangeEvents(enable bool) error {
	var mask uint16
	if enable {
		mask = accurateNotifyMask
	}
	if err := randr.SelectInputChecked(c.XUtil.Conn(), c.Root, mask).Check(); err != nil {
		return fmt.Errorf("randr select input failed: %w", err)
	}
	return nil
}

// OnDisplayChange installs fn to run, on the X event goroutine, for every
// RandR change event. Only the first registration takes effect.
func (c *Connection) OnDisplayChange(fn func()) {
	hookOnce.Do(func() {
		xevent.HookFun(func(xu *xgbutil.XUtil, event interface{}) bool {
			switch event.(type) {
			case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
				fn()
			}
			return true
		}).Connect(c.XUtil)
	})
}
