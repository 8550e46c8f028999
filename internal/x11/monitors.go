package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Rect is a rectangle in root window coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Output represents an active CRTC and the output driving it.
type Output struct {
	ID       int // CRTC XID; stable while the CRTC stays configured
	Name     string
	X        int
	Y        int
	Width    int // as laid out on the root window (rotation applied)
	Height   int
	Rotation uint16 // raw RandR rotation mask

	// Native mode size, unrotated. Zero when mode info is unavailable.
	ModeWidth  int
	ModeHeight int
}

// Bounds returns the output rectangle on the root window.
func (o Output) Bounds() Rect {
	return Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

// Outputs retrieves all active outputs using XRandR
func (c *Connection) Outputs() ([]Output, error) {
	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	modes := make(map[randr.Mode]randr.ModeInfo, len(resources.Modes))
	for _, m := range resources.Modes {
		modes[randr.Mode(m.Id)] = m
	}

	var outputs []Output
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		out := Output{
			ID:       int(crtc),
			Name:     outputName,
			X:        int(crtcInfo.X),
			Y:        int(crtcInfo.Y),
			Width:    int(crtcInfo.Width),
			Height:   int(crtcInfo.Height),
			Rotation: crtcInfo.Rotation,
		}
		if c.SupportsModeInfo() {
			if mode, ok := modes[crtcInfo.Mode]; ok {
				out.ModeWidth = int(mode.Width)
				out.ModeHeight = int(mode.Height)
			}
		}
		outputs = append(outputs, out)
	}

	return outputs, nil
}

// UsableArea returns the part of out not covered by dock struts. When no dock
// reserves space on this output, the EWMH work area is used instead.
func (c *Connection) UsableArea(out Output) Rect {
	if usable, ok := c.applyDockStruts(out); ok {
		return usable
	}

	bounds := out.Bounds()
	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return bounds
	}

	desktopIndex := 0
	if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
		if int(currentDesktop) >= 0 && int(currentDesktop) < len(workArea) {
			desktopIndex = int(currentDesktop)
		}
	}
	wa := workArea[desktopIndex]

	isect := intersectRect(bounds, Rect{X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height)})
	if isect.Width <= 0 || isect.Height <= 0 {
		return bounds
	}
	return isect
}

type dockStruts struct {
	left   int
	right  int
	top    int
	bottom int
}

// strutPartial mirrors _NET_WM_STRUT_PARTIAL.
type strutPartial struct {
	left, right, top, bottom int
	leftStartY, leftEndY     int
	rightStartY, rightEndY   int
	topStartX, topEndX       int
	bottomStartX, bottomEndX int
}

func (c *Connection) applyDockStruts(out Output) (Rect, bool) {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return Rect{}, false
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return Rect{}, false
	}

	var struts dockStruts
	for _, windowID := range clients {
		if !c.hasWindowType(windowID, dockWindowType) {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			updateStrutsForOutput(out, rootWidth, rootHeight, strutPartial{
				left: int(sp.Left), right: int(sp.Right), top: int(sp.Top), bottom: int(sp.Bottom),
				leftStartY: int(sp.LeftStartY), leftEndY: int(sp.LeftEndY),
				rightStartY: int(sp.RightStartY), rightEndY: int(sp.RightEndY),
				topStartX: int(sp.TopStartX), topEndX: int(sp.TopEndX),
				bottomStartX: int(sp.BottomStartX), bottomEndX: int(sp.BottomEndX),
			}, &struts)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			updateStrutsForOutput(out, rootWidth, rootHeight, strutPartial{
				left: int(s.Left), right: int(s.Right), top: int(s.Top), bottom: int(s.Bottom),
				leftEndY:   rootHeight - 1,
				rightEndY:  rootHeight - 1,
				topEndX:    rootWidth - 1,
				bottomEndX: rootWidth - 1,
			}, &struts)
		}
	}

	if struts.left == 0 && struts.right == 0 && struts.top == 0 && struts.bottom == 0 {
		return Rect{}, false
	}
	return applyStruts(out, struts), true
}

func applyStruts(out Output, struts dockStruts) Rect {
	r := out.Bounds()
	r.X += struts.left
	r.Y += struts.top
	r.Width -= struts.left + struts.right
	r.Height -= struts.top + struts.bottom

	if r.Width < 1 {
		r.Width = 1
	}
	if r.Height < 1 {
		r.Height = 1
	}
	return r
}

func updateStrutsForOutput(out Output, rootWidth, rootHeight int, sp strutPartial, acc *dockStruts) {
	mon := out.Bounds()

	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.top > 0 {
		isect := intersectRect(mon, Rect{X: sp.topStartX, Y: 0, Width: sp.topEndX + 1 - sp.topStartX, Height: sp.top})
		if isect.Width > 0 && isect.Height > 0 {
			acc.top = max(acc.top, isect.Height)
		}
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.bottom > 0 {
		isect := intersectRect(mon, Rect{X: sp.bottomStartX, Y: rootHeight - sp.bottom, Width: sp.bottomEndX + 1 - sp.bottomStartX, Height: sp.bottom})
		if isect.Width > 0 && isect.Height > 0 {
			acc.bottom = max(acc.bottom, isect.Height)
		}
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.left > 0 {
		isect := intersectRect(mon, Rect{X: 0, Y: sp.leftStartY, Width: sp.left, Height: sp.leftEndY + 1 - sp.leftStartY})
		if isect.Width > 0 && isect.Height > 0 {
			acc.left = max(acc.left, isect.Width)
		}
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.right > 0 {
		isect := intersectRect(mon, Rect{X: rootWidth - sp.right, Y: sp.rightStartY, Width: sp.right, Height: sp.rightEndY + 1 - sp.rightStartY})
		if isect.Width > 0 && isect.Height > 0 {
			acc.right = max(acc.right, isect.Width)
		}
	}
}

func intersectRect(a, b Rect) Rect {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)

	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
