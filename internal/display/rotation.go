package display

import "strconv"

// Rotation is a display orientation in degrees, clockwise from the
// display's natural orientation.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// NormalizeRotation maps an arbitrary angle onto the nearest quarter turn.
func NormalizeRotation(degrees int) Rotation {
	d := ((degrees % 360) + 360) % 360
	quarter := ((d + 45) / 90) % 4
	return Rotation(quarter * 90)
}

// Valid reports whether r is one of the four canonical orientations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

// Portrait reports whether r swaps the natural width and height.
func (r Rotation) Portrait() bool {
	return r == Rotation90 || r == Rotation270
}

func (r Rotation) String() string {
	return strconv.Itoa(int(r))
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
