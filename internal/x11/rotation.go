package x11

import "github.com/BurntSushi/xgb/randr"

// RotationDegrees converts a RandR rotation mask into clockwise degrees.
// Reflection bits are ignored; an empty or malformed mask reads as 0.
func RotationDegrees(mask uint16) int {
	switch {
	case mask&randr.RotationRotate90 != 0:
		return 90
	case mask&randr.RotationRotate180 != 0:
		return 180
	case mask&randr.RotationRotate270 != 0:
		return 270
	default:
		return 0
	}
}
