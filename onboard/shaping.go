package onboard

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultTargetScale is the closed loop target at full stick: 4096 ticks/rev, 6 revolutions.
const DefaultTargetScale = 8192 * 3

// ShapeAxis turns a raw joystick axis into a drive demand. The axis is negated so pushing the
// stick away from the operator is positive, then cubed to soften small inputs.
// Input outside [-1, 1] is clamped and NaN is treated as a centred stick.
func ShapeAxis(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	r := mgl64.Clamp(raw, -1, 1)
	if r == 0 {
		return 0 // avoid -0 on the wire
	}
	return -r * math.Abs(r*r)
}

func TargetFor(shaped, scale float64) float64 {
	return shaped * scale
}
