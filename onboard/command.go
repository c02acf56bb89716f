package onboard

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/team217/motionmagic/onboard/hardware"
)

// Mode is the drive mode for a single tick. It follows the mode button and is never latched.
type Mode int

const (
	ModeOpenLoop Mode = iota
	ModeClosedLoop
)

func (m Mode) String() string {
	switch m {
	case ModeOpenLoop:
		return "open_loop"
	case ModeClosedLoop:
		return "closed_loop"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "open_loop":
		*m = ModeOpenLoop
	case "closed_loop":
		*m = ModeClosedLoop
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// ControlCommand is what both lead channels are told to do on a tick.
// In ModeClosedLoop Value is a target position in sensor ticks, in ModeOpenLoop it is a
// normalized output in [-1, 1].
type ControlCommand struct {
	Mode  Mode
	Value float64
}

func PercentOutput(output float64) ControlCommand {
	return ControlCommand{Mode: ModeOpenLoop, Value: mgl64.Clamp(output, -1, 1)}
}

func TargetPosition(ticks float64) ControlCommand {
	return ControlCommand{Mode: ModeClosedLoop, Value: ticks}
}

func (c ControlCommand) controlMode() hardware.ControlMode {
	if c.Mode == ModeClosedLoop {
		return hardware.ControlModeMotionMagic
	}
	return hardware.ControlModePercentOutput
}

func (c ControlCommand) String() string {
	return fmt.Sprintf("%s %v", c.Mode, c.Value)
}
