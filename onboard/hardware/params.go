package hardware

import (
	"fmt"
	"strings"
)

// API numbers used by the motor controller, see canbus.Arbitration.
const (
	APIControl         uint16 = 0x000
	APIStatusBase      uint16 = 0x140
	APIParamSet        uint16 = 0x180
	APIParamResponse   uint16 = 0x181
	APIVersionRequest  uint16 = 0x190
	APIVersionResponse uint16 = 0x191
)

type ControlMode uint8

const (
	ControlModePercentOutput ControlMode = 0
	ControlModePosition      ControlMode = 1
	ControlModeVelocity      ControlMode = 2
	ControlModeFollower      ControlMode = 5
	ControlModeMotionMagic   ControlMode = 7
	ControlModeDisabled      ControlMode = 15
)

func (m ControlMode) String() string {
	switch m {
	case ControlModePercentOutput:
		return "PercentOutput"
	case ControlModePosition:
		return "Position"
	case ControlModeVelocity:
		return "Velocity"
	case ControlModeFollower:
		return "Follower"
	case ControlModeMotionMagic:
		return "MotionMagic"
	case ControlModeDisabled:
		return "Disabled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

type FeedbackDevice uint8

const (
	FeedbackQuadEncoder FeedbackDevice = 0
	FeedbackAnalog      FeedbackDevice = 2
	FeedbackTachometer  FeedbackDevice = 4
	FeedbackPulseWidth  FeedbackDevice = 8
)

var feedbackDeviceNames = map[string]FeedbackDevice{
	"quad_encoder": FeedbackQuadEncoder,
	"analog":       FeedbackAnalog,
	"tachometer":   FeedbackTachometer,
	"pulse_width":  FeedbackPulseWidth,
}

func FeedbackDeviceByName(name string) (FeedbackDevice, error) {
	d, ok := feedbackDeviceNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown feedback device %q", name)
	}
	return d, nil
}

type StatusFrame uint8

const (
	Status1General      StatusFrame = 1
	Status2Feedback0    StatusFrame = 2
	Status10MotionMagic StatusFrame = 10
	Status13BasePIDF0   StatusFrame = 13
)

func StatusAPI(frame StatusFrame) uint16 {
	return APIStatusBase | uint16(frame)
}

type Param uint16

const (
	ParamSelectedFeedbackSensor Param = iota + 1
	ParamSensorPhase
	ParamInverted
	ParamStatusFramePeriod
	ParamNominalOutputForward
	ParamNominalOutputReverse
	ParamPeakOutputForward
	ParamPeakOutputReverse
	ParamProfileSlotSelect
	ParamKF
	ParamKP
	ParamKI
	ParamKD
	ParamMotionCruiseVelocity
	ParamMotionAcceleration
	ParamSelectedSensorPosition
)

var paramNames = map[Param]string{
	ParamSelectedFeedbackSensor: "SelectedFeedbackSensor",
	ParamSensorPhase:            "SensorPhase",
	ParamInverted:               "Inverted",
	ParamStatusFramePeriod:      "StatusFramePeriod",
	ParamNominalOutputForward:   "NominalOutputForward",
	ParamNominalOutputReverse:   "NominalOutputReverse",
	ParamPeakOutputForward:      "PeakOutputForward",
	ParamPeakOutputReverse:      "PeakOutputReverse",
	ParamProfileSlotSelect:      "ProfileSlotSelect",
	ParamKF:                     "kF",
	ParamKP:                     "kP",
	ParamKI:                     "kI",
	ParamKD:                     "kD",
	ParamMotionCruiseVelocity:   "MotionCruiseVelocity",
	ParamMotionAcceleration:     "MotionAcceleration",
	ParamSelectedSensorPosition: "SelectedSensorPosition",
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return fmt.Sprintf("param(%d)", uint16(p))
}

// Critical params are the ones motion magic cannot run without.
func (p Param) Critical() bool {
	switch p {
	case ParamSelectedFeedbackSensor, ParamProfileSlotSelect,
		ParamKF, ParamKP, ParamKI, ParamKD,
		ParamMotionCruiseVelocity, ParamMotionAcceleration:
		return true
	}
	return false
}
