package onboard

import (
	"time"

	"github.com/team217/motionmagic/onboard/hardware"
)

// Channel is one motor controller of the drivetrain.
type Channel interface {
	DeviceID() uint8
	Set(mode hardware.ControlMode, demand float64) error

	ConfigSelectedFeedbackSensor(device hardware.FeedbackDevice, pidIdx int, timeout time.Duration) error
	SetSensorPhase(phase bool, timeout time.Duration) error
	SetInverted(invert bool, timeout time.Duration) error
	SetStatusFramePeriod(frame hardware.StatusFrame, period time.Duration, timeout time.Duration) error
	ConfigNominalOutputForward(percent float64, timeout time.Duration) error
	ConfigNominalOutputReverse(percent float64, timeout time.Duration) error
	ConfigPeakOutputForward(percent float64, timeout time.Duration) error
	ConfigPeakOutputReverse(percent float64, timeout time.Duration) error
	SelectProfileSlot(slot, pidIdx int, timeout time.Duration) error
	ConfigKF(slot int, value float64, timeout time.Duration) error
	ConfigKP(slot int, value float64, timeout time.Duration) error
	ConfigKI(slot int, value float64, timeout time.Duration) error
	ConfigKD(slot int, value float64, timeout time.Duration) error
	ConfigMotionCruiseVelocity(sensorUnitsPer100ms int, timeout time.Duration) error
	ConfigMotionAcceleration(sensorUnitsPer100msPerSec int, timeout time.Duration) error
	SetSelectedSensorPosition(position, pidIdx int, timeout time.Duration) error

	MotorOutputPercent() float64
	SelectedSensorVelocity() int
	ClosedLoopError() int
	ActiveTrajectoryPosition() int
	ActiveTrajectoryVelocity() int
}

var _ Channel = (*hardware.TalonSRX)(nil)
