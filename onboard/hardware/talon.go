package hardware

import (
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/team217/motionmagic/onboard/canbus"
	deverrors "github.com/team217/motionmagic/onboard/errors"
)

var log = logrus.WithField("component", "hardware")

const (
	// firmware reporting this version is a bench build and skips the version check
	DEV_FIRMWARE = "DEV"

	rxBuffer = 64
)

// TalonSRX drives one motor controller on a CAN bus.
//
// Configuration calls block until the device acknowledges them or their timeout expires.
// Control calls are fire-and-forget. Telemetry getters return the latest status frames
// received from the device and never block on the bus.
type TalonSRX struct {
	id  uint8
	bus canbus.CANBusInterface

	lock    sync.Mutex
	status  Status
	pending map[pendingKey]chan canbus.CANMsg

	rx        chan canbus.CANMsg
	done      chan struct{}
	closeOnce sync.Once
}

func NewTalonSRX(bus canbus.CANBusInterface, id uint8) *TalonSRX {
	t := &TalonSRX{
		id:      id,
		bus:     bus,
		pending: make(map[pendingKey]chan canbus.CANMsg),
		rx:      make(chan canbus.CANMsg, rxBuffer),
		done:    make(chan struct{}),
	}

	bus.AddListener(id, t.rx)
	go t.listen()

	return t
}

func (t *TalonSRX) DeviceID() uint8 {
	return t.id
}

// Close stops processing frames from the bus.
func (t *TalonSRX) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}

func (t *TalonSRX) arbitration(api uint16) canbus.Arbitration {
	return canbus.Arbitration{
		DeviceType:   canbus.DeviceTypeMotorController,
		Manufacturer: canbus.ManufacturerCTRE,
		API:          api,
		Device:       t.id,
	}
}

func (t *TalonSRX) send(msg canbus.CANMsg) error {
	return t.bus.SendMsg(msg)
}

// Set issues a control command. In follower mode demand is the leader's device id.
func (t *TalonSRX) Set(mode ControlMode, demand float64) error {
	frame := ControlFrame{Mode: mode, Demand: demand}
	if err := t.send(canbus.NewMsg(t.arbitration(APIControl), frame.Encode())); err != nil {
		return errors.Wrapf(err, "device %d: %s %v", t.id, mode, demand)
	}
	return nil
}

func (t *TalonSRX) configParam(param Param, ordinal uint8, value float64, timeout time.Duration) error {
	cmd := &ParamCommand{
		talon: t,
		value: ParamValue{Param: param, Ordinal: ordinal, Value: value},
	}
	return cmd.Process(timeout)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (t *TalonSRX) ConfigSelectedFeedbackSensor(device FeedbackDevice, pidIdx int, timeout time.Duration) error {
	return t.configParam(ParamSelectedFeedbackSensor, uint8(pidIdx), float64(device), timeout)
}

// SetSensorPhase flips the sensor direction so positive output moves the sensor positive.
func (t *TalonSRX) SetSensorPhase(phase bool, timeout time.Duration) error {
	return t.configParam(ParamSensorPhase, 0, boolValue(phase), timeout)
}

func (t *TalonSRX) SetInverted(invert bool, timeout time.Duration) error {
	return t.configParam(ParamInverted, 0, boolValue(invert), timeout)
}

func (t *TalonSRX) SetStatusFramePeriod(frame StatusFrame, period time.Duration, timeout time.Duration) error {
	return t.configParam(ParamStatusFramePeriod, uint8(frame), float64(period/time.Millisecond), timeout)
}

func (t *TalonSRX) ConfigNominalOutputForward(percent float64, timeout time.Duration) error {
	return t.configParam(ParamNominalOutputForward, 0, percent, timeout)
}

func (t *TalonSRX) ConfigNominalOutputReverse(percent float64, timeout time.Duration) error {
	return t.configParam(ParamNominalOutputReverse, 0, percent, timeout)
}

func (t *TalonSRX) ConfigPeakOutputForward(percent float64, timeout time.Duration) error {
	return t.configParam(ParamPeakOutputForward, 0, percent, timeout)
}

func (t *TalonSRX) ConfigPeakOutputReverse(percent float64, timeout time.Duration) error {
	return t.configParam(ParamPeakOutputReverse, 0, percent, timeout)
}

func (t *TalonSRX) SelectProfileSlot(slot, pidIdx int, timeout time.Duration) error {
	return t.configParam(ParamProfileSlotSelect, uint8(pidIdx), float64(slot), timeout)
}

func (t *TalonSRX) ConfigKF(slot int, value float64, timeout time.Duration) error {
	return t.configParam(ParamKF, uint8(slot), value, timeout)
}

func (t *TalonSRX) ConfigKP(slot int, value float64, timeout time.Duration) error {
	return t.configParam(ParamKP, uint8(slot), value, timeout)
}

func (t *TalonSRX) ConfigKI(slot int, value float64, timeout time.Duration) error {
	return t.configParam(ParamKI, uint8(slot), value, timeout)
}

func (t *TalonSRX) ConfigKD(slot int, value float64, timeout time.Duration) error {
	return t.configParam(ParamKD, uint8(slot), value, timeout)
}

// ConfigMotionCruiseVelocity sets the motion magic cruise velocity in sensor units per 100ms.
func (t *TalonSRX) ConfigMotionCruiseVelocity(sensorUnitsPer100ms int, timeout time.Duration) error {
	return t.configParam(ParamMotionCruiseVelocity, 0, float64(sensorUnitsPer100ms), timeout)
}

// ConfigMotionAcceleration sets the motion magic acceleration in sensor units per 100ms per second.
func (t *TalonSRX) ConfigMotionAcceleration(sensorUnitsPer100msPerSec int, timeout time.Duration) error {
	return t.configParam(ParamMotionAcceleration, 0, float64(sensorUnitsPer100msPerSec), timeout)
}

func (t *TalonSRX) SetSelectedSensorPosition(position, pidIdx int, timeout time.Duration) error {
	return t.configParam(ParamSelectedSensorPosition, uint8(pidIdx), float64(position), timeout)
}

// FirmwareVersion asks the device for its firmware version string.
func (t *TalonSRX) FirmwareVersion(timeout time.Duration) (string, error) {
	req := canbus.NewMsg(t.arbitration(APIVersionRequest), nil)
	key := pendingKey{api: APIVersionResponse}

	resp, err := t.transact(req, key, timeout, func(canbus.CANMsg) bool { return true })
	if err != nil {
		if timeoutErr, ok := err.(deverrors.ConfigTimeoutError); ok {
			timeoutErr.Param = "FirmwareVersion"
			return "", timeoutErr
		}
		return "", err
	}

	return strings.TrimRight(string(resp.Data), "\x00"), nil
}

// CheckFirmware reads the firmware version and verifies it satisfies the semver constraint.
// Bench builds reporting DEV_FIRMWARE are accepted with a warning.
func (t *TalonSRX) CheckFirmware(constraint string, timeout time.Duration) (version string, err error) {
	version, err = t.FirmwareVersion(timeout)
	if err != nil {
		return
	}

	if version == DEV_FIRMWARE {
		log.WithField("device", t.id).Warn("running development firmware, skipping version check")
		return version, nil
	}

	semVer, err := semver.NewVersion(version)
	if err != nil {
		return version, errors.Wrapf(err, "device %d: unparseable firmware version %q", t.id, version)
	}

	semVerConstraint, err := semver.NewConstraint(constraint)
	if err != nil {
		return version, errors.Wrapf(err, "invalid firmware constraint %q", constraint)
	}

	if !semVerConstraint.Check(semVer) {
		err = errors.Errorf("unable to use device %d: recieved firmware %s - require %s", t.id, version, constraint)
	}

	return
}

// Status returns a copy of the latest telemetry.
func (t *TalonSRX) Status() Status {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.status
}

func (t *TalonSRX) MotorOutputPercent() float64 {
	return t.Status().OutputPercent
}

// SelectedSensorPosition is the primary closed loop sensor position.
func (t *TalonSRX) SelectedSensorPosition() int {
	return int(t.Status().Position)
}

// SelectedSensorVelocity is the primary closed loop sensor velocity in units per 100ms.
func (t *TalonSRX) SelectedSensorVelocity() int {
	return int(t.Status().Velocity)
}

func (t *TalonSRX) ClosedLoopError() int {
	return int(t.Status().ClosedLoopError)
}

func (t *TalonSRX) ClosedLoopTarget() int {
	return int(t.Status().ClosedLoopTarget)
}

func (t *TalonSRX) ActiveTrajectoryPosition() int {
	return int(t.Status().TrajectoryPosition)
}

func (t *TalonSRX) ActiveTrajectoryVelocity() int {
	return int(t.Status().TrajectoryVelocity)
}

func (t *TalonSRX) listen() {
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.rx:
			t.handle(msg)
		}
	}
}

func (t *TalonSRX) handle(msg canbus.CANMsg) {
	arb := msg.Arbitration()
	if arb.DeviceType != canbus.DeviceTypeMotorController || arb.Manufacturer != canbus.ManufacturerCTRE {
		return
	}

	switch {
	case arb.API&^0xf == APIStatusBase:
		frame := StatusFrame(arb.API & 0xf)
		t.lock.Lock()
		err := t.status.apply(frame, msg.Data, time.Now())
		t.lock.Unlock()
		if err != nil {
			log.WithFields(logrus.Fields{"device": t.id, "frame": frame}).WithError(err).Debug("dropping status frame")
		}

	case arb.API == APIParamResponse:
		p, err := DecodeParam(msg.Data)
		if err != nil {
			return
		}
		t.routeACK(pendingKey{api: APIParamResponse, param: p.Param, ordinal: p.Ordinal}, msg)

	case arb.API == APIVersionResponse:
		t.routeACK(pendingKey{api: APIVersionResponse}, msg)
	}
}
