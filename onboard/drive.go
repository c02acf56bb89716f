package onboard

import (
	"time"

	"github.com/sirupsen/logrus"
	deverrors "github.com/team217/motionmagic/onboard/errors"
	"github.com/team217/motionmagic/onboard/hardware"
	"go.uber.org/multierr"
)

var log = logrus.WithField("component", "onboard")

// FollowerBinding makes Follower mirror whatever Leader is commanded to do.
type FollowerBinding struct {
	Follower Channel
	Leader   Channel
}

// DriveController owns the four drivetrain channels. The front channels lead and the back
// channels follow them. Tick is expected to be called from a single goroutine.
type DriveController struct {
	FrontLeft  Channel
	FrontRight Channel
	BackLeft   Channel
	BackRight  Channel

	TargetScale float64

	followers []FollowerBinding
	ticks     uint64
}

func NewDriveController(fl, fr, bl, br Channel) *DriveController {
	d := &DriveController{
		FrontLeft:   fl,
		FrontRight:  fr,
		BackLeft:    bl,
		BackRight:   br,
		TargetScale: DefaultTargetScale,
	}
	d.BindFollower(bl, fl)
	d.BindFollower(br, fr)
	return d
}

// BindFollower registers follower to mirror leader from the next tick on.
// Binding a follower again replaces its leader.
func (d *DriveController) BindFollower(follower, leader Channel) {
	for i, b := range d.followers {
		if b.Follower == follower {
			d.followers[i].Leader = leader
			return
		}
	}
	d.followers = append(d.followers, FollowerBinding{Follower: follower, Leader: leader})
}

func (d *DriveController) Followers() []FollowerBinding {
	return append([]FollowerBinding(nil), d.followers...)
}

func (d *DriveController) leads() []Channel {
	return []Channel{d.FrontLeft, d.FrontRight}
}

// ConfigureChannel sets a lead channel up for motion magic on its feedback sensor.
// Every step is attempted even when an earlier one fails; all failures are logged and
// returned together. Applying the same config twice leaves the channel unchanged.
func ConfigureChannel(ch Channel, cfg ClosedLoopConfig, loopPeriod, timeout time.Duration) error {
	sensor, err := hardware.FeedbackDeviceByName(cfg.Sensor)
	if err != nil {
		return err
	}
	if loopPeriod <= 0 {
		loopPeriod = 10 * time.Millisecond
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"feedback sensor", func() error { return ch.ConfigSelectedFeedbackSensor(sensor, cfg.PIDIdx, timeout) }},
		{"sensor phase", func() error { return ch.SetSensorPhase(cfg.SensorPhase, timeout) }},
		// telemetry must be at least as fresh as the loop
		{"pidf0 status period", func() error {
			return ch.SetStatusFramePeriod(hardware.Status13BasePIDF0, loopPeriod, timeout)
		}},
		{"motion magic status period", func() error {
			return ch.SetStatusFramePeriod(hardware.Status10MotionMagic, loopPeriod, timeout)
		}},
		{"nominal output forward", func() error { return ch.ConfigNominalOutputForward(0, timeout) }},
		{"nominal output reverse", func() error { return ch.ConfigNominalOutputReverse(0, timeout) }},
		{"peak output forward", func() error { return ch.ConfigPeakOutputForward(1, timeout) }},
		{"peak output reverse", func() error { return ch.ConfigPeakOutputReverse(-1, timeout) }},
		{"profile slot", func() error { return ch.SelectProfileSlot(cfg.Slot, cfg.PIDIdx, timeout) }},
		{"kF", func() error { return ch.ConfigKF(cfg.Slot, cfg.KF, timeout) }},
		{"kP", func() error { return ch.ConfigKP(cfg.Slot, cfg.KP, timeout) }},
		{"kI", func() error { return ch.ConfigKI(cfg.Slot, cfg.KI, timeout) }},
		{"kD", func() error { return ch.ConfigKD(cfg.Slot, cfg.KD, timeout) }},
		{"cruise velocity", func() error { return ch.ConfigMotionCruiseVelocity(cfg.CruiseVelocity, timeout) }},
		{"acceleration", func() error { return ch.ConfigMotionAcceleration(cfg.Acceleration, timeout) }},
		{"zero sensor", func() error { return ch.SetSelectedSensorPosition(0, cfg.PIDIdx, timeout) }},
	}

	var errs error
	for _, step := range steps {
		if err := step.fn(); err != nil {
			log.WithFields(logrus.Fields{
				"device": ch.DeviceID(),
				"step":   step.name,
			}).WithError(err).Warn("configuration step failed")
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// Configure sets up both leads for closed loop control and applies inversion to all four
// channels. What counts as fatal depends on cfg.ConfigPolicy:
//
//	strict  - critical timeouts (sensor, slot, gains, motion limits) and bus errors
//	lenient - bus errors only, every timeout is logged and tolerated
//	ignore  - nothing, startup always continues
func (d *DriveController) Configure(cfg DriveConfig) error {
	timeout := cfg.Timeout()

	var errs error
	for _, lead := range d.leads() {
		errs = multierr.Append(errs, ConfigureChannel(lead, cfg.ClosedLoop, cfg.LoopPeriod(), timeout))
	}

	inversions := []struct {
		ch       Channel
		inverted bool
	}{
		{d.FrontLeft, cfg.Channels.FrontLeft.Inverted},
		{d.FrontRight, cfg.Channels.FrontRight.Inverted},
		{d.BackRight, cfg.Channels.BackRight.Inverted},
		{d.BackLeft, cfg.Channels.BackLeft.Inverted},
	}
	for _, c := range inversions {
		if err := c.ch.SetInverted(c.inverted, timeout); err != nil {
			log.WithField("device", c.ch.DeviceID()).WithError(err).Warn("unable to set inversion")
			errs = multierr.Append(errs, err)
		}
	}

	return fatalConfigErrors(cfg.Policy(), errs)
}

func fatalConfigErrors(policy string, errs error) (fatal error) {
	if policy == PolicyIgnore {
		return nil
	}

	for _, err := range multierr.Errors(errs) {
		timeout, isTimeout := err.(deverrors.ConfigTimeoutError)
		switch {
		case !isTimeout:
			fatal = multierr.Append(fatal, err)
		case policy == PolicyStrict && timeout.Critical:
			fatal = multierr.Append(fatal, err)
		}
	}
	return
}

// Command is the lead channel command for a shaped demand and the mode button.
func (d *DriveController) Command(shaped float64, closedLoop bool) ControlCommand {
	if closedLoop {
		return TargetPosition(TargetFor(shaped, d.TargetScale))
	}
	return PercentOutput(shaped)
}

// Tick runs one control cycle: rebind followers, shape the axis, sample the leads and
// command them. A channel that cannot be commanded does not stop the other channels from
// being commanded; every failure is returned as a CommandDispatchError.
func (d *DriveController) Tick(axis float64, closedLoop bool) (sample TelemetrySample, err error) {
	d.ticks++
	err = d.rebindFollowers()

	shaped := ShapeAxis(axis)
	sample = TelemetrySample{
		Tick:   d.ticks,
		Time:   time.Now(),
		Shaped: shaped,
		Left: SideTelemetry{
			Device:        d.FrontLeft.DeviceID(),
			OutputPercent: d.FrontLeft.MotorOutputPercent(),
			Velocity:      d.FrontLeft.SelectedSensorVelocity(),
		},
		Right: SideTelemetry{
			Device:        d.FrontRight.DeviceID(),
			OutputPercent: d.FrontRight.MotorOutputPercent(),
			Velocity:      d.FrontRight.SelectedSensorVelocity(),
		},
	}

	cmd := d.Command(shaped, closedLoop)
	sample.Mode = cmd.Mode
	err = multierr.Append(err, d.dispatch(cmd))

	if cmd.Mode == ModeClosedLoop {
		sample.Target = cmd.Value
		sample.Left.closedLoop(d.FrontLeft)
		sample.Right.closedLoop(d.FrontRight)
	}

	return
}

func (s *SideTelemetry) closedLoop(ch Channel) {
	s.ClosedLoopError = ch.ClosedLoopError()
	s.TrajectoryPosition = ch.ActiveTrajectoryPosition()
	s.TrajectoryVelocity = ch.ActiveTrajectoryVelocity()
}

// Neutral commands zero output on both leads and keeps the followers bound.
func (d *DriveController) Neutral() error {
	return multierr.Append(d.rebindFollowers(), d.dispatch(PercentOutput(0)))
}

func (d *DriveController) rebindFollowers() (errs error) {
	for _, b := range d.followers {
		if err := b.Follower.Set(hardware.ControlModeFollower, float64(b.Leader.DeviceID())); err != nil {
			errs = multierr.Append(errs, dispatchError(b.Follower, hardware.ControlModeFollower, err))
		}
	}
	return
}

func (d *DriveController) dispatch(cmd ControlCommand) (errs error) {
	mode := cmd.controlMode()
	for _, lead := range d.leads() {
		if err := lead.Set(mode, cmd.Value); err != nil {
			errs = multierr.Append(errs, dispatchError(lead, mode, err))
		}
	}
	return
}

func dispatchError(ch Channel, mode hardware.ControlMode, err error) error {
	return deverrors.CommandDispatchError{Device: ch.DeviceID(), Mode: mode.String(), Err: err}
}
