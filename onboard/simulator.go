package onboard

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/team217/motionmagic/onboard/canbus"
	"github.com/team217/motionmagic/onboard/hardware"
)

const (
	// sensor velocity at full output, ticks per 100ms. Matches a kF of about 0.103.
	SIM_FREE_SPEED = 9927
	SIM_FIRMWARE   = "4.22.0"
	SIM_INTERVAL   = 10 * time.Millisecond
)

type simParamKey struct {
	param   hardware.Param
	ordinal uint8
}

// SimulatedTalon stands in for motor controller firmware on the device end of a loopback
// bus. It acknowledges parameter writes, answers version requests, runs the last control
// frame through a simple motor model and pushes status frames on every Step.
type SimulatedTalon struct {
	id     uint8
	bus    canbus.CANBusInterface
	leader func(id uint8) *SimulatedTalon

	rx        chan canbus.CANMsg
	done      chan struct{}
	closeOnce sync.Once

	lock     sync.Mutex
	firmware string
	silent   bool
	params   map[simParamKey]float64
	control  hardware.ControlFrame
	position float64 // ticks
	velocity float64 // ticks per 100ms
	output   float64
}

func NewSimulatedTalon(bus canbus.CANBusInterface, id uint8) *SimulatedTalon {
	s := &SimulatedTalon{
		id:       id,
		bus:      bus,
		rx:       make(chan canbus.CANMsg, 64),
		done:     make(chan struct{}),
		firmware: SIM_FIRMWARE,
		params:   make(map[simParamKey]float64),
		control:  hardware.ControlFrame{Mode: hardware.ControlModePercentOutput},
	}
	bus.AddListener(id, s.rx)
	go s.listen()
	return s
}

func (s *SimulatedTalon) DeviceID() uint8 {
	return s.id
}

func (s *SimulatedTalon) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// SetSilent stops the device acknowledging anything, as if it had dropped off the bus.
func (s *SimulatedTalon) SetSilent(silent bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.silent = silent
}

func (s *SimulatedTalon) SetFirmware(version string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.firmware = version
}

// Param returns the last value written for a parameter.
func (s *SimulatedTalon) Param(p hardware.Param, ordinal uint8) (value float64, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	value, ok = s.params[simParamKey{p, ordinal}]
	return
}

func (s *SimulatedTalon) Control() hardware.ControlFrame {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.control
}

func (s *SimulatedTalon) Position() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.position
}

func (s *SimulatedTalon) Velocity() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.velocity
}

func (s *SimulatedTalon) Output() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.output
}

func (s *SimulatedTalon) listen() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.rx:
			s.handle(msg)
		}
	}
}

func (s *SimulatedTalon) arbitration(api uint16) canbus.Arbitration {
	return canbus.Arbitration{
		DeviceType:   canbus.DeviceTypeMotorController,
		Manufacturer: canbus.ManufacturerCTRE,
		API:          api,
		Device:       s.id,
	}
}

func (s *SimulatedTalon) handle(msg canbus.CANMsg) {
	arb := msg.Arbitration()
	if arb.DeviceType != canbus.DeviceTypeMotorController || arb.Manufacturer != canbus.ManufacturerCTRE {
		return
	}

	s.lock.Lock()
	silent := s.silent
	firmware := s.firmware
	s.lock.Unlock()

	switch arb.API {
	case hardware.APIControl:
		frame, err := hardware.DecodeControl(msg.Data)
		if err != nil {
			return
		}
		s.lock.Lock()
		s.control = frame
		s.lock.Unlock()

	case hardware.APIParamSet:
		p, err := hardware.DecodeParam(msg.Data)
		if err != nil || silent {
			return
		}
		s.lock.Lock()
		s.params[simParamKey{p.Param, p.Ordinal}] = p.Value
		if p.Param == hardware.ParamSelectedSensorPosition {
			s.position = p.Value
		}
		s.lock.Unlock()
		s.reply(hardware.APIParamResponse, msg.Data)

	case hardware.APIVersionRequest:
		if silent {
			return
		}
		s.reply(hardware.APIVersionResponse, []byte(firmware))
	}
}

func (s *SimulatedTalon) reply(api uint16, data []byte) {
	if err := s.bus.SendMsg(canbus.NewMsg(s.arbitration(api), data)); err != nil {
		log.WithField("device", s.id).WithError(err).Debug("simulated reply dropped")
	}
}

func (s *SimulatedTalon) param(p hardware.Param, ordinal uint8) float64 {
	return s.params[simParamKey{p, ordinal}]
}

// Step advances the motor model by dt and pushes the resulting status frames.
func (s *SimulatedTalon) Step(dt time.Duration) {
	secs := dt.Seconds()

	// read the leader before taking our own lock
	var leaderVelocity, leaderOutput float64
	control := s.Control()
	if control.Mode == hardware.ControlModeFollower && s.leader != nil {
		if l := s.leader(uint8(control.Demand)); l != nil && l != s {
			leaderVelocity, leaderOutput = l.Velocity(), l.Output()
		}
	}

	s.lock.Lock()
	var status hardware.Status
	switch control.Mode {
	case hardware.ControlModePercentOutput:
		s.output = mgl64.Clamp(control.Demand, -1, 1)
		s.velocity = s.output * SIM_FREE_SPEED

	case hardware.ControlModeMotionMagic:
		s.stepMotionMagic(control.Demand, secs)

	case hardware.ControlModeFollower:
		s.velocity, s.output = leaderVelocity, leaderOutput

	default:
		s.output, s.velocity = 0, 0
	}
	s.position += s.velocity * 10 * secs
	if control.Mode == hardware.ControlModeMotionMagic {
		status.ClosedLoopTarget = int32(math.Round(control.Demand))
		status.ClosedLoopError = int32(math.Round(control.Demand - s.position))
	}

	status.OutputPercent = s.output
	status.Position = int32(math.Round(s.position))
	status.Velocity = int32(math.Round(s.velocity))
	status.TrajectoryPosition = status.Position
	status.TrajectoryVelocity = status.Velocity
	s.lock.Unlock()

	for _, frame := range []hardware.StatusFrame{
		hardware.Status1General,
		hardware.Status2Feedback0,
		hardware.Status10MotionMagic,
		hardware.Status13BasePIDF0,
	} {
		data, _ := hardware.EncodeStatus(frame, status)
		s.reply(hardware.StatusAPI(frame), data)
	}
}

// stepMotionMagic follows a trapezoid limited by the configured cruise velocity and
// acceleration, decelerating in time to stop on target.
func (s *SimulatedTalon) stepMotionMagic(target, secs float64) {
	if secs <= 0 {
		return
	}
	cruise := math.Abs(s.param(hardware.ParamMotionCruiseVelocity, 0))
	accel := math.Abs(s.param(hardware.ParamMotionAcceleration, 0))

	remaining := target - s.position
	if math.Abs(remaining) < 1 && math.Abs(s.velocity) < accel*secs {
		s.position, s.velocity, s.output = target, 0, 0
		return
	}

	// v^2 / 2a with v in ticks/100ms and a in ticks/100ms/s
	stopping := math.Sqrt(accel * math.Abs(remaining) / 5)
	desired := math.Copysign(math.Min(cruise, stopping), remaining)

	maxDelta := accel * secs
	s.velocity += mgl64.Clamp(desired-s.velocity, -maxDelta, maxDelta)

	// do not overshoot within a single step
	if step := s.velocity * 10 * secs; math.Abs(step) > math.Abs(remaining) && math.Signbit(step) == math.Signbit(remaining) {
		s.velocity = remaining / (10 * secs)
	}
	s.output = mgl64.Clamp(s.velocity/SIM_FREE_SPEED, -1, 1)
}

// SimulatedDrivetrain is a set of simulated controllers sharing one loopback bus.
type SimulatedDrivetrain struct {
	Bus    *canbus.Loopback
	Talons map[uint8]*SimulatedTalon
	Period time.Duration

	ids []uint8
}

func NewSimulatedDrivetrain(bus *canbus.Loopback, ids ...uint8) *SimulatedDrivetrain {
	d := &SimulatedDrivetrain{
		Bus:    bus,
		Talons: make(map[uint8]*SimulatedTalon, len(ids)),
		Period: SIM_INTERVAL,
	}
	for _, id := range ids {
		t := NewSimulatedTalon(bus.Device(), id)
		t.leader = d.lookup
		d.Talons[id] = t
		d.ids = append(d.ids, id)
	}
	sort.Slice(d.ids, func(i, j int) bool { return d.ids[i] < d.ids[j] })
	return d
}

func (d *SimulatedDrivetrain) lookup(id uint8) *SimulatedTalon {
	return d.Talons[id]
}

// Step advances every device, leaders before followers.
func (d *SimulatedDrivetrain) Step(dt time.Duration) {
	var followers []*SimulatedTalon
	for _, id := range d.ids {
		t := d.Talons[id]
		if t.Control().Mode == hardware.ControlModeFollower {
			followers = append(followers, t)
			continue
		}
		t.Step(dt)
	}
	for _, t := range followers {
		t.Step(dt)
	}
}

// Run steps the devices every Period until ctx is done.
func (d *SimulatedDrivetrain) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Step(now.Sub(last))
			last = now
		}
	}
}

func (d *SimulatedDrivetrain) Close() {
	for _, t := range d.Talons {
		t.Close()
	}
}
