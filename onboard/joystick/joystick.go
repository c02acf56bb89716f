package joystick

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "joystick")

// F710 gamepad in DirectInput mode, as seen through the linux joystick API:
//
//	L stick u/d = 1 (up = -32767; down = +32767)
//	        l/r = 0 (left = -32767; right = +32767)
//	R stick u/d = 3
//	Button 1    = 0
const (
	AxisLStickX = 0
	AxisLStickY = 1
	AxisRStickY = 3

	Button1 = 0
)

const (
	axisMax = 32767

	eventInit = 0x80
)

var ERR_NOT_TRACKING = errors.New("joystick is not being tracked")

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// Joystick reads events from a joystick device and keeps the latest state of every axis
// and button once Track has been started.
type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time

	lock     sync.RWMutex
	tracking bool
	err      error
	axes     map[uint8]int16
	buttons  map[uint8]bool
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open joystick %s", device)
	}
	return newJoystick(f), nil
}

func newJoystick(device io.ReadCloser) *Joystick {
	return &Joystick{
		device:  device,
		axes:    make(map[uint8]int16),
		buttons: make(map[uint8]bool),
	}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var rawEvent rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &rawEvent)
	if err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = rawEvent.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(rawEvent.Time-j.deviceEpoch) * time.Millisecond),
		Value:  rawEvent.Value,
		Type:   EventType(rawEvent.Type &^ eventInit),
		Number: rawEvent.Number,
	}, nil
}

// Track reads events in the background until the device fails or is closed.
// The failure is kept and reported by Err and every Binding.Poll from then on.
func (j *Joystick) Track() {
	j.lock.Lock()
	j.tracking = true
	j.lock.Unlock()

	go func() {
		for {
			event, err := j.ReadEvent()
			if err != nil {
				log.WithError(err).Warn("joystick read failed")
				j.lock.Lock()
				j.err = errors.Wrap(err, "joystick read failed")
				j.lock.Unlock()
				return
			}
			j.apply(event)
		}
	}()
}

func (j *Joystick) apply(event *Event) {
	j.lock.Lock()
	defer j.lock.Unlock()
	switch event.Type {
	case EventTypeAxis:
		j.axes[event.Number] = event.Value
	case EventTypeButton:
		j.buttons[event.Number] = event.Value != 0
	}
}

func (j *Joystick) Err() error {
	j.lock.RLock()
	defer j.lock.RUnlock()
	if !j.tracking {
		return ERR_NOT_TRACKING
	}
	return j.err
}

// Axis is the latest position of an axis normalized to [-1, 1].
func (j *Joystick) Axis(number uint8) float64 {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return mgl64.Clamp(float64(j.axes[number])/axisMax, -1, 1)
}

func (j *Joystick) Button(number uint8) bool {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.buttons[number]
}

func (j *Joystick) Close() error {
	return j.device.Close()
}

// Binding picks the drive axis and the closed loop button off a joystick.
type Binding struct {
	Joystick *Joystick
	Axis     uint8
	Button   uint8
}

func (b Binding) Poll() (axis float64, button bool, err error) {
	if err = b.Joystick.Err(); err != nil {
		return 0, false, err
	}
	return b.Joystick.Axis(b.Axis), b.Joystick.Button(b.Button), nil
}
