package joystick

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func events(raw ...rawEvent) io.ReadCloser {
	var buf bytes.Buffer
	for _, e := range raw {
		binary.Write(&buf, binary.LittleEndian, e)
	}
	return ioutil.NopCloser(&buf)
}

func TestReadEvent(t *testing.T) {
	Convey("events are decoded relative to the first one", t, func() {
		j := newJoystick(events(
			rawEvent{Time: 1000, Value: -32767, Type: EventTypeAxis | eventInit, Number: AxisLStickY},
			rawEvent{Time: 1250, Value: 1, Type: EventTypeButton, Number: Button1},
		))

		first, err := j.ReadEvent()
		So(err, ShouldBeNil)
		So(first.Type, ShouldEqual, EventTypeAxis)
		So(first.String(), ShouldEqual, "axis(1)=-32767")

		second, err := j.ReadEvent()
		So(err, ShouldBeNil)
		So(second.Type, ShouldEqual, EventTypeButton)
		So(second.Time.Sub(first.Time), ShouldEqual, 250*time.Millisecond)

		_, err = j.ReadEvent()
		So(err, ShouldEqual, io.EOF)
	})
}

func TestBinding(t *testing.T) {
	Convey("Given a tracked joystick", t, func() {
		j := newJoystick(events(
			rawEvent{Time: 1, Value: -32768, Type: EventTypeAxis, Number: AxisLStickY},
			rawEvent{Time: 2, Value: 16384, Type: EventTypeAxis, Number: AxisLStickX},
			rawEvent{Time: 3, Value: 1, Type: EventTypeButton, Number: Button1},
		))
		binding := Binding{Joystick: j, Axis: AxisLStickY, Button: Button1}

		Convey("polling before tracking is an error", func() {
			_, _, err := binding.Poll()
			So(err, ShouldEqual, ERR_NOT_TRACKING)
		})

		Convey("the latest state is reported until the device fails", func() {
			j.Track()

			// the reader hits EOF once it has drained the buffer
			deadline := time.Now().Add(time.Second)
			for j.Err() == nil && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}

			So(j.Axis(AxisLStickY), ShouldEqual, -1)
			So(j.Axis(AxisLStickX), ShouldAlmostEqual, 0.5, 1e-4)
			So(j.Button(Button1), ShouldBeTrue)
			So(j.Button(5), ShouldBeFalse)

			axis, button, err := binding.Poll()
			So(err, ShouldNotBeNil)
			So(axis, ShouldEqual, 0)
			So(button, ShouldBeFalse)
		})
	})
}
