package errors

import (
	stderrors "errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDeviceErrors(t *testing.T) {
	Convey("config timeouts name the device and parameter", t, func() {
		err := ConfigTimeoutError{Device: 13, Param: "kP", Timeout: 10 * time.Millisecond}
		So(err.Error(), ShouldEqual, "device 13: kP not acknowledged within 10ms")
	})

	Convey("dispatch errors unwrap to the bus error", t, func() {
		busErr := stderrors.New("bus is closed")
		var err error = CommandDispatchError{Device: 11, Mode: "MotionMagic", Err: busErr}
		So(err.Error(), ShouldContainSubstring, "device 11")
		So(stderrors.Is(err, busErr), ShouldBeTrue)
	})

	Convey("platform errors fill in unknown fields", t, func() {
		So(IncorrectPlatformError{}.Error(), ShouldContainSubstring, "platform UNKOWN")
		So(IncorrectPlatformError{Name: "darwin", Action: "open"}.Error(), ShouldEqual,
			"incorrect platform; platform darwin is unable to perform action open")
	})
}
