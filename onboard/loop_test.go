package onboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/team217/motionmagic/onboard/hardware"
)

type recordingSink struct {
	lock    sync.Mutex
	samples []TelemetrySample
}

func (r *recordingSink) Publish(sample TelemetrySample) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.samples = append(r.samples, sample)
}

func (r *recordingSink) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.samples)
}

type brokenInput struct {
	err error
}

func (b *brokenInput) Poll() (float64, bool, error) {
	return 0.9, true, b.err
}

func TestRunnerStep(t *testing.T) {
	Convey("Given a runner", t, func() {
		td := newTestDrive()
		input := new(VirtualInput)
		sink := new(recordingSink)
		logger, hook := test.NewNullLogger()

		runner := NewRunner(td.drive, input, time.Millisecond, sink)
		runner.Log = logrus.NewEntry(logger)

		Convey("each step polls the input and publishes the sample", func() {
			input.Set(-1, true)
			sample, err := runner.Step()
			So(err, ShouldBeNil)
			So(sample.Target, ShouldEqual, 24576)
			So(sink.count(), ShouldEqual, 1)
			So(sink.samples[0], ShouldResemble, sample)
		})

		Convey("virtual input is clamped", func() {
			input.Set(3, false)
			axis, _, _ := input.Poll()
			So(axis, ShouldEqual, 1)
		})

		Convey("unreadable input holds the robot neutral", func() {
			broken := &brokenInput{err: errors.New("joystick unplugged")}
			runner.Input = broken

			sample, err := runner.Step()
			So(err, ShouldBeNil)
			So(sample.Mode, ShouldEqual, ModeOpenLoop)
			So(sample.Shaped, ShouldEqual, 0)

			sets := td.log.sets()
			So(sets[2].mode, ShouldEqual, hardware.ControlModePercentOutput)
			So(sets[2].value, ShouldEqual, 0)

			Convey("the outage is logged once", func() {
				runner.Step()
				runner.Step()
				So(len(hook.AllEntries()), ShouldEqual, 1)

				broken.err = nil
				runner.Step()
				So(hook.LastEntry().Message, ShouldEqual, "input restored")
			})
		})

		Convey("a failing bus is logged once until it recovers", func() {
			td.fl.setErr = errors.New("bus is closed")
			for i := 0; i < 3; i++ {
				runner.dispatched(runner.Step())
			}
			So(len(hook.AllEntries()), ShouldEqual, 1)
			So(hook.LastEntry().Level, ShouldEqual, logrus.WarnLevel)

			td.fl.setErr = nil
			runner.dispatched(runner.Step())
			So(len(hook.AllEntries()), ShouldEqual, 2)
			So(hook.LastEntry().Message, ShouldEqual, "tick dispatch restored")
		})
	})
}

func TestRunnerRun(t *testing.T) {
	Convey("the loop ticks until cancelled", t, func() {
		td := newTestDrive()
		sink := new(recordingSink)
		runner := NewRunner(td.drive, new(VirtualInput), time.Millisecond, sink)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		deadline := time.Now().Add(time.Second)
		for sink.count() < 5 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()

		var err error
		select {
		case err = <-done:
		case <-time.After(time.Second):
			err = errors.New("runner did not stop")
		}
		So(err, ShouldBeNil)
		So(sink.count(), ShouldBeGreaterThanOrEqualTo, 5)

		Convey("dispatch failures do not stop the loop", func() {
			td.fl.setErr = errors.New("bus is closed")
			sink := new(recordingSink)
			runner := NewRunner(td.drive, new(VirtualInput), time.Millisecond, sink)
			logger, hook := test.NewNullLogger()
			runner.Log = logrus.NewEntry(logger)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			So(runner.Run(ctx), ShouldBeNil)
			So(sink.count(), ShouldBeGreaterThan, 1)
			So(len(hook.AllEntries()), ShouldEqual, 1)
		})
	})

	Convey("a cancelled context returns immediately", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		runner := NewRunner(newTestDrive().drive, new(VirtualInput), time.Hour)
		So(runner.Run(ctx), ShouldBeNil)
	})
}
