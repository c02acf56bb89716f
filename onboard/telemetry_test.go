package onboard

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTelemetryLine(t *testing.T) {
	Convey("open loop lines carry output and velocity", t, func() {
		s := TelemetrySample{
			Mode:  ModeOpenLoop,
			Left:  SideTelemetry{OutputPercent: 0.5, Velocity: 300, ClosedLoopError: 99},
			Right: SideTelemetry{OutputPercent: -0.25, Velocity: -120},
		}
		So(s.String(), ShouldEqual, "\tOut%:0.5\tVel:300\tOut1%:-0.25\tVel1:-120")
	})

	Convey("closed loop lines add error and target", t, func() {
		s := TelemetrySample{
			Mode:   ModeClosedLoop,
			Target: 24576,
			Left:   SideTelemetry{OutputPercent: 1, Velocity: 7445, ClosedLoopError: 12},
			Right:  SideTelemetry{OutputPercent: 1, Velocity: 7440, ClosedLoopError: -3},
		}
		So(s.String(), ShouldEqual, "\tOut%:1\tVel:7445\tOut1%:1\tVel1:7440\terr:12\terr1:-3\ttrg:24576")
	})
}

func TestInstrument(t *testing.T) {
	Convey("the instrument logs every nth sample", t, func() {
		logger, hook := test.NewNullLogger()
		inst := &Instrument{PrintEvery: 10, Log: logrus.NewEntry(logger)}

		for i := 0; i < 25; i++ {
			inst.Publish(TelemetrySample{Tick: uint64(i + 1)})
		}
		So(len(hook.AllEntries()), ShouldEqual, 2)
		So(hook.LastEntry().Level, ShouldEqual, logrus.InfoLevel)

		Convey("a period of one logs everything", func() {
			hook.Reset()
			inst.PrintEvery = 1
			inst.Publish(TelemetrySample{})
			inst.Publish(TelemetrySample{})
			So(len(hook.AllEntries()), ShouldEqual, 2)
		})
	})
}
