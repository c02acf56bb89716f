package onboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type SideTelemetry struct {
	Device          uint8   `json:"device"`
	OutputPercent   float64 `json:"output_percent"`
	Velocity        int     `json:"velocity"`
	ClosedLoopError int     `json:"closed_loop_error"`

	// position and velocity the motion profile expects on this tick
	TrajectoryPosition int `json:"trajectory_position"`
	TrajectoryVelocity int `json:"trajectory_velocity"`
}

// TelemetrySample is what the leads reported on one tick. Closed loop fields are zero outside
// ModeClosedLoop.
type TelemetrySample struct {
	Tick   uint64        `json:"tick"`
	Time   time.Time     `json:"time"`
	Mode   Mode          `json:"mode"`
	Shaped float64       `json:"shaped"`
	Target float64       `json:"target"`
	Left   SideTelemetry `json:"left"`
	Right  SideTelemetry `json:"right"`
}

// String renders the diagnostic line printed by the Instrument.
func (s TelemetrySample) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\tOut%%:%v\tVel:%d\tOut1%%:%v\tVel1:%d",
		s.Left.OutputPercent, s.Left.Velocity, s.Right.OutputPercent, s.Right.Velocity)
	if s.Mode == ModeClosedLoop {
		fmt.Fprintf(&sb, "\terr:%d\terr1:%d\ttrg:%v", s.Left.ClosedLoopError, s.Right.ClosedLoopError, s.Target)
	}
	return sb.String()
}

type TelemetrySink interface {
	Publish(sample TelemetrySample)
}

// Instrument logs every PrintEvery'th sample.
type Instrument struct {
	PrintEvery int
	Log        logrus.FieldLogger

	count int
}

func NewInstrument(printEvery int) *Instrument {
	return &Instrument{PrintEvery: printEvery, Log: log.WithField("sink", "instrument")}
}

func (i *Instrument) Publish(sample TelemetrySample) {
	i.count++
	if i.PrintEvery > 1 && i.count < i.PrintEvery {
		return
	}
	i.count = 0
	i.Log.Info(sample.String())
}
