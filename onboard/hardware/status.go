package hardware

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Status is the most recent telemetry pushed by a device. Velocities are in sensor units
// per 100ms, positions and errors in sensor units.
type Status struct {
	OutputPercent      float64
	Position           int32
	Velocity           int32
	ClosedLoopError    int32
	ClosedLoopTarget   int32
	TrajectoryPosition int32
	TrajectoryVelocity int32
	Updated            time.Time
}

// EncodeStatus builds the payload the device sends for a frame.
func EncodeStatus(frame StatusFrame, s Status) ([]byte, error) {
	data := make([]byte, statusPayloadLength)
	switch frame {
	case Status1General:
		binary.LittleEndian.PutUint32(data[0:4], math.Float32bits(float32(s.OutputPercent)))
	case Status2Feedback0:
		putPair(data, s.Position, s.Velocity)
	case Status10MotionMagic:
		putPair(data, s.TrajectoryPosition, s.TrajectoryVelocity)
	case Status13BasePIDF0:
		putPair(data, s.ClosedLoopError, s.ClosedLoopTarget)
	default:
		return nil, fmt.Errorf("unknown status frame %d", frame)
	}
	return data, nil
}

func (s *Status) apply(frame StatusFrame, data []byte, now time.Time) error {
	if len(data) < statusPayloadLength {
		return ERR_SHORT_PAYLOAD
	}
	switch frame {
	case Status1General:
		s.OutputPercent = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])))
	case Status2Feedback0:
		s.Position, s.Velocity = pair(data)
	case Status10MotionMagic:
		s.TrajectoryPosition, s.TrajectoryVelocity = pair(data)
	case Status13BasePIDF0:
		s.ClosedLoopError, s.ClosedLoopTarget = pair(data)
	default:
		return fmt.Errorf("unknown status frame %d", frame)
	}
	s.Updated = now
	return nil
}

func putPair(data []byte, a, b int32) {
	binary.LittleEndian.PutUint32(data[0:4], uint32(a))
	binary.LittleEndian.PutUint32(data[4:8], uint32(b))
}

func pair(data []byte) (a, b int32) {
	return int32(binary.LittleEndian.Uint32(data[0:4])), int32(binary.LittleEndian.Uint32(data[4:8]))
}
