package hardware

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ERR_SHORT_PAYLOAD = errors.New("payload too short for frame")
)

const (
	paramPayloadLength   = 7
	controlPayloadLength = 5
	statusPayloadLength  = 8
)

// ParamValue is the payload of a parameter write and of its acknowledgement:
//
//	[0:2] param, little endian
//	[2]   ordinal (slot, pid index or status frame)
//	[3:7] value, float32 little endian
type ParamValue struct {
	Param   Param
	Ordinal uint8
	Value   float64
}

func (p ParamValue) Encode() []byte {
	data := make([]byte, paramPayloadLength)
	binary.LittleEndian.PutUint16(data[0:2], uint16(p.Param))
	data[2] = p.Ordinal
	binary.LittleEndian.PutUint32(data[3:7], math.Float32bits(float32(p.Value)))
	return data
}

func DecodeParam(data []byte) (p ParamValue, err error) {
	if len(data) < paramPayloadLength {
		return p, ERR_SHORT_PAYLOAD
	}
	p.Param = Param(binary.LittleEndian.Uint16(data[0:2]))
	p.Ordinal = data[2]
	p.Value = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[3:7])))
	return p, nil
}

// ControlFrame is the payload of a control command:
//
//	[0]   control mode
//	[1:5] demand, float32 little endian. Follower mode carries the leader's device id.
type ControlFrame struct {
	Mode   ControlMode
	Demand float64
}

func (c ControlFrame) Encode() []byte {
	data := make([]byte, controlPayloadLength)
	data[0] = byte(c.Mode)
	binary.LittleEndian.PutUint32(data[1:5], math.Float32bits(float32(c.Demand)))
	return data
}

func DecodeControl(data []byte) (c ControlFrame, err error) {
	if len(data) < controlPayloadLength {
		return c, ERR_SHORT_PAYLOAD
	}
	c.Mode = ControlMode(data[0])
	c.Demand = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[1:5])))
	return c, nil
}
