package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	msgMaxLength = 8
	frameLength  = 16 // sizeof(struct can_frame)

	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7ff
	CAN_EFF_MASK = 0x1fffffff
)

// FRC CAN device types and manufacturer codes.
const (
	DeviceTypeBroadcast       = 0
	DeviceTypeMotorController = 2

	ManufacturerBroadcast = 0
	ManufacturerCTRE      = 4
)

// errors
var (
	ERR_DATA_TOO_LONG = errors.New("data length exceeds 8 bytes")
	ERR_SHORT_FRAME   = errors.New("raw frame shorter than 16 bytes")
	ERR_ERROR_FRAME   = errors.New("received an error frame")
)

type CANMsg struct {
	ID   uint32 // 29 bit arbitration id, see Arbitration
	Data []byte // raw data up to eight bytes. DLC is taken from len(Data).
}

// Arbitration is the FRC layout of an extended CAN id:
//
//	bits 28-24 device type
//	bits 23-16 manufacturer
//	bits 15-6  api (class << 4 | index)
//	bits 5-0   device number
type Arbitration struct {
	DeviceType   uint8
	Manufacturer uint8
	API          uint16
	Device       uint8
}

func (a Arbitration) ID() uint32 {
	return uint32(a.DeviceType&0x1f)<<24 |
		uint32(a.Manufacturer)<<16 |
		uint32(a.API&0x3ff)<<6 |
		uint32(a.Device&0x3f)
}

func (a Arbitration) String() string {
	return fmt.Sprintf("type=%d mfr=%d api=0x%03x dev=%d", a.DeviceType, a.Manufacturer, a.API, a.Device)
}

func ParseArbitration(id uint32) Arbitration {
	id &= CAN_EFF_MASK
	return Arbitration{
		DeviceType:   uint8(id >> 24 & 0x1f),
		Manufacturer: uint8(id >> 16 & 0xff),
		API:          uint16(id >> 6 & 0x3ff),
		Device:       uint8(id & 0x3f),
	}
}

func NewMsg(arb Arbitration, data []byte) CANMsg {
	return CANMsg{ID: arb.ID(), Data: data}
}

func (msg CANMsg) Arbitration() Arbitration {
	return ParseArbitration(msg.ID)
}

// ToByteArray encodes the message as a linux struct can_frame. FRC ids are always sent
// as extended frames.
func (msg *CANMsg) ToByteArray() (raw []byte, err error) {
	if len(msg.Data) > msgMaxLength {
		return nil, ERR_DATA_TOO_LONG
	}

	raw = make([]byte, frameLength)
	binary.LittleEndian.PutUint32(raw[0:4], msg.ID&CAN_EFF_MASK|CAN_EFF_FLAG)
	raw[4] = byte(len(msg.Data))
	copy(raw[8:], msg.Data)

	return
}

// MsgFromByteArray decodes a struct can_frame. The data is copied so raw may be reused.
func MsgFromByteArray(raw []byte) (msg CANMsg, err error) {
	if len(raw) < frameLength {
		return msg, ERR_SHORT_FRAME
	}

	oid := binary.LittleEndian.Uint32(raw[0:4])
	if oid&CAN_ERR_FLAG != 0 {
		return msg, ERR_ERROR_FRAME
	}

	if oid&CAN_EFF_FLAG != 0 {
		msg.ID = oid & CAN_EFF_MASK
	} else {
		msg.ID = oid & CAN_SFF_MASK
	}

	dataLength := int(raw[4])
	if dataLength > msgMaxLength {
		return msg, ERR_DATA_TOO_LONG
	}
	msg.Data = make([]byte, dataLength)
	copy(msg.Data, raw[8:8+dataLength])

	return msg, nil
}
