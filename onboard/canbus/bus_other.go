//go:build !linux

package canbus

import (
	"runtime"

	deverrors "github.com/team217/motionmagic/onboard/errors"
)

// CANBus is only backed by SocketCAN on linux. Use a Loopback elsewhere.
type CANBus struct {
	listeners
}

func NewCANBus(ifname string) (bus *CANBus, err error) {
	return nil, deverrors.IncorrectPlatformError{
		Name:   runtime.GOOS,
		Action: "open socketcan interface " + ifname,
	}
}

func (c *CANBus) SendMsg(msg CANMsg) error {
	return ERR_BUS_CLOSED
}

func (c *CANBus) Close() error {
	return nil
}
