package errors

import (
	"fmt"
	"time"
)

// ConfigTimeoutError is returned when a device does not acknowledge a configuration
// write within the configured timeout.
type ConfigTimeoutError struct {
	Device   uint8
	Param    string
	Timeout  time.Duration
	Critical bool // the closed loop cannot run correctly without this value
}

func (err ConfigTimeoutError) Error() string {
	return fmt.Sprintf("device %d: %s not acknowledged within %v", err.Device, err.Param, err.Timeout)
}

// CommandDispatchError wraps a failure to put a control frame on the bus.
type CommandDispatchError struct {
	Device uint8
	Mode   string
	Err    error
}

func (err CommandDispatchError) Error() string {
	return fmt.Sprintf("device %d: unable to dispatch %s command: %v", err.Device, err.Mode, err.Err)
}

func (err CommandDispatchError) Cause() error {
	return err.Err
}

func (err CommandDispatchError) Unwrap() error {
	return err.Err
}

type ChannelNameError struct {
	Name string
}

func (err ChannelNameError) Error() string {
	return fmt.Sprintf("no such channel %s", err.Name)
}

type IncorrectPlatformError struct {
	Name   string
	Action string
}

func (err IncorrectPlatformError) Error() string {
	if len(err.Action) == 0 {
		err.Action = "UNKOWN"
	}
	if len(err.Name) == 0 {
		err.Name = "UNKOWN"
	}

	return fmt.Sprintf("incorrect platform; platform %s is unable to perform action %s", err.Name, err.Action)
}
