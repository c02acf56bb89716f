package hardware

import (
	"bytes"
	"time"

	"github.com/team217/motionmagic/onboard/canbus"
	deverrors "github.com/team217/motionmagic/onboard/errors"
)

const (
	CONFIG_ATTEMPTS    = 5
	MIN_RETRY_INTERVAL = time.Millisecond
)

// pendingKey identifies the acknowledgement a command is waiting for.
type pendingKey struct {
	api     uint16
	param   Param
	ordinal uint8
}

// ParamCommand writes one configuration parameter to a device.
type ParamCommand struct {
	talon *TalonSRX
	value ParamValue
}

func (c *ParamCommand) Msg() canbus.CANMsg {
	return canbus.NewMsg(c.talon.arbitration(APIParamSet), c.value.Encode())
}

// Process sends the parameter and waits for the device to echo it back.
// The write is resent every timeout/CONFIG_ATTEMPTS until it is acknowledged or the timeout
// elapses, in which case a ConfigTimeoutError is returned.
// A zero timeout sends once and returns without waiting.
func (c *ParamCommand) Process(timeout time.Duration) error {
	msg := c.Msg()
	key := pendingKey{api: APIParamResponse, param: c.value.Param, ordinal: c.value.Ordinal}

	_, err := c.talon.transact(msg, key, timeout, func(resp canbus.CANMsg) bool {
		return bytes.Equal(resp.Data, msg.Data)
	})
	if _, ok := err.(deverrors.ConfigTimeoutError); ok {
		return deverrors.ConfigTimeoutError{
			Device:   c.talon.id,
			Param:    c.value.Param.String(),
			Timeout:  timeout,
			Critical: c.value.Param.Critical(),
		}
	}
	return err
}

// transact sends req and waits for a response routed to key that passes accept.
func (t *TalonSRX) transact(req canbus.CANMsg, key pendingKey, timeout time.Duration, accept func(canbus.CANMsg) bool) (resp canbus.CANMsg, err error) {
	if timeout <= 0 {
		return resp, t.send(req)
	}

	ack := make(chan canbus.CANMsg, 1)
	t.register(key, ack)
	defer t.unregister(key, ack)

	interval := timeout / CONFIG_ATTEMPTS
	if interval < MIN_RETRY_INTERVAL {
		interval = MIN_RETRY_INTERVAL
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	retry := time.NewTicker(interval)
	defer retry.Stop()

	if err = t.send(req); err != nil {
		return resp, err
	}

	for {
		select {
		case resp = <-ack:
			if accept(resp) {
				return resp, nil
			}

		case <-retry.C:
			if err = t.send(req); err != nil {
				return resp, err
			}

		case <-deadline.C:
			return resp, deverrors.ConfigTimeoutError{Device: t.id, Timeout: timeout}
		}
	}
}

func (t *TalonSRX) register(key pendingKey, ack chan canbus.CANMsg) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.pending[key] = ack
}

func (t *TalonSRX) unregister(key pendingKey, ack chan canbus.CANMsg) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.pending[key] == ack {
		delete(t.pending, key)
	}
}

func (t *TalonSRX) routeACK(key pendingKey, msg canbus.CANMsg) {
	t.lock.Lock()
	ack := t.pending[key]
	t.lock.Unlock()

	if ack == nil {
		return
	}
	select {
	case ack <- msg:
	default:
	}
}
