package canbus

import "sync"

// Loopback is an in-process bus with two ends. Frames sent on the host end are delivered
// to listeners on the device end and vice versa. Used to run against simulated devices.
type Loopback struct {
	host, device *loopbackEnd

	lock   sync.RWMutex
	closed bool
}

type loopbackEnd struct {
	listeners
	bus  *Loopback
	peer *loopbackEnd
}

func NewLoopback() *Loopback {
	l := new(Loopback)
	l.host = &loopbackEnd{listeners: newListeners(), bus: l}
	l.device = &loopbackEnd{listeners: newListeners(), bus: l}
	l.host.peer = l.device
	l.device.peer = l.host
	return l
}

// Host is the end the robot code talks to.
func (l *Loopback) Host() CANBusInterface {
	return l.host
}

// Device is the end simulated devices listen on.
func (l *Loopback) Device() CANBusInterface {
	return l.device
}

// Close makes every subsequent send fail with ERR_BUS_CLOSED.
func (l *Loopback) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.closed = true
	return nil
}

func (l *Loopback) isClosed() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.closed
}

func (e *loopbackEnd) SendMsg(msg CANMsg) error {
	if len(msg.Data) > msgMaxLength {
		return ERR_DATA_TOO_LONG
	}
	if e.bus.isClosed() {
		return ERR_BUS_CLOSED
	}

	// the sender may reuse its buffer once we return
	data := make([]byte, len(msg.Data))
	copy(data, msg.Data)
	msg.Data = data

	e.peer.deliver(msg)
	return nil
}
