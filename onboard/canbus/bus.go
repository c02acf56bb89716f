package canbus

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "canbus")

var (
	ERR_BUS_CLOSED = errors.New("bus is closed")
)

type CANBusInterface interface {
	// AddListener routes every frame addressed to the device number to rxchan.
	AddListener(device uint8, rxchan chan CANMsg)
	SendMsg(msg CANMsg) error
}

// listeners fans received frames out by device number. Delivery blocks on the listener
// channel, so listeners are expected to be buffered and drained by their own goroutine.
type listeners struct {
	lock     sync.RWMutex
	rx       map[uint8]chan CANMsg
	monitors []chan CANMsg
}

func newListeners() listeners {
	return listeners{rx: make(map[uint8]chan CANMsg)}
}

func (l *listeners) AddListener(device uint8, rxchan chan CANMsg) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.rx[device] = rxchan
}

// AddMonitor receives a copy of every frame regardless of device number.
func (l *listeners) AddMonitor(rxchan chan CANMsg) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.monitors = append(l.monitors, rxchan)
}

func (l *listeners) deliver(msg CANMsg) {
	l.lock.RLock()
	c, ok := l.rx[msg.Arbitration().Device]
	monitors := l.monitors
	l.lock.RUnlock()

	for _, m := range monitors {
		select {
		case m <- msg:
		default:
		}
	}

	if !ok || c == nil {
		return
	}
	c <- msg
}
