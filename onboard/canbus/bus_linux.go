package canbus

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// CANBus is a raw SocketCAN socket bound to a single interface.
type CANBus struct {
	listeners

	fd        int
	txLock    sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewCANBus(ifname string) (bus *CANBus, err error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to find CAN interface %s", ifname)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open CAN socket")
	}

	// our own frames are never delivered back to our listeners
	if err = unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_LOOPBACK, 0); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "unable to disable CAN loopback")
	}

	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err = unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "unable to bind CAN socket to %s", ifname)
	}

	bus = &CANBus{
		listeners: newListeners(),
		fd:        fd,
		done:      make(chan struct{}),
	}

	go bus.reader()

	return
}

// SendMsg writes the frame synchronously so bus failures are reported to the caller.
func (c *CANBus) SendMsg(msg CANMsg) error {
	select {
	case <-c.done:
		return ERR_BUS_CLOSED
	default:
	}

	raw, err := msg.ToByteArray()
	if err != nil {
		return err
	}

	c.txLock.Lock()
	defer c.txLock.Unlock()

	if _, err = unix.Write(c.fd, raw); err != nil {
		return errors.Wrapf(err, "unable to write frame %s", msg.Arbitration())
	}
	return nil
}

func (c *CANBus) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = unix.Close(c.fd)
	})
	return err
}

func (c *CANBus) reader() {
	raw := make([]byte, frameLength)
	for {
		n, err := unix.Read(c.fd, raw)

		select {
		case <-c.done:
			return
		default:
		}

		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			log.WithError(err).Error("CAN read failed, stopping reader")
			return
		}
		if n < frameLength {
			continue
		}

		msg, err := MsgFromByteArray(raw)
		if err != nil {
			log.WithError(err).Debug("dropping frame")
			continue
		}

		c.deliver(msg)
	}
}
