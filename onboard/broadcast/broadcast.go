package broadcast

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/team217/motionmagic/onboard"
)

var log = logrus.WithField("component", "broadcast")

// Hub fans telemetry out to every subscriber. Publishing never blocks; a subscriber that
// is not keeping up misses samples.
type Hub struct {
	lock    sync.RWMutex
	subs    map[int]chan onboard.TelemetrySample
	nextID  int
	latest  onboard.TelemetrySample
	has     bool
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan onboard.TelemetrySample)}
}

func (h *Hub) Publish(sample onboard.TelemetrySample) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.latest, h.has = sample, true
	for id, c := range h.subs {
		select {
		case c <- sample:
		default:
			h.dropped++
			log.WithField("subscriber", id).Debug("subscriber behind, dropping sample")
		}
	}
}

// Subscribe returns a channel of samples and a func that cancels the subscription and
// closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan onboard.TelemetrySample, func()) {
	c := make(chan onboard.TelemetrySample, buffer)

	h.lock.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = c
	h.lock.Unlock()

	var once sync.Once
	return c, func() {
		once.Do(func() {
			h.lock.Lock()
			delete(h.subs, id)
			h.lock.Unlock()
			close(c)
		})
	}
}

// Latest is the most recent sample, ok is false until something has been published.
func (h *Hub) Latest() (sample onboard.TelemetrySample, ok bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.latest, h.has
}

func (h *Hub) Subscribers() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.dropped
}
