package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

const topic = "notify:event"

// Dispatcher fans events out to notifiers on background goroutines. Publish
// only enqueues; delivery failures are logged and counted, never returned.
type Dispatcher struct {
	bus     EventBus.Bus
	timeout time.Duration

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher subscribes every notifier. Each delivery gets its own
// timeout context.
func NewDispatcher(timeout time.Duration, notifiers ...Notifier) (*Dispatcher, error) {
	d := &Dispatcher{bus: EventBus.New(), timeout: timeout}
	for _, n := range notifiers {
		if err := d.bus.SubscribeAsync(topic, d.deliverer(n), false); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dispatcher) deliverer(n Notifier) func(Event) {
	return func(ev Event) {
		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := n.Notify(ctx, ev); err != nil {
			d.failed.Add(1)
			log.WithField("event", ev.Kind).WithError(err).Warn("notification failed")
			return
		}
		d.delivered.Add(1)
	}
}

// Publish queues ev for every notifier. Events published after Close are
// dropped.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.WithField("event", ev.Kind).Debug("dispatcher closed, event dropped")
		return
	}
	d.bus.Publish(topic, ev)
}

// Close stops accepting events and waits for queued deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.bus.WaitAsync()
}

func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }
func (d *Dispatcher) Failed() int64    { return d.failed.Load() }
