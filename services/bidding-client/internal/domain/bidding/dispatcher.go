package bidding

import (
	"context"
	"log/slog"
	"sync"
)

// dispatcher fans changes out to subscribers from its own goroutine so that
// publishers (the feed consumer, the clock) never block on a slow listener.
type dispatcher struct {
	mu        sync.Mutex
	listeners map[uint64]func(Change)
	nextID    uint64
	queue     []Change
	wake      chan struct{}
	stopped   bool
	logger    *slog.Logger
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		listeners: make(map[uint64]func(Change)),
		wake:      make(chan struct{}, 1),
		logger:    logger,
	}
}

func (d *dispatcher) subscribe(fn func(Change)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.listeners, id)
		})
	}
}

// publish enqueues a change without blocking
func (d *dispatcher) publish(c Change) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, c)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run(ctx context.Context) error {
	defer func() {
		d.mu.Lock()
		d.stopped = true
		d.queue = nil
		d.listeners = make(map[uint64]func(Change))
		d.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			pending := d.queue
			d.queue = nil
			listeners := make([]func(Change), 0, len(d.listeners))
			for _, fn := range d.listeners {
				listeners = append(listeners, fn)
			}
			d.mu.Unlock()

			if len(pending) == 0 {
				break
			}
			for _, c := range pending {
				if ctx.Err() != nil {
					return nil
				}
				for _, fn := range listeners {
					d.deliver(fn, c)
				}
			}
		}
	}
}

func (d *dispatcher) deliver(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Change listener panicked", "kind", c.Kind, "panic", r)
		}
	}()
	fn(c)
}
