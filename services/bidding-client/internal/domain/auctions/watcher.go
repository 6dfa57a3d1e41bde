package auctions

import (
	"context"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a Watcher re-evaluates its auctions
const DefaultWatchInterval = time.Second

// Transition is a change of derived status observed by a Watcher
type Transition struct {
	AuctionID string
	From      Status
	To        Status
	At        time.Time
}

type watchedAuction struct {
	auction Auction
	last    Status
	fired   map[Status]bool
}

// Watcher re-classifies a set of auctions on a fixed interval and reports each
// status edge at most once per auction instance. An auction whose start time or
// duration changes (a re-opened auction) is a new instance.
type Watcher struct {
	mu           sync.Mutex
	auctions     map[string]*watchedAuction
	onTransition func(Transition)
	interval     time.Duration
	now          func() time.Time
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithWatcherClock overrides the time source used by Run
func WithWatcherClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		w.now = now
	}
}

// NewWatcher creates a watcher that calls onTransition for every edge
func NewWatcher(interval time.Duration, onTransition func(Transition), opts ...WatcherOption) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w := &Watcher{
		auctions:     make(map[string]*watchedAuction),
		onTransition: onTransition,
		interval:     interval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Track starts watching an auction. The status at now is the baseline and does
// not produce a transition.
func (w *Watcher) Track(a Auction, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.auctions[a.ID]; ok {
		if existing.auction.StartTime.Equal(a.StartTime) && existing.auction.DurationMinutes == a.DurationMinutes {
			existing.auction = a
			return
		}
	}

	w.auctions[a.ID] = &watchedAuction{
		auction: a,
		last:    Classify(a, now),
		fired:   make(map[Status]bool),
	}
}

// Untrack stops watching an auction
func (w *Watcher) Untrack(auctionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.auctions, auctionID)
}

// Status returns the last observed status of a tracked auction
func (w *Watcher) Status(auctionID string) (Status, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wa, ok := w.auctions[auctionID]
	if !ok {
		return "", false
	}
	return wa.last, true
}

// Observe re-classifies every tracked auction at now and fires callbacks for
// edges that have not fired before. It returns the transitions it fired.
func (w *Watcher) Observe(now time.Time) []Transition {
	w.mu.Lock()
	var fired []Transition
	for id, wa := range w.auctions {
		current := Classify(wa.auction, now)
		if current == wa.last {
			continue
		}
		from := wa.last
		wa.last = current
		if wa.fired[current] {
			continue
		}
		wa.fired[current] = true
		fired = append(fired, Transition{AuctionID: id, From: from, To: current, At: now})
	}
	w.mu.Unlock()

	// Callbacks run outside the lock so they may call back into the watcher
	if w.onTransition != nil {
		for _, t := range fired {
			w.onTransition(t)
		}
	}
	return fired
}

// Run observes on every tick until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Observe(w.now())
		}
	}
}
