package bids

import (
	"sort"
	"sync"
	"time"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
)

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithOutbidHandler sets the callback for outbid notices
func WithOutbidHandler(fn func(OutbidNotice)) TrackerOption {
	return func(t *Tracker) {
		t.onOutbid = fn
	}
}

// WithChangeHandler sets the callback invoked whenever an item's highest bid changes
func WithChangeHandler(fn func(HighestBid)) TrackerOption {
	return func(t *Tracker) {
		t.onChange = fn
	}
}

// WithTrackerClock overrides the time source used for floor entries
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker is the in-memory projection of the highest bid per item.
// Amounts never regress: every mutation keeps the max.
type Tracker struct {
	mu       sync.RWMutex
	entries  map[string]HighestBid
	onOutbid func(OutbidNotice)
	onChange func(HighestBid)
	now      func() time.Time
}

// NewTracker creates an empty tracker
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		entries: make(map[string]HighestBid),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Seed rebuilds the projection from a full ledger read. Every item gets an entry:
// its highest bid, or a floor at the item price held by SystemUserID. An entry
// that is already higher than the seeded value is kept, so a reseed never
// regresses what readers have seen.
func (t *Tracker) Seed(items []auctions.Item, bids []Bid) {
	best := make(map[string]Bid, len(items))
	for _, b := range bids {
		current, ok := best[b.ItemID]
		if !ok || b.Amount > current.Amount ||
			(b.Amount == current.Amount && b.Timestamp.Before(current.Timestamp)) {
			best[b.ItemID] = b
		}
	}

	now := t.now()
	seeded := make(map[string]HighestBid, len(items))
	for _, item := range items {
		if b, ok := best[item.ID]; ok {
			seeded[item.ID] = highestFromBid(b)
			continue
		}
		seeded[item.ID] = HighestBid{
			ItemID:    item.ID,
			UserID:    SystemUserID,
			Amount:    item.Price,
			Timestamp: now,
		}
	}

	var (
		changed []HighestBid
		outbids []OutbidNotice
	)

	t.mu.Lock()
	for id, next := range seeded {
		prev, ok := t.entries[id]
		if ok && prev.Amount >= next.Amount {
			seeded[id] = prev
			continue
		}
		changed = append(changed, next)
		if ok {
			if notice, outbid := outbidNotice(prev, next, now); outbid {
				outbids = append(outbids, notice)
			}
		}
	}
	t.entries = seeded
	t.mu.Unlock()

	t.emit(changed, outbids)
}

// Apply folds one ledger change into the projection. The entry is replaced only
// when the bid is strictly higher or the item is unknown, which makes Apply
// idempotent and safe against reordered lower events. It returns the resulting
// entry and whether it changed.
func (t *Tracker) Apply(bid Bid) (HighestBid, bool) {
	next := highestFromBid(bid)

	t.mu.Lock()
	prev, ok := t.entries[bid.ItemID]
	if ok && bid.Amount <= prev.Amount {
		t.mu.Unlock()
		return prev, false
	}
	t.entries[bid.ItemID] = next
	t.mu.Unlock()

	var outbids []OutbidNotice
	if ok {
		if notice, outbid := outbidNotice(prev, next, t.now()); outbid {
			outbids = append(outbids, notice)
		}
	}
	t.emit([]HighestBid{next}, outbids)
	return next, true
}

// Get returns the highest bid tracked for an item
func (t *Tracker) Get(itemID string) (HighestBid, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.entries[itemID]
	return h, ok
}

// All returns a snapshot of every entry ordered by item id
func (t *Tracker) All() []HighestBid {
	t.mu.RLock()
	all := make([]HighestBid, 0, len(t.entries))
	for _, h := range t.entries {
		all = append(all, h)
	}
	t.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].ItemID < all[j].ItemID
	})
	return all
}

// HeldBy returns the entries whose highest bid is held by userID
func (t *Tracker) HeldBy(userID string) []HighestBid {
	var held []HighestBid
	for _, h := range t.All() {
		if h.IsHeldBy(userID) {
			held = append(held, h)
		}
	}
	return held
}

func (t *Tracker) emit(changed []HighestBid, outbids []OutbidNotice) {
	if t.onChange != nil {
		for _, h := range changed {
			t.onChange(h)
		}
	}
	if t.onOutbid != nil {
		for _, n := range outbids {
			t.onOutbid(n)
		}
	}
}

// outbidNotice addresses the previous holder when a different user overtakes them.
// The synthetic floor holder is not a user and is never notified.
func outbidNotice(prev, next HighestBid, at time.Time) (OutbidNotice, bool) {
	if prev.UserID == "" || prev.UserID == SystemUserID {
		return OutbidNotice{}, false
	}
	if prev.UserID == next.UserID || next.Amount <= prev.Amount {
		return OutbidNotice{}, false
	}
	return OutbidNotice{
		ItemID:         next.ItemID,
		UserID:         prev.UserID,
		PreviousAmount: prev.Amount,
		NewAmount:      next.Amount,
		At:             at,
	}, true
}

func highestFromBid(b Bid) HighestBid {
	return HighestBid{
		ItemID:    b.ItemID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		Timestamp: b.Timestamp,
	}
}
