package bidding

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// DefaultPerPage is the catalog page size when a query does not set one
const DefaultPerPage = 10

// catalog holds the items and auctions read from the ledger and the local bid
// history. Descriptive fields are never mutated; only the derived sold flag is.
type catalog struct {
	mu       sync.RWMutex
	items    map[string]auctions.Item
	order    []string
	auctions map[string]auctions.Auction
	history  map[string][]bids.Bid
	seen     map[uuid.UUID]struct{}
}

func newCatalog() *catalog {
	return &catalog{
		items:    make(map[string]auctions.Item),
		auctions: make(map[string]auctions.Auction),
		history:  make(map[string][]bids.Bid),
		seen:     make(map[uuid.UUID]struct{}),
	}
}

// replace swaps in a fresh ledger read. Sold flags already set survive.
func (c *catalog) replace(items []auctions.Item, ledger []bids.Bid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]auctions.Item, len(items))
	order := make([]string, 0, len(items))
	auctionsByID := make(map[string]auctions.Auction)
	for _, item := range items {
		if prev, ok := c.items[item.ID]; ok && prev.Sold {
			item.Sold = true
		}
		if _, dup := next[item.ID]; !dup {
			order = append(order, item.ID)
		}
		next[item.ID] = item
		if item.Auction.ID != "" {
			auctionsByID[item.Auction.ID] = item.Auction
		}
	}
	c.items = next
	c.order = order
	c.auctions = auctionsByID

	sorted := append([]bids.Bid(nil), ledger...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	c.history = make(map[string][]bids.Bid)
	c.seen = make(map[uuid.UUID]struct{})
	for _, b := range sorted {
		c.appendLocked(b)
	}
}

func (c *catalog) item(id string) (auctions.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

func (c *catalog) auction(id string) (auctions.Auction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.auctions[id]
	return a, ok
}

func (c *catalog) allAuctions() []auctions.Auction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]auctions.Auction, 0, len(c.auctions))
	for _, a := range c.auctions {
		all = append(all, a)
	}
	return all
}

// list returns items in catalog order
func (c *catalog) list() []auctions.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]auctions.Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c *catalog) itemIDsInAuction(auctionID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, id := range c.order {
		if c.items[id].Auction.ID == auctionID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *catalog) markSold(auctionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, item := range c.items {
		if item.Auction.ID == auctionID {
			item.Sold = true
			c.items[id] = item
		}
	}
}

// categories returns distinct categories in catalog order
func (c *catalog) categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, id := range c.order {
		cat := c.items[id].Category
		if cat == "" {
			continue
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

func (c *catalog) appendHistory(b bids.Bid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(b)
}

// appendLocked records a bid once; replays of an event with the same id are dropped
func (c *catalog) appendLocked(b bids.Bid) {
	if b.ID != uuid.Nil {
		if _, dup := c.seen[b.ID]; dup {
			return
		}
		c.seen[b.ID] = struct{}{}
	}
	c.history[b.ItemID] = append(c.history[b.ItemID], b)
}

func (c *catalog) bidHistory(itemID string) []bids.Bid {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]bids.Bid(nil), c.history[itemID]...)
}
