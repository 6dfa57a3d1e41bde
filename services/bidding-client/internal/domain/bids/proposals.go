package bids

import (
	"sync"
)

// DefaultMinIncrement is the smallest amount a proposal must exceed the highest bid by
const DefaultMinIncrement int64 = 1

// HighestBidReader reads the current highest bid of an item
type HighestBidReader interface {
	Get(itemID string) (HighestBid, bool)
}

// ProposalEngine stages per-item bid amounts before submission.
// Step sizes belong to the caller; the engine only enforces the floor.
type ProposalEngine struct {
	mu           sync.Mutex
	proposals    map[string]Proposal
	highest      HighestBidReader
	minIncrement int64
}

// NewProposalEngine creates an engine reading live highest bids from highest
func NewProposalEngine(highest HighestBidReader, minIncrement int64) *ProposalEngine {
	if minIncrement < 1 {
		minIncrement = DefaultMinIncrement
	}
	return &ProposalEngine{
		proposals:    make(map[string]Proposal),
		highest:      highest,
		minIncrement: minIncrement,
	}
}

// Propose stages or adjusts the proposal for an item. A new proposal starts at
// max(floor, highest) + delta; an existing one moves by delta. Either way the
// result is clamped to at least max(floor, highest) + the minimum increment.
func (e *ProposalEngine) Propose(itemID, userID string, delta, floor int64) Proposal {
	base := e.base(itemID, floor)
	minimum := base + e.minIncrement

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.proposals[itemID]
	if !ok {
		p = Proposal{ItemID: itemID, Amount: base}
	}
	p.Amount += delta
	if p.Amount < minimum {
		p.Amount = minimum
	}
	if userID != "" {
		p.UserID = userID
	}
	e.proposals[itemID] = p
	return p
}

// Get returns the staged proposal for an item
func (e *ProposalEngine) Get(itemID string) (Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.proposals[itemID]
	return p, ok
}

// IsSubmittable reports whether the staged proposal strictly exceeds the live
// highest bid. It uses the same comparator as Tracker.Apply.
func (e *ProposalEngine) IsSubmittable(itemID string) bool {
	p, ok := e.Get(itemID)
	if !ok {
		return false
	}
	return exceedsHighest(e.highest, p)
}

// Discard drops the proposal for an item and reports whether one existed
func (e *ProposalEngine) Discard(itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.proposals[itemID]
	delete(e.proposals, itemID)
	return ok
}

// DiscardSubmitted drops the proposal for an item only if it still holds
// amount. A proposal moved after submission is kept.
func (e *ProposalEngine) DiscardSubmitted(itemID string, amount int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.proposals[itemID]
	if !ok || p.Amount != amount {
		return false
	}
	delete(e.proposals, itemID)
	return true
}

// DiscardAll drops every proposal, e.g. at session end
func (e *ProposalEngine) DiscardAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proposals = make(map[string]Proposal)
}

func (e *ProposalEngine) base(itemID string, floor int64) int64 {
	base := floor
	if h, ok := e.highest.Get(itemID); ok && h.Amount > base {
		base = h.Amount
	}
	return base
}

func exceedsHighest(highest HighestBidReader, p Proposal) bool {
	h, ok := highest.Get(p.ItemID)
	if !ok {
		return true
	}
	return p.Amount > h.Amount
}
