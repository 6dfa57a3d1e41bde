package bids

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
)

// DefaultSubmitTimeout bounds a single ledger write
const DefaultSubmitTimeout = 10 * time.Second

// AuctionGate returns the live status of the auction an item belongs to
type AuctionGate func(itemID string) (auctions.Status, error)

// ReceiptStatus describes what Submit did
type ReceiptStatus string

const (
	// ReceiptAccepted means the ledger accepted the write. Whether the bid is the
	// highest is decided by the ledger and arrives through the change feed.
	ReceiptAccepted ReceiptStatus = "accepted"
	// ReceiptInFlight means another submission for the item was outstanding and
	// nothing was written.
	ReceiptInFlight ReceiptStatus = "in_flight"
)

// Receipt is the result of a Submit call that did not fail
type Receipt struct {
	BidID     uuid.UUID
	ItemID    string
	UserID    string
	Amount    int64
	Status    ReceiptStatus
	Submitted time.Time
}

// Settlement reports how the ledger resolved an accepted submission
type Settlement struct {
	Receipt Receipt
	Highest HighestBid
	Won     bool
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithSettlementHandler sets the callback for resolved submissions
func WithSettlementHandler(fn func(Settlement)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onSettled = fn
	}
}

// WithInFlightHandler sets the callback invoked when an item enters or leaves flight
func WithInFlightHandler(fn func(itemID string, inFlight bool)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onInFlight = fn
	}
}

// WithSubmitTimeout sets the transport deadline for a ledger write
func WithSubmitTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCoordinatorClock overrides the time source for bid timestamps
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator submits staged proposals to the ledger, one in flight per item.
// It never decides locally who won: settlement waits for the tracker to show
// the ledger's view of the item.
type Coordinator struct {
	mu        sync.Mutex
	inFlight  map[string]struct{}
	awaiting  map[string]Receipt
	ledger    LedgerWriter
	identity  Identity
	proposals *ProposalEngine
	highest   HighestBidReader
	gate      AuctionGate

	timeout    time.Duration
	onSettled  func(Settlement)
	onInFlight func(itemID string, inFlight bool)
	now        func() time.Time
}

// NewCoordinator creates a submission coordinator
func NewCoordinator(
	ledger LedgerWriter,
	identity Identity,
	proposals *ProposalEngine,
	highest HighestBidReader,
	gate AuctionGate,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		inFlight:  make(map[string]struct{}),
		awaiting:  make(map[string]Receipt),
		ledger:    ledger,
		identity:  identity,
		proposals: proposals,
		highest:   highest,
		gate:      gate,
		timeout:   DefaultSubmitTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit writes the staged proposal for an item to the ledger. A submission
// already in flight for the item makes this a no-op with ReceiptInFlight.
// Errors are ErrAuctionNotOpen, ErrAuthRequired, ErrNoProposal, ErrUnknownItem,
// ErrStaleProposal, or ErrTransportFailure. Failures leave the proposal and
// the tracker untouched.
func (c *Coordinator) Submit(ctx context.Context, itemID string) (Receipt, error) {
	if receipt, busy := c.inFlightReceipt(itemID); busy {
		return receipt, nil
	}

	status, err := c.gate(itemID)
	if err != nil {
		return Receipt{}, err
	}
	if !status.AcceptsBids() {
		return Receipt{}, ErrAuctionNotOpen
	}

	userID, ok := c.identity.CurrentUserID()
	if !ok || userID == "" {
		return Receipt{}, ErrAuthRequired
	}

	proposal, ok := c.proposals.Get(itemID)
	if !ok {
		return Receipt{}, ErrNoProposal
	}
	if !exceedsHighest(c.highest, proposal) {
		return Receipt{}, ErrStaleProposal
	}

	receipt := Receipt{
		BidID:     uuid.New(),
		ItemID:    itemID,
		UserID:    userID,
		Amount:    proposal.Amount,
		Status:    ReceiptAccepted,
		Submitted: c.now(),
	}

	c.mu.Lock()
	if _, busy := c.inFlight[itemID]; busy {
		c.mu.Unlock()
		return Receipt{ItemID: itemID, Status: ReceiptInFlight}, nil
	}
	c.inFlight[itemID] = struct{}{}
	// Registered before the write: the change event may beat the RPC response
	c.awaiting[itemID] = receipt
	c.mu.Unlock()
	c.notifyInFlight(itemID, true)

	writeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.ledger.AppendBid(writeCtx, Bid{
		ID:        receipt.BidID,
		ItemID:    itemID,
		UserID:    userID,
		Amount:    proposal.Amount,
		Timestamp: receipt.Submitted,
	})
	cancel()

	c.mu.Lock()
	delete(c.inFlight, itemID)
	if err != nil {
		if pending, ok := c.awaiting[itemID]; ok && pending.BidID == receipt.BidID {
			delete(c.awaiting, itemID)
		}
	}
	c.mu.Unlock()
	c.notifyInFlight(itemID, false)

	if err != nil {
		return Receipt{}, classifyWriteError(err)
	}

	if h, ok := c.highest.Get(itemID); ok {
		c.Observe(h)
	}
	return receipt, nil
}

// InFlight reports whether a submission for the item is outstanding
func (c *Coordinator) InFlight(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[itemID]
	return ok
}

// Awaiting returns the accepted submission still waiting for the ledger's verdict
func (c *Coordinator) Awaiting(itemID string) (Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.awaiting[itemID]
	return r, ok
}

// Observe is fed every change of the tracked highest bid. It settles the
// pending submission for the item once the ledger has recorded a bid at or
// above it: won when the holder is the submitter, lost otherwise.
func (c *Coordinator) Observe(h HighestBid) {
	c.mu.Lock()
	receipt, ok := c.awaiting[h.ItemID]
	if !ok || h.Amount < receipt.Amount {
		c.mu.Unlock()
		return
	}
	delete(c.awaiting, h.ItemID)
	c.mu.Unlock()

	if c.onSettled != nil {
		c.onSettled(Settlement{
			Receipt: receipt,
			Highest: h,
			Won:     h.UserID == receipt.UserID,
		})
	}
}

func (c *Coordinator) inFlightReceipt(itemID string) (Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[itemID]; !busy {
		return Receipt{}, false
	}
	return Receipt{ItemID: itemID, Status: ReceiptInFlight}, true
}

func (c *Coordinator) notifyInFlight(itemID string, inFlight bool) {
	if c.onInFlight != nil {
		c.onInFlight(itemID, inFlight)
	}
}

// classifyWriteError keeps taxonomy errors reported by the ledger and folds
// everything else, timeouts included, into ErrTransportFailure.
func classifyWriteError(err error) error {
	switch {
	case errors.Is(err, ErrStaleProposal),
		errors.Is(err, ErrAuctionNotOpen),
		errors.Is(err, ErrAuthRequired),
		errors.Is(err, ErrUnknownItem),
		errors.Is(err, ErrNoProposal),
		errors.Is(err, ErrTransportFailure):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
}
