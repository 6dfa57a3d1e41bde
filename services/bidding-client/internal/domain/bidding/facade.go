package bidding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/floroz/livebid/pkg/money"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// Facade errors
var (
	ErrFacadeClosed   = errors.New("bidding facade is closed")
	ErrUnknownAuction = errors.New("auction not found")
)

// Config tunes the facade
type Config struct {
	SubmitTimeout        time.Duration
	ClockInterval        time.Duration
	MinIncrement         int64
	ReconnectMaxInterval time.Duration
}

// Dependencies are the collaborators the facade consumes
type Dependencies struct {
	Reader   bids.LedgerReader
	Writer   bids.LedgerWriter
	Feed     bids.ChangeFeed
	Notices  bids.NoticeFeed // optional
	Identity bids.Identity
	Logger   *slog.Logger
	Now      func() time.Time
}

// Facade is the composition root the UI layer talks to. It owns the tracker,
// proposal engine, coordinator and auction clock of one bidding session.
type Facade struct {
	cfg         Config
	reader      bids.LedgerReader
	feed        bids.ChangeFeed
	noticeFeed  bids.NoticeFeed
	identity    bids.Identity
	logger      *slog.Logger
	now         func() time.Time
	tracker     *bids.Tracker
	proposals   *bids.ProposalEngine
	coordinator *bids.Coordinator
	watcher     *auctions.Watcher
	catalog     *catalog
	dispatch    *dispatcher

	mu     sync.RWMutex
	closed bool
	status SyncStatus
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Open seeds the session from the ledger and starts the subscription, clock
// and change dispatch loops. The facade must be released with Close.
func Open(ctx context.Context, cfg Config, deps Dependencies) (*Facade, error) {
	if deps.Reader == nil || deps.Writer == nil || deps.Feed == nil || deps.Identity == nil {
		return nil, fmt.Errorf("reader, writer, feed and identity are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	f := &Facade{
		cfg:        cfg,
		reader:     deps.Reader,
		feed:       deps.Feed,
		noticeFeed: deps.Notices,
		identity:   deps.Identity,
		logger:     deps.Logger,
		now:        deps.Now,
		catalog:    newCatalog(),
		dispatch:   newDispatcher(deps.Logger),
		status:     SyncStatus{State: SyncConnecting, Since: deps.Now()},
	}

	f.tracker = bids.NewTracker(
		bids.WithChangeHandler(f.onHighestChanged),
		bids.WithOutbidHandler(f.onOutbid),
		bids.WithTrackerClock(f.now),
	)
	f.proposals = bids.NewProposalEngine(f.tracker, cfg.MinIncrement)
	f.coordinator = bids.NewCoordinator(
		deps.Writer,
		deps.Identity,
		f.proposals,
		f.tracker,
		f.itemStatus,
		bids.WithSubmitTimeout(cfg.SubmitTimeout),
		bids.WithCoordinatorClock(f.now),
		bids.WithSettlementHandler(f.onSettled),
		bids.WithInFlightHandler(f.onInFlight),
	)
	f.watcher = auctions.NewWatcher(cfg.ClockInterval, f.onTransition, auctions.WithWatcherClock(f.now))

	runCtx, cancel := context.WithCancel(context.Background())

	// The first subscription is handed to the feed loop, so startup reads the
	// ledger once. When the feed is down the loop retries in the background.
	first, err := f.subscribe(runCtx)
	if err != nil {
		f.logger.Warn("Ledger subscription unavailable, retrying in background", "error", err)
	}
	if err := f.reseed(ctx); err != nil {
		if first != nil {
			first.cancel()
		}
		cancel()
		return nil, fmt.Errorf("failed to seed from ledger: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	f.cancel = cancel
	f.group = group

	group.Go(func() error { return f.dispatch.run(groupCtx) })
	group.Go(func() error { return f.watcher.Run(groupCtx) })
	group.Go(func() error { return f.runFeed(groupCtx, first) })
	if f.noticeFeed != nil {
		group.Go(func() error { return f.runNotices(groupCtx) })
	}

	f.logger.Info("Bidding session opened", "items", len(f.catalog.list()))
	return f, nil
}

// Close stops every loop, drops listeners and discards staged proposals.
// A submission already sent cannot be recalled; its result is simply not awaited.
func (f *Facade) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	err := f.group.Wait()
	f.proposals.DiscardAll()
	f.setSync(SyncStopped, nil)
	f.logger.Info("Bidding session closed")
	return err
}

// Subscribe registers onChange for every subsequent change and returns a
// function that unregisters it.
func (f *Facade) Subscribe(onChange func(Change)) func() {
	return f.dispatch.subscribe(onChange)
}

// GetAuctionState classifies an auction at now
func (f *Facade) GetAuctionState(auctionID string, now time.Time) (AuctionState, error) {
	a, ok := f.catalog.auction(auctionID)
	if !ok {
		return AuctionState{}, ErrUnknownAuction
	}
	return AuctionState{
		Auction:   a,
		Status:    auctions.Classify(a, now),
		Remaining: auctions.TimeToBoundary(a, now),
	}, nil
}

// GetHighestBid returns the tracked highest bid of an item
func (f *Facade) GetHighestBid(itemID string) (bids.HighestBid, bool) {
	return f.tracker.Get(itemID)
}

// AdjustProposal stages or moves the proposal for an item by delta cents.
// It is only allowed while the item's auction is live.
func (f *Facade) AdjustProposal(itemID string, delta int64) (bids.Proposal, error) {
	if f.isClosed() {
		return bids.Proposal{}, ErrFacadeClosed
	}
	item, ok := f.catalog.item(itemID)
	if !ok {
		return bids.Proposal{}, bids.ErrUnknownItem
	}
	if !auctions.Classify(item.Auction, f.now()).AcceptsBids() {
		return bids.Proposal{}, bids.ErrAuctionNotOpen
	}

	userID, _ := f.identity.CurrentUserID()
	p := f.proposals.Propose(itemID, userID, delta, item.Price)
	f.dispatch.publish(Change{Kind: ChangeProposal, ItemID: itemID, Proposal: &p})
	return p, nil
}

// SubmitProposal sends the staged proposal for an item to the ledger. On
// acceptance the proposal is cleared unless it was moved while the write was
// in flight; on failure it is kept for a retry. Failed submissions are never
// retried automatically.
func (f *Facade) SubmitProposal(ctx context.Context, itemID string) (bids.Receipt, error) {
	if f.isClosed() {
		return bids.Receipt{}, ErrFacadeClosed
	}

	receipt, err := f.coordinator.Submit(ctx, itemID)
	if err != nil {
		f.logger.Warn("Bid submission failed", "item_id", itemID, "error", err)
		return bids.Receipt{}, err
	}
	if receipt.Status == bids.ReceiptAccepted {
		if f.proposals.DiscardSubmitted(itemID, receipt.Amount) {
			f.dispatch.publish(Change{Kind: ChangeProposal, ItemID: itemID})
		}
		f.logger.Info("Bid submitted", "item_id", itemID, "amount", receipt.Amount, "bid_id", receipt.BidID)
	}
	return receipt, nil
}

// DiscardProposal drops the staged proposal for an item, e.g. when the user
// navigates away
func (f *Facade) DiscardProposal(itemID string) {
	if f.proposals.Discard(itemID) {
		f.dispatch.publish(Change{Kind: ChangeProposal, ItemID: itemID})
	}
}

// ItemState returns the state machine position of an item at now
func (f *Facade) ItemState(itemID string, now time.Time) (ItemState, error) {
	item, ok := f.catalog.item(itemID)
	if !ok {
		return "", bids.ErrUnknownItem
	}
	return f.itemState(item, now), nil
}

// Item returns the view of a single item at now
func (f *Facade) Item(itemID string, now time.Time) (ItemView, error) {
	item, ok := f.catalog.item(itemID)
	if !ok {
		return ItemView{}, bids.ErrUnknownItem
	}
	userID, _ := f.identity.CurrentUserID()
	return f.view(item, userID, now), nil
}

// Items returns one page of the catalog filtered by auction and categories
func (f *Facade) Items(query ItemsQuery, now time.Time) ItemPage {
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	wanted := make(map[string]struct{}, len(query.Categories))
	for _, c := range query.Categories {
		wanted[c] = struct{}{}
	}

	var filtered []auctions.Item
	for _, item := range f.catalog.list() {
		if query.AuctionID != "" && item.Auction.ID != query.AuctionID {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[item.Category]; !ok {
				continue
			}
		}
		filtered = append(filtered, item)
	}

	totalPages := int(math.Max(1, math.Ceil(float64(len(filtered))/float64(perPage))))
	page := query.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(filtered) {
		end = len(filtered)
	}

	userID, _ := f.identity.CurrentUserID()
	views := make([]ItemView, 0, end-start)
	for _, item := range filtered[start:end] {
		views = append(views, f.view(item, userID, now))
	}

	return ItemPage{
		Items:      views,
		Page:       page,
		TotalPages: totalPages,
		Total:      len(filtered),
	}
}

// Categories returns the distinct item categories in catalog order
func (f *Facade) Categories() []string {
	return f.catalog.categories()
}

// OwnedItems returns the items whose highest bid is held by userID
func (f *Facade) OwnedItems(userID string) []bids.HighestBid {
	return f.tracker.HeldBy(userID)
}

// BidHistory returns every bid observed for an item, oldest first
func (f *Facade) BidHistory(itemID string) []bids.Bid {
	return f.catalog.bidHistory(itemID)
}

// SyncStatus reports the health of the ledger subscription
func (f *Facade) SyncStatus() SyncStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

func (f *Facade) view(item auctions.Item, userID string, now time.Time) ItemView {
	status := auctions.Classify(item.Auction, now)
	highest, ok := f.tracker.Get(item.ID)
	if !ok {
		highest = bids.HighestBid{ItemID: item.ID, UserID: bids.SystemUserID, Amount: item.Price}
	}

	v := ItemView{
		Item:         item,
		Status:       status,
		State:        f.itemState(item, now),
		Highest:      highest,
		OwnedByMe:    highest.IsHeldBy(userID),
		DisplayPrice: money.Format(highest.Amount),
	}
	v.Item.Sold = item.Sold || status == auctions.StatusClosed
	if p, ok := f.proposals.Get(item.ID); ok {
		v.Proposal = &p
		v.Submittable = f.proposals.IsSubmittable(item.ID)
	}
	return v
}

func (f *Facade) itemState(item auctions.Item, now time.Time) ItemState {
	switch auctions.Classify(item.Auction, now) {
	case auctions.StatusNotStarted:
		return ItemNotStarted
	case auctions.StatusClosed:
		return ItemClosed
	}
	if f.coordinator.InFlight(item.ID) {
		return ItemOpenSubmitting
	}
	if _, ok := f.proposals.Get(item.ID); ok {
		return ItemOpenProposed
	}
	return ItemOpenIdle
}

// itemStatus gates the coordinator. It classifies against the clock on every
// call so a closed auction is never served from a stale cache.
func (f *Facade) itemStatus(itemID string) (auctions.Status, error) {
	item, ok := f.catalog.item(itemID)
	if !ok {
		return "", bids.ErrUnknownItem
	}
	return auctions.Classify(item.Auction, f.now()), nil
}

func (f *Facade) isClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

func (f *Facade) setSync(state SyncState, err error) {
	f.mu.Lock()
	if f.status.State == state && err == nil {
		f.mu.Unlock()
		return
	}
	f.status = SyncStatus{State: state, LastError: err, Since: f.now()}
	status := f.status
	f.mu.Unlock()

	f.dispatch.publish(Change{Kind: ChangeSyncStatus, Sync: &status})
}

func (f *Facade) onHighestChanged(h bids.HighestBid) {
	f.dispatch.publish(Change{Kind: ChangeHighestBid, ItemID: h.ItemID, Highest: &h})
	f.coordinator.Observe(h)
}

// onOutbid forwards a notice only when it is addressed to the signed-in user
func (f *Facade) onOutbid(n bids.OutbidNotice) {
	userID, ok := f.identity.CurrentUserID()
	if !ok || userID != n.UserID {
		return
	}
	f.dispatch.publish(Change{Kind: ChangeOutbid, ItemID: n.ItemID, Outbid: &n})
}

func (f *Facade) onSettled(s bids.Settlement) {
	kind := ChangeSubmissionOutbid
	if s.Won {
		kind = ChangeItemWon
	}
	f.dispatch.publish(Change{Kind: kind, ItemID: s.Receipt.ItemID, Settlement: &s})
}

func (f *Facade) onInFlight(itemID string, inFlight bool) {
	f.dispatch.publish(Change{Kind: ChangeSubmission, ItemID: itemID, InFlight: inFlight})
}

// onTransition applies clock edges: proposals never survive into a new window
// or past the close, and closed auctions mark their items sold.
func (f *Facade) onTransition(t auctions.Transition) {
	for _, itemID := range f.catalog.itemIDsInAuction(t.AuctionID) {
		if f.proposals.Discard(itemID) {
			f.dispatch.publish(Change{Kind: ChangeProposal, ItemID: itemID})
		}
	}
	if t.To == auctions.StatusClosed {
		f.catalog.markSold(t.AuctionID)
	}
	f.logger.Info("Auction status changed", "auction_id", t.AuctionID, "from", t.From, "to", t.To)
	f.dispatch.publish(Change{Kind: ChangeAuction, Transition: &t})
}
