package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/livebid/pkg/database"
	"github.com/floroz/livebid/pkg/events"
)

// Validation errors
var (
	ErrBidTooLow        = fmt.Errorf("bid amount must be higher than current highest bid")
	ErrAuctionNotOpen   = fmt.Errorf("auction is not open for bidding")
	ErrInvalidBidAmount = fmt.Errorf("bid amount must be positive")
	ErrItemNotFound     = fmt.Errorf("item not found")
	ErrBidNotFound      = fmt.Errorf("bid not found")
	ErrDuplicateBid     = fmt.Errorf("bid id already used for a different bid")
	ErrEmptyNotice      = fmt.Errorf("notice message is empty")
)

// AppendBidCommand is a bid submitted by an authenticated user
type AppendBidCommand struct {
	BidID  uuid.UUID
	ItemID uuid.UUID
	UserID string
	Amount int64
}

// BroadcastNoticeCommand is a notice to publish
type BroadcastNoticeCommand struct {
	Message  string
	Audience string
	Severity string
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the append-only bid ledger
type Service struct {
	txManager  database.TransactionManager
	catalog    CatalogRepository
	bidRepo    BidRepository
	outboxRepo OutboxRepository
	notices    NoticePublisher
	now        func() time.Time
}

// NewService creates a ledger service
func NewService(
	txManager database.TransactionManager,
	catalog CatalogRepository,
	bidRepo BidRepository,
	outboxRepo OutboxRepository,
	notices NoticePublisher,
	opts ...Option,
) *Service {
	s := &Service{
		txManager:  txManager,
		catalog:    catalog,
		bidRepo:    bidRepo,
		outboxRepo: outboxRepo,
		notices:    notices,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendBid records a bid strictly above the item's floor while its auction is
// open. The bid and its change event are committed together. Replaying a bid
// id that is already recorded returns the recorded bid.
func (s *Service) AppendBid(ctx context.Context, cmd AppendBidCommand) (*Bid, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidBidAmount
	}
	if cmd.BidID == uuid.Nil {
		cmd.BidID = uuid.New()
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Serializes bids on the same item
	item, err := s.catalog.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		return nil, err
	}

	existing, err := s.bidRepo.GetBidByID(ctx, tx, cmd.BidID)
	switch {
	case err == nil:
		if existing.ItemID != cmd.ItemID || existing.UserID != cmd.UserID || existing.Amount != cmd.Amount {
			return nil, ErrDuplicateBid
		}
		return existing, nil
	case !errors.Is(err, ErrBidNotFound):
		return nil, fmt.Errorf("failed to check bid id: %w", err)
	}

	now := s.now()
	if !item.Auction.IsOpen(now) {
		return nil, ErrAuctionNotOpen
	}
	if cmd.Amount <= item.Floor() {
		return nil, ErrBidTooLow
	}

	bid := &Bid{
		ID:        cmd.BidID,
		ItemID:    cmd.ItemID,
		UserID:    cmd.UserID,
		Amount:    cmd.Amount,
		CreatedAt: now,
	}
	if err := s.bidRepo.SaveBid(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("failed to save bid: %w", err)
	}
	if err := s.catalog.UpdateHighestBid(ctx, tx, bid.ItemID, bid.Amount); err != nil {
		return nil, fmt.Errorf("failed to update highest bid: %w", err)
	}

	change := events.BidChanged{
		ChangeType: events.ChangeInsert,
		BidID:      bid.ID,
		ItemID:     bid.ItemID.String(),
		UserID:     bid.UserID,
		Amount:     bid.Amount,
		Timestamp:  bid.CreatedAt,
	}
	payload, err := events.MarshalBidChanged(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, events.NewOutboxEvent(change.RoutingKey(), payload, now)); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return bid, nil
}

// ListItems returns the catalog, optionally for one auction
func (s *Service) ListItems(ctx context.Context, auctionID *uuid.UUID) ([]*Item, error) {
	items, err := s.catalog.ListItems(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// ListBids returns recorded bids oldest first, optionally for one item
func (s *Service) ListBids(ctx context.Context, itemID *uuid.UUID) ([]*Bid, error) {
	bids, err := s.bidRepo.ListBids(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// BroadcastNotice publishes a notice. An empty audience means everyone and an
// unknown severity is published as info.
func (s *Service) BroadcastNotice(ctx context.Context, cmd BroadcastNoticeCommand) (*Notice, error) {
	msg := strings.TrimSpace(cmd.Message)
	if msg == "" {
		return nil, ErrEmptyNotice
	}

	notice := Notice{
		ID:        uuid.New(),
		Message:   msg,
		Audience:  cmd.Audience,
		Severity:  cmd.Severity,
		CreatedAt: s.now(),
	}
	if notice.Audience == "" {
		notice.Audience = AudienceAll
	}
	switch notice.Severity {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
	default:
		notice.Severity = SeverityInfo
	}

	if err := s.notices.PublishNotice(ctx, notice); err != nil {
		return nil, fmt.Errorf("failed to publish notice: %w", err)
	}
	return &notice, nil
}

// SeedCatalog creates an auction and its items
func (s *Service) SeedCatalog(ctx context.Context, auction *Auction, items []*Item) error {
	if auction.ID == uuid.Nil {
		auction.ID = uuid.New()
	}
	if err := s.catalog.CreateAuction(ctx, auction); err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.AuctionID = auction.ID
		if err := s.catalog.CreateItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create item %q: %w", item.Title, err)
		}
	}
	return nil
}
