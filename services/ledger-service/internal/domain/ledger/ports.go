package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/livebid/pkg/events"
)

// CatalogRepository persists auctions and items
type CatalogRepository interface {
	// ListItems returns items with their auction, optionally for one auction only
	ListItems(ctx context.Context, auctionID *uuid.UUID) ([]*Item, error)

	// GetItemByIDForUpdate locks the item row for the rest of tx
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error)

	// UpdateHighestBid records the new highest amount within tx
	UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error

	CreateAuction(ctx context.Context, auction *Auction) error
	CreateItem(ctx context.Context, item *Item) error
}

// BidRepository persists the append-only bid ledger
type BidRepository interface {
	// SaveBid inserts a bid within tx
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetBidByID returns ErrBidNotFound when absent
	GetBidByID(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error)

	// ListBids returns bids oldest first, optionally for one item only
	ListBids(ctx context.Context, itemID *uuid.UUID) ([]*Bid, error)
}

// OutboxRepository stores events in the same transaction as the change
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// NoticePublisher fans a notice out to connected clients
type NoticePublisher interface {
	PublishNotice(ctx context.Context, notice Notice) error
}
