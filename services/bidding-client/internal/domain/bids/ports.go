package bids

import (
	"context"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
)

// LedgerReader is the bulk read side of the remote ledger, used to seed and reseed
type LedgerReader interface {
	// ListItems returns the catalog with each item's auction
	ListItems(ctx context.Context) ([]auctions.Item, error)

	// ListBids returns every recorded bid
	ListBids(ctx context.Context) ([]Bid, error)
}

// LedgerWriter appends bids to the remote ledger
type LedgerWriter interface {
	// AppendBid records a bid. A nil error means the ledger accepted the write,
	// not that the bid is the highest.
	AppendBid(ctx context.Context, bid Bid) error
}

// ChangeFeed is the long-lived push subscription to ledger changes.
// The returned channel is closed when the connection drops or ctx is cancelled.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}

// NoticeFeed delivers broadcast notices.
// The returned channel is closed when the connection drops or ctx is cancelled.
type NoticeFeed interface {
	Notices(ctx context.Context) (<-chan Notice, error)
}

// Identity resolves the signed-in user
type Identity interface {
	// CurrentUserID returns false when nobody is signed in
	CurrentUserID() (string, bool)
}
