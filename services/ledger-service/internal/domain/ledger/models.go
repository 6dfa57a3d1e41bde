package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Auction is a timed bidding window over a set of items
type Auction struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	StartTime       time.Time `db:"start_time"`
	DurationMinutes int       `db:"duration_minutes"`
	ItemsCount      int       `db:"items_count"`
}

// EndTime is the exclusive end of the bidding window
func (a Auction) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// IsOpen reports whether bids are accepted at now: start <= now < end
func (a Auction) IsOpen(now time.Time) bool {
	return !now.Before(a.StartTime) && now.Before(a.EndTime())
}

// Item is a lot in an auction. HighestBid is 0 until the first bid.
type Item struct {
	ID          uuid.UUID `db:"id"`
	AuctionID   uuid.UUID `db:"auction_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    string    `db:"category"`
	Condition   string    `db:"condition"`
	Images      []string  `db:"images"`
	Price       int64     `db:"price"`
	HighestBid  int64     `db:"highest_bid"`
	Auction     Auction
}

// Floor is the amount a new bid must exceed
func (i Item) Floor() int64 {
	return max(i.Price, i.HighestBid)
}

// Bid is an immutable ledger entry
type Bid struct {
	ID        uuid.UUID `db:"id"`
	ItemID    uuid.UUID `db:"item_id"`
	UserID    string    `db:"user_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// Notice severities
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// AudienceAll addresses every bidder
const AudienceAll = "All"

// Notice is a broadcast message to all bidders or to one user
type Notice struct {
	ID        uuid.UUID
	Message   string
	Audience  string
	Severity  string
	CreatedAt time.Time
}
