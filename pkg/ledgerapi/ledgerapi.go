// Package ledgerapi is the wire contract between the ledger service and its
// clients: procedure paths, request and response messages, and error reasons.
package ledgerapi

import "time"

const (
	ServiceName = "ledger.v1.LedgerService"

	ListItemsProcedure       = "/" + ServiceName + "/ListItems"
	ListBidsProcedure        = "/" + ServiceName + "/ListBids"
	AppendBidProcedure       = "/" + ServiceName + "/AppendBid"
	BroadcastNoticeProcedure = "/" + ServiceName + "/BroadcastNotice"
)

type Auction struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ItemsCount      int       `json:"items_count"`
}

type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images,omitempty"`
	Price       int64    `json:"price"`
	Auction     Auction  `json:"auction"`
}

type Bid struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type Notice struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Audience  string    `json:"audience"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

type ListItemsRequest struct {
	AuctionID string `json:"auction_id,omitempty"`
}

type ListItemsResponse struct {
	Items []Item `json:"items"`
}

type ListBidsRequest struct {
	ItemID string `json:"item_id,omitempty"`
}

type ListBidsResponse struct {
	Bids []Bid `json:"bids"`
}

// AppendBidRequest carries a client-generated bid id so a retried write is
// recognised as the same bid. The bidder is taken from the access token.
type AppendBidRequest struct {
	BidID  string `json:"bid_id"`
	ItemID string `json:"item_id"`
	Amount int64  `json:"amount"`
}

type AppendBidResponse struct {
	Bid Bid `json:"bid"`
}

type BroadcastNoticeRequest struct {
	Message  string `json:"message"`
	Audience string `json:"audience"`
	Severity string `json:"severity"`
}

type BroadcastNoticeResponse struct {
	Notice Notice `json:"notice"`
}

// NoticeChannel is the Redis pub/sub channel notices are broadcast on, as
// JSON-encoded Notice values
const NoticeChannel = "auction.notices"
