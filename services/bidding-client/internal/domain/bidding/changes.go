package bidding

import (
	"time"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// ItemState is the externally observable bidding state of one item
type ItemState string

const (
	ItemClosed         ItemState = "closed"
	ItemNotStarted     ItemState = "not_started"
	ItemOpenIdle       ItemState = "open_idle"
	ItemOpenProposed   ItemState = "open_proposed"
	ItemOpenSubmitting ItemState = "open_submitting"
)

// CanPropose reports whether proposals may be staged in this state
func (s ItemState) CanPropose() bool {
	switch s {
	case ItemOpenIdle, ItemOpenProposed, ItemOpenSubmitting:
		return true
	default:
		return false
	}
}

// ChangeKind identifies what a Change carries
type ChangeKind string

const (
	ChangeHighestBid       ChangeKind = "highest_bid"
	ChangeProposal         ChangeKind = "proposal"
	ChangeSubmission       ChangeKind = "submission"
	ChangeOutbid           ChangeKind = "outbid"
	ChangeItemWon          ChangeKind = "item_won"
	ChangeSubmissionOutbid ChangeKind = "submission_outbid"
	ChangeAuction          ChangeKind = "auction"
	ChangeNotice           ChangeKind = "notice"
	ChangeResynced         ChangeKind = "resynced"
	ChangeSyncStatus       ChangeKind = "sync_status"
)

// Change is delivered to subscribers whenever observable state moves.
// Only the field matching Kind is set.
type Change struct {
	Kind       ChangeKind
	ItemID     string
	Highest    *bids.HighestBid
	Proposal   *bids.Proposal // nil when the proposal was cleared
	InFlight   bool
	Outbid     *bids.OutbidNotice
	Settlement *bids.Settlement
	Transition *auctions.Transition
	Notice     *bids.Notice
	Sync       *SyncStatus
}

// SyncState describes the ledger subscription
type SyncState string

const (
	SyncConnecting   SyncState = "connecting"
	SyncConnected    SyncState = "connected"
	SyncReconnecting SyncState = "reconnecting"
	SyncStopped      SyncState = "stopped"
)

// SyncStatus is the health of the ledger subscription
type SyncStatus struct {
	State     SyncState
	LastError error
	Since     time.Time
}

// AuctionState is the clock view of one auction
type AuctionState struct {
	Auction   auctions.Auction
	Status    auctions.Status
	Remaining time.Duration
}

// ItemView is everything an item-list row needs
type ItemView struct {
	Item         auctions.Item
	Status       auctions.Status
	State        ItemState
	Highest      bids.HighestBid
	Proposal     *bids.Proposal
	Submittable  bool
	OwnedByMe    bool
	DisplayPrice string
}

// ItemsQuery filters and paginates the catalog
type ItemsQuery struct {
	AuctionID  string
	Categories []string
	Page       int // 1-based
	PerPage    int
}

// ItemPage is one page of the filtered catalog
type ItemPage struct {
	Items      []ItemView
	Page       int
	TotalPages int
	Total      int
}
