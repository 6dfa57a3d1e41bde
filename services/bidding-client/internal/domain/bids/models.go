package bids

import (
	"time"

	"github.com/google/uuid"
)

// SystemUserID holds the synthetic floor entry of an item nobody has bid on
const SystemUserID = "system"

// Bid is an immutable ledger record
type Bid struct {
	ID        uuid.UUID
	ItemID    string
	UserID    string
	Amount    int64 // in cents
	Timestamp time.Time
}

// ChangeType is the kind of row change delivered by the ledger subscription
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// IsValid checks if the change type carries a bid
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeInsert, ChangeUpdate:
		return true
	default:
		return false
	}
}

// ChangeEvent is one ledger change in delivery order
type ChangeEvent struct {
	Type ChangeType
	Bid  Bid
}

// HighestBid mirrors the winning bid of an item
type HighestBid struct {
	ItemID    string
	UserID    string
	Amount    int64
	Timestamp time.Time
}

// IsHeldBy reports whether userID currently holds the highest bid
func (h HighestBid) IsHeldBy(userID string) bool {
	return userID != "" && userID != SystemUserID && h.UserID == userID
}

// OutbidNotice tells a previous holder that another user's bid exceeded theirs
type OutbidNotice struct {
	ItemID         string
	UserID         string // the previous holder, the only addressee
	PreviousAmount int64
	NewAmount      int64
	At             time.Time
}

// Proposal is a locally staged bid that has not been submitted
type Proposal struct {
	ItemID string
	UserID string
	Amount int64
}

// Severity of a broadcast notice
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Normalize maps unknown severities to info
func (s Severity) Normalize() Severity {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return s
	default:
		return SeverityInfo
	}
}

// AudienceAll addresses a notice to every user
const AudienceAll = "All"

// Notice is an out-of-band broadcast message. It never affects bidding state.
type Notice struct {
	ID        string
	Message   string
	Audience  string
	Severity  Severity
	CreatedAt time.Time
}

// IsAddressedTo reports whether userID should see the notice
func (n Notice) IsAddressedTo(userID string) bool {
	if n.Audience == AudienceAll {
		return true
	}
	return userID != "" && n.Audience == userID
}
