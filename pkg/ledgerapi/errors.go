package ledgerapi

import (
	"errors"

	"connectrpc.com/connect"
)

// ReasonHeader is the error metadata key that refines a status code
const ReasonHeader = "Ledger-Reason"

// Error reasons
const (
	ReasonBidTooLow      = "bid_too_low"
	ReasonAuctionNotOpen = "auction_not_open"
	ReasonUnknownItem    = "unknown_item"
	ReasonDuplicateBid   = "duplicate_bid"
)

// NewError builds a connect error tagged with reason
func NewError(code connect.Code, reason string, err error) *connect.Error {
	cerr := connect.NewError(code, err)
	if reason != "" {
		cerr.Meta().Set(ReasonHeader, reason)
	}
	return cerr
}

// Reason extracts the reason from a connect error, or "" when there is none
func Reason(err error) string {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return ""
	}
	return cerr.Meta().Get(ReasonHeader)
}
