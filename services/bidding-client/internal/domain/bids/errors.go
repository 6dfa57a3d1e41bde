package bids

import (
	"errors"
	"fmt"
)

// Submission errors
var (
	ErrAuthRequired     = fmt.Errorf("sign in required to place a bid")
	ErrStaleProposal    = fmt.Errorf("proposal no longer exceeds the highest bid")
	ErrTransportFailure = fmt.Errorf("ledger unreachable")
	ErrAuctionNotOpen   = fmt.Errorf("auction is not open for bidding")
	ErrNoProposal       = fmt.Errorf("no proposal staged for item")
	ErrUnknownItem      = fmt.Errorf("item not found")
)

// IsRetryable reports whether re-invoking submit may succeed without user action
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransportFailure)
}
