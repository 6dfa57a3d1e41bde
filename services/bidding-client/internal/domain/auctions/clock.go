package auctions

import (
	"time"
)

// Classify returns the status of the auction at now.
// The window is half-open: [StartTime, StartTime+Duration).
func Classify(a Auction, now time.Time) Status {
	if now.Before(a.StartTime) {
		return StatusNotStarted
	}
	if now.Before(a.EndTime()) {
		return StatusLive
	}
	return StatusClosed
}

// TimeToBoundary returns the time left until the next boundary: the start for an
// auction that has not started, the end for a live one, and zero once closed.
func TimeToBoundary(a Auction, now time.Time) time.Duration {
	switch Classify(a, now) {
	case StatusNotStarted:
		return a.StartTime.Sub(now)
	case StatusLive:
		return a.EndTime().Sub(now)
	default:
		return 0
	}
}
