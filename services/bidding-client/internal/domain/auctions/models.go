package auctions

import (
	"time"
)

// Auction is a timed sale window that groups catalog items
type Auction struct {
	ID              string
	Name            string
	StartTime       time.Time
	DurationMinutes int
	ItemsCount      int
}

// Duration returns the length of the bidding window
func (a Auction) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// EndTime returns the instant the auction closes
func (a Auction) EndTime() time.Time {
	return a.StartTime.Add(a.Duration())
}

// Item represents a catalog item offered in exactly one auction
type Item struct {
	ID          string
	Title       string
	Description string
	Category    string
	Condition   string
	Images      []string
	Price       int64 // reserve price in cents
	Auction     Auction
	Sold        bool
}

// Status is the derived state of an auction at a point in time
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusLive       Status = "live"
	StatusClosed     Status = "closed"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// AcceptsBids reports whether bidding is allowed in this status
func (s Status) AcceptsBids() bool {
	return s == StatusLive
}
