package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/floroz/livebid/pkg/money"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bidding"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// session is the part of the facade the shell drives
type session interface {
	Items(query bidding.ItemsQuery, now time.Time) bidding.ItemPage
	Categories() []string
	AdjustProposal(itemID string, delta int64) (bids.Proposal, error)
	SubmitProposal(ctx context.Context, itemID string) (bids.Receipt, error)
	DiscardProposal(itemID string)
	BidHistory(itemID string) []bids.Bid
	OwnedItems(userID string) []bids.HighestBid
	SyncStatus() bidding.SyncStatus
}

type shell struct {
	session  session
	identity bids.Identity
	out      io.Writer
	now      func() time.Time
}

func newShell(s session, id bids.Identity, out io.Writer) *shell {
	return &shell{session: s, identity: id, out: out, now: time.Now}
}

// Run reads one command per line until EOF, "quit" or ctx is cancelled
func (s *shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := s.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

func (s *shell) exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "list":
		s.list(args)
	case "categories":
		fmt.Fprintln(s.out, strings.Join(s.session.Categories(), ", "))
	case "adjust":
		s.adjust(args)
	case "submit":
		s.submit(ctx, args)
	case "discard":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: discard <item>")
			return false
		}
		s.session.DiscardProposal(args[0])
		fmt.Fprintln(s.out, "proposal discarded")
	case "history":
		s.history(args)
	case "owned":
		s.owned()
	case "status":
		st := s.session.SyncStatus()
		if st.LastError != nil {
			fmt.Fprintf(s.out, "%s (%v)\n", st.State, st.LastError)
		} else {
			fmt.Fprintln(s.out, st.State)
		}
	case "help":
		s.printHelp()
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q\n", cmd)
	}
	return false
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "commands: list [page] [category...], categories, adjust <item> <amount>, submit <item>,")
	fmt.Fprintln(s.out, "          discard <item>, history <item>, owned, status, quit")
}

func (s *shell) list(args []string) {
	query := bidding.ItemsQuery{Page: 1}
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil {
			query.Page = n
			continue
		}
		query.Categories = append(query.Categories, a)
	}

	page := s.session.Items(query, s.now())
	for _, v := range page.Items {
		line := fmt.Sprintf("%s  %-30s  %-10s  %-12s  %s", v.Item.ID, v.Item.Title, v.Item.Category, v.Status, v.DisplayPrice)
		if v.Proposal != nil {
			line += "  proposal " + money.Format(v.Proposal.Amount)
		}
		if v.OwnedByMe {
			line += "  (yours)"
		}
		if v.Item.Sold {
			line += "  SOLD"
		}
		fmt.Fprintln(s.out, line)
	}
	fmt.Fprintf(s.out, "page %d/%d, %d items\n", page.Page, page.TotalPages, page.Total)
}

func (s *shell) adjust(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: adjust <item> <amount>")
		return
	}
	delta, err := money.Parse(args[1])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}

	p, err := s.session.AdjustProposal(args[0], delta)
	if err != nil {
		fmt.Fprintf(s.out, "cannot adjust: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "proposal %s\n", money.Format(p.Amount))
}

func (s *shell) submit(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: submit <item>")
		return
	}

	receipt, err := s.session.SubmitProposal(ctx, args[0])
	switch {
	case err == nil && receipt.Status == bids.ReceiptInFlight:
		fmt.Fprintln(s.out, "a bid for this item is already being submitted")
	case err == nil:
		fmt.Fprintf(s.out, "bid of %s accepted by the ledger\n", money.Format(receipt.Amount))
	case errors.Is(err, bids.ErrAuthRequired):
		fmt.Fprintln(s.out, "sign in to place a bid")
	case bids.IsRetryable(err):
		fmt.Fprintf(s.out, "ledger unreachable, proposal kept: %v\n", err)
	default:
		fmt.Fprintf(s.out, "bid rejected: %v\n", err)
	}
}

func (s *shell) history(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: history <item>")
		return
	}
	for _, b := range s.session.BidHistory(args[0]) {
		fmt.Fprintf(s.out, "%s  %-12s  %s\n", b.Timestamp.Format(time.TimeOnly), b.UserID, money.Format(b.Amount))
	}
}

func (s *shell) owned() {
	user, ok := s.identity.CurrentUserID()
	if !ok {
		fmt.Fprintln(s.out, "not signed in")
		return
	}
	owned := s.session.OwnedItems(user)
	for _, h := range owned {
		fmt.Fprintf(s.out, "%s  %s\n", h.ItemID, money.Format(h.Amount))
	}
	fmt.Fprintf(s.out, "you hold the highest bid on %d items\n", len(owned))
}
