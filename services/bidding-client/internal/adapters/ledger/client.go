// Package ledger adapts the remote ledger's Connect procedures to the
// bidding client's reader and writer ports.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/livebid/pkg/ledgerapi"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// Client talks to the ledger service
type Client struct {
	listItems *connect.Client[ledgerapi.ListItemsRequest, ledgerapi.ListItemsResponse]
	listBids  *connect.Client[ledgerapi.ListBidsRequest, ledgerapi.ListBidsResponse]
	appendBid *connect.Client[ledgerapi.AppendBidRequest, ledgerapi.AppendBidResponse]
}

// NewClient builds a ledger client for baseURL. Extra options (for example
// the bearer interceptor) are applied to every procedure.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts = append([]connect.ClientOption{ledgerapi.WithCodec()}, opts...)
	return &Client{
		listItems: connect.NewClient[ledgerapi.ListItemsRequest, ledgerapi.ListItemsResponse](
			httpClient, baseURL+ledgerapi.ListItemsProcedure, opts...),
		listBids: connect.NewClient[ledgerapi.ListBidsRequest, ledgerapi.ListBidsResponse](
			httpClient, baseURL+ledgerapi.ListBidsProcedure, opts...),
		appendBid: connect.NewClient[ledgerapi.AppendBidRequest, ledgerapi.AppendBidResponse](
			httpClient, baseURL+ledgerapi.AppendBidProcedure, opts...),
	}
}

var (
	_ bids.LedgerReader = (*Client)(nil)
	_ bids.LedgerWriter = (*Client)(nil)
)

// ListItems fetches the catalog with each item's auction window
func (c *Client) ListItems(ctx context.Context) ([]auctions.Item, error) {
	res, err := c.listItems.CallUnary(ctx, connect.NewRequest(&ledgerapi.ListItemsRequest{}))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]auctions.Item, len(res.Msg.Items))
	for i, it := range res.Msg.Items {
		items[i] = auctions.Item{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			Category:    it.Category,
			Condition:   it.Condition,
			Images:      it.Images,
			Price:       it.Price,
			Auction: auctions.Auction{
				ID:              it.Auction.ID,
				Name:            it.Auction.Name,
				StartTime:       it.Auction.StartTime,
				DurationMinutes: it.Auction.DurationMinutes,
				ItemsCount:      it.Auction.ItemsCount,
			},
		}
	}
	return items, nil
}

// ListBids fetches every recorded bid. A malformed bid id fails the whole read.
func (c *Client) ListBids(ctx context.Context) ([]bids.Bid, error) {
	res, err := c.listBids.CallUnary(ctx, connect.NewRequest(&ledgerapi.ListBidsRequest{}))
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	out := make([]bids.Bid, 0, len(res.Msg.Bids))
	for _, b := range res.Msg.Bids {
		id, err := uuid.Parse(b.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid bid id %q: %w", b.ID, err)
		}
		out = append(out, bids.Bid{
			ID:        id,
			ItemID:    b.ItemID,
			UserID:    b.UserID,
			Amount:    b.Amount,
			Timestamp: b.Timestamp,
		})
	}
	return out, nil
}

// AppendBid sends the bid with its client-generated id, so a retry after a
// lost response is recorded once.
func (c *Client) AppendBid(ctx context.Context, bid bids.Bid) error {
	_, err := c.appendBid.CallUnary(ctx, connect.NewRequest(&ledgerapi.AppendBidRequest{
		BidID:  bid.ID.String(),
		ItemID: bid.ItemID,
		Amount: bid.Amount,
	}))
	if err == nil {
		return nil
	}
	return mapAppendError(err)
}

func mapAppendError(err error) error {
	switch ledgerapi.Reason(err) {
	case ledgerapi.ReasonBidTooLow:
		return fmt.Errorf("%w: %v", bids.ErrStaleProposal, err)
	case ledgerapi.ReasonAuctionNotOpen:
		return fmt.Errorf("%w: %v", bids.ErrAuctionNotOpen, err)
	case ledgerapi.ReasonUnknownItem:
		return fmt.Errorf("%w: %v", bids.ErrUnknownItem, err)
	case ledgerapi.ReasonDuplicateBid:
		// The id was already used for a different bid; the write did not land.
		return fmt.Errorf("%w: %v", bids.ErrStaleProposal, err)
	}

	var cerr *connect.Error
	if errors.As(err, &cerr) {
		switch cerr.Code() {
		case connect.CodeUnauthenticated, connect.CodePermissionDenied:
			return fmt.Errorf("%w: %v", bids.ErrAuthRequired, err)
		case connect.CodeInvalidArgument:
			return fmt.Errorf("%w: %v", bids.ErrStaleProposal, err)
		}
	}
	return fmt.Errorf("%w: %v", bids.ErrTransportFailure, err)
}
