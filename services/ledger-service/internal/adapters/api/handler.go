package api

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/livebid/pkg/auth"
	"github.com/floroz/livebid/pkg/ledgerapi"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

// LedgerHandler serves the ledger procedures
type LedgerHandler struct {
	service *ledger.Service
	logger  *slog.Logger
}

func NewLedgerHandler(service *ledger.Service, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{service: service, logger: logger}
}

func (h *LedgerHandler) ListItems(
	ctx context.Context,
	req *connect.Request[ledgerapi.ListItemsRequest],
) (*connect.Response[ledgerapi.ListItemsResponse], error) {
	auctionID, err := optionalUUID(req.Msg.AuctionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid auction_id"))
	}

	items, err := h.service.ListItems(ctx, auctionID)
	if err != nil {
		h.logger.Error("Failed to list items", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	res := &ledgerapi.ListItemsResponse{Items: make([]ledgerapi.Item, len(items))}
	for i, item := range items {
		res.Items[i] = mapItem(item)
	}
	return connect.NewResponse(res), nil
}

func (h *LedgerHandler) ListBids(
	ctx context.Context,
	req *connect.Request[ledgerapi.ListBidsRequest],
) (*connect.Response[ledgerapi.ListBidsResponse], error) {
	itemID, err := optionalUUID(req.Msg.ItemID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid item_id"))
	}

	bids, err := h.service.ListBids(ctx, itemID)
	if err != nil {
		h.logger.Error("Failed to list bids", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	res := &ledgerapi.ListBidsResponse{Bids: make([]ledgerapi.Bid, len(bids))}
	for i, bid := range bids {
		res.Bids[i] = mapBid(bid)
	}
	return connect.NewResponse(res), nil
}

// AppendBid requires authentication; the bidder is the token subject
func (h *LedgerHandler) AppendBid(
	ctx context.Context,
	req *connect.Request[ledgerapi.AppendBidRequest],
) (*connect.Response[ledgerapi.AppendBidResponse], error) {
	userID := auth.MustGetUserID(ctx)

	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, ledgerapi.NewError(connect.CodeNotFound, ledgerapi.ReasonUnknownItem, errors.New("invalid item_id"))
	}
	var bidID uuid.UUID
	if req.Msg.BidID != "" {
		if bidID, err = uuid.Parse(req.Msg.BidID); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid bid_id"))
		}
	}

	bid, err := h.service.AppendBid(ctx, ledger.AppendBidCommand{
		BidID:  bidID,
		ItemID: itemID,
		UserID: userID,
		Amount: req.Msg.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrBidTooLow):
			return nil, ledgerapi.NewError(connect.CodeFailedPrecondition, ledgerapi.ReasonBidTooLow, err)
		case errors.Is(err, ledger.ErrAuctionNotOpen):
			return nil, ledgerapi.NewError(connect.CodeFailedPrecondition, ledgerapi.ReasonAuctionNotOpen, err)
		case errors.Is(err, ledger.ErrItemNotFound):
			return nil, ledgerapi.NewError(connect.CodeNotFound, ledgerapi.ReasonUnknownItem, err)
		case errors.Is(err, ledger.ErrDuplicateBid):
			return nil, ledgerapi.NewError(connect.CodeAlreadyExists, ledgerapi.ReasonDuplicateBid, err)
		case errors.Is(err, ledger.ErrInvalidBidAmount):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		h.logger.Error("Failed to append bid", "item_id", itemID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	h.logger.Info("Bid appended", "bid_id", bid.ID, "item_id", bid.ItemID, "amount", bid.Amount)
	return connect.NewResponse(&ledgerapi.AppendBidResponse{Bid: mapBid(bid)}), nil
}

// BroadcastNotice requires the broadcast permission
func (h *LedgerHandler) BroadcastNotice(
	ctx context.Context,
	req *connect.Request[ledgerapi.BroadcastNoticeRequest],
) (*connect.Response[ledgerapi.BroadcastNoticeResponse], error) {
	claims, ok := auth.GetUserClaims(ctx)
	if !ok || !claims.HasPermission(auth.PermissionBroadcast) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("missing broadcast permission"))
	}

	notice, err := h.service.BroadcastNotice(ctx, ledger.BroadcastNoticeCommand{
		Message:  req.Msg.Message,
		Audience: req.Msg.Audience,
		Severity: req.Msg.Severity,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrEmptyNotice) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		h.logger.Error("Failed to broadcast notice", "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}

	return connect.NewResponse(&ledgerapi.BroadcastNoticeResponse{Notice: ledgerapi.Notice{
		ID:        notice.ID.String(),
		Message:   notice.Message,
		Audience:  notice.Audience,
		Severity:  notice.Severity,
		CreatedAt: notice.CreatedAt,
	}}), nil
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func mapItem(item *ledger.Item) ledgerapi.Item {
	return ledgerapi.Item{
		ID:          item.ID.String(),
		Title:       item.Title,
		Description: item.Description,
		Category:    item.Category,
		Condition:   item.Condition,
		Images:      item.Images,
		Price:       item.Price,
		Auction: ledgerapi.Auction{
			ID:              item.Auction.ID.String(),
			Name:            item.Auction.Name,
			StartTime:       item.Auction.StartTime,
			DurationMinutes: item.Auction.DurationMinutes,
			ItemsCount:      item.Auction.ItemsCount,
		},
	}
}

func mapBid(bid *ledger.Bid) ledgerapi.Bid {
	return ledgerapi.Bid{
		ID:        bid.ID.String(),
		ItemID:    bid.ItemID.String(),
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		Timestamp: bid.CreatedAt,
	}
}
