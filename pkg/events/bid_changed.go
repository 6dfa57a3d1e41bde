package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Change types carried by BidChanged
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
)

// ErrMalformedEvent is returned for payloads that are not a valid BidChanged
var ErrMalformedEvent = errors.New("malformed bid changed event")

// BidChanged is the wire event for a row change in the bids ledger.
//
//	message BidChanged {
//	  string change_type = 1;
//	  string bid_id = 2;
//	  string item_id = 3;
//	  string user_id = 4;
//	  int64 amount = 5;
//	  google.protobuf.Timestamp timestamp = 6;
//	}
type BidChanged struct {
	ChangeType string
	BidID      uuid.UUID
	ItemID     string
	UserID     string
	Amount     int64
	Timestamp  time.Time
}

const (
	fieldChangeType protowire.Number = 1
	fieldBidID      protowire.Number = 2
	fieldItemID     protowire.Number = 3
	fieldUserID     protowire.Number = 4
	fieldAmount     protowire.Number = 5
	fieldTimestamp  protowire.Number = 6
)

// RoutingKey returns the topic key the event is published under
func (e BidChanged) RoutingKey() string {
	if e.ChangeType == ChangeUpdate {
		return RoutingKeyBidUpdated
	}
	return RoutingKeyBidInserted
}

// MarshalBidChanged encodes e in protobuf wire format
func MarshalBidChanged(e BidChanged) ([]byte, error) {
	ts, err := proto.Marshal(timestamppb.New(e.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	var b []byte
	b = appendString(b, fieldChangeType, e.ChangeType)
	if e.BidID != uuid.Nil {
		b = appendString(b, fieldBidID, e.BidID.String())
	}
	b = appendString(b, fieldItemID, e.ItemID)
	b = appendString(b, fieldUserID, e.UserID)
	if e.Amount != 0 {
		b = protowire.AppendTag(b, fieldAmount, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Amount))
	}
	b = protowire.AppendTag(b, fieldTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	return b, nil
}

// UnmarshalBidChanged decodes a BidChanged payload. Unknown fields are skipped.
func UnmarshalBidChanged(b []byte) (BidChanged, error) {
	var e BidChanged
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return BidChanged{}, fmt.Errorf("%w: %w", ErrMalformedEvent, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldAmount && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return BidChanged{}, fmt.Errorf("%w: %w", ErrMalformedEvent, protowire.ParseError(m))
			}
			e.Amount = int64(v)
			n = m
		case typ == protowire.BytesType && num >= fieldChangeType && num <= fieldTimestamp:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return BidChanged{}, fmt.Errorf("%w: %w", ErrMalformedEvent, protowire.ParseError(m))
			}
			if err := e.setBytesField(num, v); err != nil {
				return BidChanged{}, err
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return BidChanged{}, fmt.Errorf("%w: %w", ErrMalformedEvent, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}

	if e.ItemID == "" {
		return BidChanged{}, fmt.Errorf("%w: missing item_id", ErrMalformedEvent)
	}
	return e, nil
}

func (e *BidChanged) setBytesField(num protowire.Number, v []byte) error {
	switch num {
	case fieldChangeType:
		e.ChangeType = string(v)
	case fieldBidID:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("%w: invalid bid_id: %w", ErrMalformedEvent, err)
		}
		e.BidID = id
	case fieldItemID:
		e.ItemID = string(v)
	case fieldUserID:
		e.UserID = string(v)
	case fieldTimestamp:
		var ts timestamppb.Timestamp
		if err := proto.Unmarshal(v, &ts); err != nil {
			return fmt.Errorf("%w: invalid timestamp: %w", ErrMalformedEvent, err)
		}
		e.Timestamp = ts.AsTime()
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
