package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	pkgevents "github.com/floroz/livebid/pkg/events"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

func TestToChangeEvent(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 1, 18, 5, 0, 0, time.UTC)

	got := toChangeEvent(pkgevents.BidChanged{
		ChangeType: pkgevents.ChangeInsert,
		BidID:      id,
		ItemID:     "item-1",
		UserID:     "bob",
		Amount:     1500,
		Timestamp:  at,
	})

	assert.Equal(t, bids.ChangeInsert, got.Type)
	assert.True(t, got.Type.IsValid())
	assert.Equal(t, bids.Bid{ID: id, ItemID: "item-1", UserID: "bob", Amount: 1500, Timestamp: at}, got.Bid)
}

func TestToChangeEvent_UnknownTypeIsInvalid(t *testing.T) {
	got := toChangeEvent(pkgevents.BidChanged{ChangeType: "DELETE", ItemID: "item-1"})
	assert.False(t, got.Type.IsValid())
}
