package bids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
)

func seededTracker(t *testing.T, price int64, ledger ...Bid) *Tracker {
	t.Helper()
	tracker := newTestTracker(&outbidRecorder{})
	tracker.Seed([]auctions.Item{{ID: "item-1", Price: price}}, ledger)
	return tracker
}

// TestProposalEngine_Propose tests seeding and adjusting proposals
func TestProposalEngine_Propose(t *testing.T) {
	tests := []struct {
		name    string
		floor   int64
		highest int64
		deltas  []int64
		want    int64
	}{
		{
			name:    "first proposal starts above the floor",
			floor:   100,
			highest: 0,
			deltas:  []int64{10},
			want:    110,
		},
		{
			name:    "first proposal starts above the highest bid",
			floor:   100,
			highest: 150,
			deltas:  []int64{10},
			want:    160,
		},
		{
			name:    "adjustments accumulate",
			floor:   100,
			highest: 0,
			deltas:  []int64{10, 10, 10},
			want:    130,
		},
		{
			name:    "decrement is clamped above the floor",
			floor:   100,
			highest: 0,
			deltas:  []int64{10, -50},
			want:    101,
		},
		{
			name:    "negative first delta is clamped",
			floor:   100,
			highest: 120,
			deltas:  []int64{-10},
			want:    121,
		},
		{
			name:    "zero delta is clamped",
			floor:   100,
			highest: 0,
			deltas:  []int64{0},
			want:    101,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var ledger []Bid
			if tt.highest > 0 {
				ledger = append(ledger, bidAt("item-1", "other", tt.highest, 0))
			}
			engine := NewProposalEngine(seededTracker(t, tt.floor, ledger...), 1)

			// Act
			var got Proposal
			for _, d := range tt.deltas {
				got = engine.Propose("item-1", "me", d, tt.floor)
			}

			// Assert
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "me", got.UserID)
			stored, ok := engine.Get("item-1")
			require.True(t, ok)
			assert.Equal(t, got, stored)
		})
	}
}

// TestProposalEngine_NeverAtOrBelowBase tests the strict floor property over many deltas
func TestProposalEngine_NeverAtOrBelowBase(t *testing.T) {
	tracker := seededTracker(t, 100, bidAt("item-1", "other", 140, 0))
	engine := NewProposalEngine(tracker, 5)

	for _, delta := range []int64{-1000, -5, -1, 0, 1, 3, 5, 20, -40, 7} {
		p := engine.Propose("item-1", "me", delta, 100)
		assert.Greater(t, p.Amount, int64(140), "delta %d", delta)
		assert.GreaterOrEqual(t, p.Amount, int64(145), "delta %d", delta)
	}
}

// TestProposalEngine_ClampFollowsLiveHighest tests the clamp uses the highest bid at adjust time
func TestProposalEngine_ClampFollowsLiveHighest(t *testing.T) {
	tracker := seededTracker(t, 100)
	engine := NewProposalEngine(tracker, 1)

	engine.Propose("item-1", "me", 10, 100)
	tracker.Apply(bidAt("item-1", "other", 200, 0))

	assert.False(t, engine.IsSubmittable("item-1"), "a concurrent higher bid makes the proposal stale")

	p := engine.Propose("item-1", "me", 0, 100)
	assert.Equal(t, int64(201), p.Amount)
	assert.True(t, engine.IsSubmittable("item-1"))
}

// TestProposalEngine_IsSubmittable tests the strict comparator
func TestProposalEngine_IsSubmittable(t *testing.T) {
	tracker := seededTracker(t, 100)
	engine := NewProposalEngine(tracker, 1)

	assert.False(t, engine.IsSubmittable("item-1"), "no proposal staged")

	engine.Propose("item-1", "me", 10, 100)
	assert.True(t, engine.IsSubmittable("item-1"))

	tracker.Apply(bidAt("item-1", "other", 110, 0))
	assert.False(t, engine.IsSubmittable("item-1"), "equal amount is not an improvement")
}

// TestProposalEngine_Discard tests proposal removal
func TestProposalEngine_Discard(t *testing.T) {
	engine := NewProposalEngine(seededTracker(t, 100), 0)

	engine.Propose("item-1", "me", 10, 100)
	engine.Propose("item-2", "me", 10, 100)

	assert.True(t, engine.Discard("item-1"))
	assert.False(t, engine.Discard("item-1"))
	_, ok := engine.Get("item-1")
	assert.False(t, ok)

	engine.DiscardAll()
	_, ok = engine.Get("item-2")
	assert.False(t, ok)
}

// TestProposalEngine_DiscardSubmitted tests that only the submitted amount is cleared
func TestProposalEngine_DiscardSubmitted(t *testing.T) {
	engine := NewProposalEngine(seededTracker(t, 100), 1)

	submitted := engine.Propose("item-1", "me", 10, 100)
	moved := engine.Propose("item-1", "me", 5, 100)

	assert.False(t, engine.DiscardSubmitted("item-1", submitted.Amount))
	p, ok := engine.Get("item-1")
	require.True(t, ok)
	assert.Equal(t, moved.Amount, p.Amount)

	assert.True(t, engine.DiscardSubmitted("item-1", moved.Amount))
	_, ok = engine.Get("item-1")
	assert.False(t, ok)

	assert.False(t, engine.DiscardSubmitted("item-2", 110))
}

// TestProposalEngine_KeepsUserWhenAnonymous tests that an anonymous adjust keeps the staged user
func TestProposalEngine_KeepsUserWhenAnonymous(t *testing.T) {
	engine := NewProposalEngine(seededTracker(t, 100), 1)

	engine.Propose("item-1", "me", 10, 100)
	p := engine.Propose("item-1", "", 10, 100)

	assert.Equal(t, "me", p.UserID)
	assert.Equal(t, int64(120), p.Amount)
}
