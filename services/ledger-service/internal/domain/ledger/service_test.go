package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/pkg/events"
)

type fakeTx struct {
	pgx.Tx
	committed bool
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	return nil
}

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

// MockCatalogRepository is a mock implementation of CatalogRepository for testing
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) ListItems(ctx context.Context, auctionID *uuid.UUID) ([]*Item, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Item), args.Error(1)
}

func (m *MockCatalogRepository) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error) {
	args := m.Called(ctx, tx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Item), args.Error(1)
}

func (m *MockCatalogRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error {
	args := m.Called(ctx, tx, itemID, amount)
	return args.Error(0)
}

func (m *MockCatalogRepository) CreateAuction(ctx context.Context, auction *Auction) error {
	args := m.Called(ctx, auction)
	return args.Error(0)
}

func (m *MockCatalogRepository) CreateItem(ctx context.Context, item *Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// MockBidRepository is a mock implementation of BidRepository for testing
type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) GetBidByID(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) ListBids(ctx context.Context, itemID *uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

type MockNoticePublisher struct {
	mock.Mock
}

func (m *MockNoticePublisher) PublishNotice(ctx context.Context, notice Notice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	service *Service
	tx      *fakeTx
	txm     *MockTxManager
	catalog *MockCatalogRepository
	bids    *MockBidRepository
	outbox  *MockOutboxRepository
	notices *MockNoticePublisher
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		tx:      &fakeTx{},
		txm:     &MockTxManager{},
		catalog: &MockCatalogRepository{},
		bids:    &MockBidRepository{},
		outbox:  &MockOutboxRepository{},
		notices: &MockNoticePublisher{},
	}
	f.service = NewService(f.txm, f.catalog, f.bids, f.outbox, f.notices, WithClock(func() time.Time { return testNow }))
	return f
}

func openItem(price, highest int64) *Item {
	return &Item{
		ID:         uuid.New(),
		Price:      price,
		HighestBid: highest,
		Auction: Auction{
			ID:              uuid.New(),
			StartTime:       testNow.Add(-10 * time.Minute),
			DurationMinutes: 30,
		},
	}
}

func TestService_AppendBid(t *testing.T) {
	item := openItem(10000, 12000)

	tests := []struct {
		name    string
		item    *Item
		amount  int64
		setup   func(*serviceFixture, *Item)
		wantErr error
	}{
		{
			name:   "accepts bid above highest",
			item:   item,
			amount: 12500,
			setup: func(f *serviceFixture, item *Item) {
				f.bids.On("SaveBid", mock.Anything, f.tx, mock.MatchedBy(func(b *Bid) bool {
					return b.Amount == 12500 && b.UserID == "alice" && b.CreatedAt.Equal(testNow)
				})).Return(nil)
				f.catalog.On("UpdateHighestBid", mock.Anything, f.tx, item.ID, int64(12500)).Return(nil)
				f.outbox.On("SaveEvent", mock.Anything, f.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
					decoded, err := events.UnmarshalBidChanged(e.Payload)
					return err == nil &&
						e.EventType == events.RoutingKeyBidInserted &&
						e.Status == events.OutboxStatusPending &&
						decoded.Amount == 12500 &&
						decoded.ItemID == item.ID.String()
				})).Return(nil)
			},
		},
		{
			name:    "rejects bid equal to highest",
			item:    item,
			amount:  12000,
			wantErr: ErrBidTooLow,
		},
		{
			name:    "rejects first bid at the item price",
			item:    openItem(10000, 0),
			amount:  10000,
			wantErr: ErrBidTooLow,
		},
		{
			name: "rejects bid after the auction closed",
			item: func() *Item {
				closed := openItem(100, 0)
				closed.Auction.StartTime = testNow.Add(-time.Hour)
				return closed
			}(),
			amount:  500,
			wantErr: ErrAuctionNotOpen,
		},
		{
			name: "rejects bid at the exact end instant",
			item: func() *Item {
				ending := openItem(100, 0)
				ending.Auction.StartTime = testNow.Add(-30 * time.Minute)
				return ending
			}(),
			amount:  500,
			wantErr: ErrAuctionNotOpen,
		},
		{
			name: "rejects bid before the auction starts",
			item: func() *Item {
				future := openItem(100, 0)
				future.Auction.StartTime = testNow.Add(time.Minute)
				return future
			}(),
			amount:  500,
			wantErr: ErrAuctionNotOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newServiceFixture()
			bidID := uuid.New()
			f.txm.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.catalog.On("GetItemByIDForUpdate", mock.Anything, f.tx, tt.item.ID).Return(tt.item, nil)
			f.bids.On("GetBidByID", mock.Anything, f.tx, bidID).Return(nil, ErrBidNotFound)
			if tt.setup != nil {
				tt.setup(f, tt.item)
			}

			// Act
			bid, err := f.service.AppendBid(context.Background(), AppendBidCommand{
				BidID:  bidID,
				ItemID: tt.item.ID,
				UserID: "alice",
				Amount: tt.amount,
			})

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, f.tx.committed)
				f.bids.AssertNotCalled(t, "SaveBid", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, bidID, bid.ID)
			assert.True(t, f.tx.committed)
			f.bids.AssertExpectations(t)
			f.catalog.AssertExpectations(t)
			f.outbox.AssertExpectations(t)
		})
	}
}

func TestService_AppendBid_InvalidAmount(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.AppendBid(context.Background(), AppendBidCommand{ItemID: uuid.New(), UserID: "alice", Amount: 0})

	assert.ErrorIs(t, err, ErrInvalidBidAmount)
	f.txm.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestService_AppendBid_ReplayedBidID(t *testing.T) {
	item := openItem(100, 500)
	recorded := &Bid{ID: uuid.New(), ItemID: item.ID, UserID: "alice", Amount: 500, CreatedAt: testNow}

	tests := []struct {
		name    string
		cmd     AppendBidCommand
		wantErr error
	}{
		{
			name: "same bid returns the recorded one",
			cmd:  AppendBidCommand{BidID: recorded.ID, ItemID: item.ID, UserID: "alice", Amount: 500},
		},
		{
			name:    "different amount is a conflict",
			cmd:     AppendBidCommand{BidID: recorded.ID, ItemID: item.ID, UserID: "alice", Amount: 900},
			wantErr: ErrDuplicateBid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			f.txm.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.catalog.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
			f.bids.On("GetBidByID", mock.Anything, f.tx, recorded.ID).Return(recorded, nil)

			bid, err := f.service.AppendBid(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, recorded, bid)
			f.bids.AssertNotCalled(t, "SaveBid", mock.Anything, mock.Anything, mock.Anything)
			f.outbox.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_AppendBid_UnknownItem(t *testing.T) {
	f := newServiceFixture()
	itemID := uuid.New()
	f.txm.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.catalog.On("GetItemByIDForUpdate", mock.Anything, f.tx, itemID).Return(nil, ErrItemNotFound)

	_, err := f.service.AppendBid(context.Background(), AppendBidCommand{ItemID: itemID, UserID: "alice", Amount: 10})

	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestService_AppendBid_OutboxFailureRollsBack(t *testing.T) {
	f := newServiceFixture()
	item := openItem(100, 0)
	f.txm.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.catalog.On("GetItemByIDForUpdate", mock.Anything, f.tx, item.ID).Return(item, nil)
	f.bids.On("GetBidByID", mock.Anything, f.tx, mock.Anything).Return(nil, ErrBidNotFound)
	f.bids.On("SaveBid", mock.Anything, f.tx, mock.Anything).Return(nil)
	f.catalog.On("UpdateHighestBid", mock.Anything, f.tx, item.ID, int64(200)).Return(nil)
	f.outbox.On("SaveEvent", mock.Anything, f.tx, mock.Anything).Return(errors.New("disk full"))

	_, err := f.service.AppendBid(context.Background(), AppendBidCommand{ItemID: item.ID, UserID: "alice", Amount: 200})

	require.Error(t, err)
	assert.False(t, f.tx.committed)
}

func TestService_BroadcastNotice(t *testing.T) {
	tests := []struct {
		name         string
		cmd          BroadcastNoticeCommand
		wantAudience string
		wantSeverity string
		wantErr      error
	}{
		{
			name:         "defaults audience and severity",
			cmd:          BroadcastNoticeCommand{Message: "  Auction starts soon  "},
			wantAudience: AudienceAll,
			wantSeverity: SeverityInfo,
		},
		{
			name:         "keeps user audience",
			cmd:          BroadcastNoticeCommand{Message: "You won", Audience: "alice", Severity: SeveritySuccess},
			wantAudience: "alice",
			wantSeverity: SeveritySuccess,
		},
		{
			name:    "rejects empty message",
			cmd:     BroadcastNoticeCommand{Message: "   "},
			wantErr: ErrEmptyNotice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			f.notices.On("PublishNotice", mock.Anything, mock.Anything).Return(nil)

			notice, err := f.service.BroadcastNotice(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				f.notices.AssertNotCalled(t, "PublishNotice", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAudience, notice.Audience)
			assert.Equal(t, tt.wantSeverity, notice.Severity)
			assert.Equal(t, strings.TrimSpace(tt.cmd.Message), notice.Message)
			assert.Equal(t, testNow, notice.CreatedAt)
			f.notices.AssertCalled(t, "PublishNotice", mock.Anything, *notice)
		})
	}
}

func TestService_SeedCatalog(t *testing.T) {
	f := newServiceFixture()
	auction := &Auction{Name: "Spring", StartTime: testNow, DurationMinutes: 60}
	items := []*Item{{Title: "Vase", Price: 1000}, {Title: "Lamp", Price: 2000}}

	f.catalog.On("CreateAuction", mock.Anything, auction).Return(nil)
	f.catalog.On("CreateItem", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.service.SeedCatalog(context.Background(), auction, items))

	assert.NotEqual(t, uuid.Nil, auction.ID)
	for _, item := range items {
		assert.NotEqual(t, uuid.Nil, item.ID)
		assert.Equal(t, auction.ID, item.AuctionID)
	}
	f.catalog.AssertNumberOfCalls(t, "CreateItem", 2)
}
