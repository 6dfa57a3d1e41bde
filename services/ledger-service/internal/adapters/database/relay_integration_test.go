//go:build integration

package database_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgdb "github.com/floroz/livebid/pkg/database"
	pkgevents "github.com/floroz/livebid/pkg/events"
	"github.com/floroz/livebid/pkg/testhelpers"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/database"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

func TestOutboxRelayIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	// 1. Broker and a queue bound to every bid change
	conn, err := amqp.Dial(testhelpers.NewRabbitMQ(t))
	require.NoError(t, err)
	defer conn.Close()

	publisher, err := pkgevents.NewRabbitMQPublisher(conn)
	require.NoError(t, err)
	defer publisher.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, pkgevents.BindingAllBids, pkgevents.Exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	// 2. Ledger with two accepted bids
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	service := ledger.NewService(
		txManager,
		database.NewPostgresCatalogRepository(pool),
		database.NewPostgresBidRepository(pool),
		outboxRepo,
		noopNotices{},
	)

	auction := &ledger.Auction{Name: "Live", StartTime: time.Now().Add(-time.Minute), DurationMinutes: 60}
	item := &ledger.Item{Title: "Vase", Category: "Art", Price: 1000}
	require.NoError(t, service.SeedCatalog(ctx, auction, []*ledger.Item{item}))

	first, err := service.AppendBid(ctx, ledger.AppendBidCommand{BidID: uuid.New(), ItemID: item.ID, UserID: "alice", Amount: 1500})
	require.NoError(t, err)
	second, err := service.AppendBid(ctx, ledger.AppendBidCommand{BidID: uuid.New(), ItemID: item.ID, UserID: "bob", Amount: 1800})
	require.NoError(t, err)

	// 3. Relay one batch
	relay := pkgevents.NewOutboxRelay(outboxRepo, publisher, txManager, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 4. Events arrive in commit order
	for _, want := range []*ledger.Bid{first, second} {
		select {
		case d := <-deliveries:
			assert.Equal(t, pkgevents.RoutingKeyBidInserted, d.RoutingKey)
			event, err := pkgevents.UnmarshalBidChanged(d.Body)
			require.NoError(t, err)
			assert.Equal(t, want.ID, event.BidID)
			assert.Equal(t, want.UserID, event.UserID)
			assert.Equal(t, want.Amount, event.Amount)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for bid event")
		}
	}

	// Nothing left to relay
	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
