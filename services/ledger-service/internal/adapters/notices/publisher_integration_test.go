//go:build integration

package notices_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/pkg/ledgerapi"
	"github.com/floroz/livebid/pkg/testhelpers"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/notices"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

func TestRedisPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: testhelpers.NewRedis(t)})
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, ledgerapi.NoticeChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notice := ledger.Notice{
		ID:        uuid.New(),
		Message:   "Auction closes in 5 minutes",
		Audience:  ledger.AudienceAll,
		Severity:  ledger.SeverityWarning,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, notices.NewRedisPublisher(rdb).PublishNotice(ctx, notice))

	select {
	case msg := <-sub.Channel():
		var got ledgerapi.Notice
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, notice.ID.String(), got.ID)
		assert.Equal(t, notice.Message, got.Message)
		assert.Equal(t, ledger.AudienceAll, got.Audience)
		assert.Equal(t, ledger.SeverityWarning, got.Severity)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notice")
	}
}
