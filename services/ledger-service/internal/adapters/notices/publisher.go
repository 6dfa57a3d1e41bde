package notices

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/livebid/pkg/ledgerapi"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

// RedisPublisher implements ledger.NoticePublisher over Redis pub/sub
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on ledgerapi.NoticeChannel
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, channel: ledgerapi.NoticeChannel}
}

// PublishNotice sends the notice to every subscribed client. Notices are
// fire-and-forget: clients offline at publish time never see them.
func (p *RedisPublisher) PublishNotice(ctx context.Context, notice ledger.Notice) error {
	body, err := json.Marshal(ledgerapi.Notice{
		ID:        notice.ID.String(),
		Message:   notice.Message,
		Audience:  notice.Audience,
		Severity:  notice.Severity,
		CreatedAt: notice.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	return nil
}
