package notices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/livebid/pkg/ledgerapi"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// RedisFeed receives broadcast notices from the ledger's pub/sub channel
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisFeed creates a notice feed on client
func NewRedisFeed(client *redis.Client, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

var _ bids.NoticeFeed = (*RedisFeed)(nil)

// Notices subscribes and waits for the confirmation, so nothing published
// after it returns is missed.
func (f *RedisFeed) Notices(ctx context.Context) (<-chan bids.Notice, error) {
	sub := f.client.Subscribe(ctx, ledgerapi.NoticeChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to notices: %w", err)
	}

	out := make(chan bids.Notice, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				notice, err := decode(msg.Payload)
				if err != nil {
					f.logger.Warn("Dropping malformed notice", "error", err)
					continue
				}
				select {
				case out <- notice:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decode(payload string) (bids.Notice, error) {
	var n ledgerapi.Notice
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return bids.Notice{}, err
	}
	if n.Message == "" {
		return bids.Notice{}, fmt.Errorf("notice %q has no message", n.ID)
	}
	return bids.Notice{
		ID:        n.ID,
		Message:   n.Message,
		Audience:  n.Audience,
		Severity:  bids.Severity(n.Severity),
		CreatedAt: n.CreatedAt,
	}, nil
}
