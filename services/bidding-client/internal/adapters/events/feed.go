package events

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/floroz/livebid/pkg/events"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

// RabbitMQFeed subscribes to ledger bid changes on the auction exchange.
// Every subscription dials its own connection and an exclusive queue, so a
// reconnect starts clean and the caller reseeds to cover the gap.
type RabbitMQFeed struct {
	url    string
	logger *slog.Logger
}

// NewRabbitMQFeed creates a feed that dials url for each subscription
func NewRabbitMQFeed(url string, logger *slog.Logger) *RabbitMQFeed {
	return &RabbitMQFeed{url: url, logger: logger}
}

var _ bids.ChangeFeed = (*RabbitMQFeed)(nil)

// Subscribe returns once the queue is bound. The channel is closed when the
// broker connection drops or ctx is cancelled.
func (f *RabbitMQFeed) Subscribe(ctx context.Context) (<-chan bids.ChangeEvent, error) {
	conn, err := amqp.Dial(f.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	deliveries, err := f.setup(ch)
	if err != nil {
		conn.Close()
		return nil, err
	}

	out := make(chan bids.ChangeEvent, 64)
	go func() {
		defer close(out)
		defer conn.Close()
		f.forward(ctx, deliveries, out)
	}()
	return out, nil
}

func (f *RabbitMQFeed) setup(ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	if err := pkgevents.DeclareExchange(ch); err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, pkgevents.BindingAllBids, pkgevents.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return deliveries, nil
}

func (f *RabbitMQFeed) forward(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- bids.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				f.logger.Warn("Change feed connection lost")
				return
			}

			event, err := pkgevents.UnmarshalBidChanged(d.Body)
			if err != nil {
				f.logger.Error("Failed to decode bid change", "routing_key", d.RoutingKey, "error", err)
				if nackErr := d.Nack(false, false); nackErr != nil {
					f.logger.Error("Failed to Nack message", "error", nackErr)
				}
				continue
			}

			select {
			case out <- toChangeEvent(event):
			case <-ctx.Done():
				return
			}
			if ackErr := d.Ack(false); ackErr != nil {
				f.logger.Error("Failed to Ack message", "error", ackErr)
			}
		}
	}
}

func toChangeEvent(e pkgevents.BidChanged) bids.ChangeEvent {
	return bids.ChangeEvent{
		Type: bids.ChangeType(e.ChangeType),
		Bid: bids.Bid{
			ID:        e.BidID,
			ItemID:    e.ItemID,
			UserID:    e.UserID,
			Amount:    e.Amount,
			Timestamp: e.Timestamp,
		},
	}
}
