package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange is the topic exchange every ledger event is published to
	Exchange = "auction.events"

	// RoutingKeyBidInserted and RoutingKeyBidUpdated carry BidChanged payloads
	RoutingKeyBidInserted = "bid.inserted"
	RoutingKeyBidUpdated  = "bid.updated"

	// BindingAllBids matches every bid change
	BindingAllBids = "bid.*"

	ContentTypeProtobuf = "application/x-protobuf"
)

// DeclareExchange makes sure the exchange exists. Publishers and consumers
// both call it, so start-up order does not matter.
func DeclareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}
