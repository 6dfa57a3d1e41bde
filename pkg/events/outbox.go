package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/livebid/pkg/database"
)

// OutboxStatus is the delivery state of an outbox row
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is an event written in the same transaction as the state change
// it describes. EventType doubles as the routing key.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	Attempts    int          `db:"attempts"`
	LastError   *string      `db:"last_error"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// NewOutboxEvent creates a pending event
func NewOutboxEvent(eventType string, payload []byte, now time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: now,
	}
}

// OutboxRepository reads and acknowledges outbox rows inside a relay transaction
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// RecordFailure counts a failed attempt and parks the event as failed
	// once maxAttempts is reached. It returns the event's new status.
	RecordFailure(ctx context.Context, tx pgx.Tx, id uuid.UUID, cause error, maxAttempts int) (OutboxStatus, error)
}

// EventPublisher publishes to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

const (
	DefaultRelayBatchSize   = 50
	DefaultRelayInterval    = 200 * time.Millisecond
	DefaultRelayMaxAttempts = 50
)

// RelayOption configures an OutboxRelay
type RelayOption func(*OutboxRelay)

// WithBatchSize caps how many events one poll publishes
func WithBatchSize(n int) RelayOption {
	return func(r *OutboxRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithInterval sets the polling interval
func WithInterval(d time.Duration) RelayOption {
	return func(r *OutboxRelay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxAttempts sets how many failed publishes park an event as failed.
// Zero or less retries forever.
func WithMaxAttempts(n int) RelayOption {
	return func(r *OutboxRelay) {
		r.maxAttempts = n
	}
}

// WithExchange overrides the target exchange
func WithExchange(exchange string) RelayOption {
	return func(r *OutboxRelay) {
		r.exchange = exchange
	}
}

// OutboxRelay polls the outbox and publishes pending events in creation order.
// Delivery is at least once: a crash between publish and commit republishes,
// and consumers must tolerate duplicates. A publish failure stops the batch at
// that event so later events never overtake it, unless it is parked.
type OutboxRelay struct {
	outboxRepo  OutboxRepository
	publisher   EventPublisher
	txManager   database.TransactionManager
	batchSize   int
	interval    time.Duration
	maxAttempts int
	exchange    string
	logger      *slog.Logger
}

// NewOutboxRelay creates a relay publishing to Exchange
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
	txManager database.TransactionManager,
	logger *slog.Logger,
	opts ...RelayOption,
) *OutboxRelay {
	r := &OutboxRelay{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		txManager:   txManager,
		batchSize:   DefaultRelayBatchSize,
		interval:    DefaultRelayInterval,
		maxAttempts: DefaultRelayMaxAttempts,
		exchange:    Exchange,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// Drain full batches back to back before waiting for the next tick
		for {
			n, err := r.ProcessBatch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("Error processing outbox batch", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch publishes one batch and returns how many events it published.
// Events published before a failure are committed; the failing event has its
// attempt recorded and stays pending until it is parked.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Rows are locked FOR UPDATE SKIP LOCKED so parallel relays never share an event
	pending, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	published := 0
	var publishErr error
	for _, event := range pending {
		if err := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			publishErr = fmt.Errorf("failed to publish event %s: %w", event.ID, err)
			if err := r.recordFailure(ctx, tx, event, err); err != nil {
				return 0, err
			}
			break
		}
		if err := r.outboxRepo.MarkPublished(ctx, tx, event.ID); err != nil {
			return 0, fmt.Errorf("failed to mark event %s published: %w", event.ID, err)
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	r.logger.Debug("Published outbox events", "count", published)
	return published, publishErr
}

func (r *OutboxRelay) recordFailure(ctx context.Context, tx pgx.Tx, event *OutboxEvent, cause error) error {
	status, err := r.outboxRepo.RecordFailure(ctx, tx, event.ID, cause, r.maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to record publish failure %s: %w", event.ID, err)
	}
	if status == OutboxStatusFailed {
		r.logger.Error("Outbox event parked after repeated publish failures",
			"event_id", event.ID,
			"event_type", event.EventType,
			"attempts", event.Attempts+1,
			"error", cause,
		)
	}
	return nil
}
