package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgevents "github.com/floroz/livebid/pkg/events"
)

// ErrOutboxEventNotFound is returned when an acknowledged event is missing or
// no longer pending
var ErrOutboxEventNotFound = errors.New("outbox event not found")

// maxLastErrorLen bounds the broker error stored with a failed attempt
const maxLastErrorLen = 512

// PostgresOutboxRepository stores bid change events next to the bids they
// describe. The ledger writes rows inside the AppendBid transaction and the
// relay drains them in (created_at, id) order.
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates an outbox repository on pool
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

var _ pkgevents.OutboxRepository = (*PostgresOutboxRepository)(nil)

// SaveEvent inserts a pending event in the caller's transaction
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4::outbox_status, 0, $5)
	`, event.ID, event.EventType, event.Payload, event.Status, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event %s: %w", event.ID, err)
	}
	return nil
}

// GetPendingEvents locks up to limit pending events, oldest first. Rows held
// by another relay are skipped, so parallel relays never share an event.
// Events created in the same instant are ordered by id to keep batches stable.
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, status, attempts, last_error, created_at, processed_at
		FROM outbox_events
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}

	defer rows.Close()

	var events []*pkgevents.OutboxEvent
	for rows.Next() {
		var event pkgevents.OutboxEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&event.Status,
			&event.Attempts,
			&event.LastError,
			&event.CreatedAt,
			&event.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// MarkPublished acknowledges a pending event
func (r *PostgresOutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'published', processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event %s published: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOutboxEventNotFound, id)
	}
	return nil
}

// RecordFailure counts a failed publish and keeps the cause. Once attempts
// reach maxAttempts the event is parked as failed and the relay moves past it;
// maxAttempts <= 0 keeps retrying forever. It returns the resulting status.
func (r *PostgresOutboxRepository) RecordFailure(ctx context.Context, tx pgx.Tx, id uuid.UUID, cause error, maxAttempts int) (pkgevents.OutboxStatus, error) {
	lastError := cause.Error()
	if len(lastError) > maxLastErrorLen {
		lastError = lastError[:maxLastErrorLen]
	}

	var status pkgevents.OutboxStatus
	err := tx.QueryRow(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN $3::int > 0 AND attempts + 1 >= $3::int
		                  THEN 'failed'::outbox_status ELSE status END,
		    processed_at = CASE WHEN $3::int > 0 AND attempts + 1 >= $3::int
		                        THEN NOW() ELSE processed_at END
		WHERE id = $1 AND status = 'pending'
		RETURNING status
	`, id, lastError, maxAttempts).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrOutboxEventNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to record publish failure for %s: %w", id, err)
	}
	return status, nil
}
