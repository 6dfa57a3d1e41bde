package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

// PostgresBidRepository implements ledger.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid inserts a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *ledger.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ItemID,
		bid.UserID,
		bid.Amount,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidByID reads a bid within a transaction
func (r *PostgresBidRepository) GetBidByID(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) (*ledger.Bid, error) {
	query := `
		SELECT id, item_id, user_id, amount, created_at
		FROM bids
		WHERE id = $1
	`
	var bid ledger.Bid
	err := tx.QueryRow(ctx, query, bidID).Scan(
		&bid.ID,
		&bid.ItemID,
		&bid.UserID,
		&bid.Amount,
		&bid.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return &bid, nil
}

// ListBids returns bids oldest first
func (r *PostgresBidRepository) ListBids(ctx context.Context, itemID *uuid.UUID) ([]*ledger.Bid, error) {
	query := `
		SELECT id, item_id, user_id, amount, created_at
		FROM bids
		WHERE $1::uuid IS NULL OR item_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*ledger.Bid
	for rows.Next() {
		var bid ledger.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.ItemID,
			&bid.UserID,
			&bid.Amount,
			&bid.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}
