package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/floroz/livebid/pkg/database"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

const itemColumns = `
	i.id, i.auction_id, i.title, i.description, i.category, i.condition, i.images,
	i.price, i.highest_bid,
	a.id, a.name, a.start_time, a.duration_minutes`

// PostgresCatalogRepository implements ledger.CatalogRepository using pgx
type PostgresCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalogRepository creates a new PostgreSQL catalog repository
func NewPostgresCatalogRepository(pool *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{pool: pool}
}

// ListItems returns items ordered by auction start then title
func (r *PostgresCatalogRepository) ListItems(ctx context.Context, auctionID *uuid.UUID) ([]*ledger.Item, error) {
	query := `SELECT` + itemColumns + `,
			COUNT(*) OVER (PARTITION BY a.id)
		FROM items i
		JOIN auctions a ON a.id = i.auction_id
		WHERE $1::uuid IS NULL OR i.auction_id = $1
		ORDER BY a.start_time, i.title, i.id
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var result []*ledger.Item
	for rows.Next() {
		var item ledger.Item
		if err := rows.Scan(append(itemDest(&item), &item.Auction.ItemsCount)...); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return result, nil
}

// GetItemByIDForUpdate locks the item row, leaving the auction row unlocked
func (r *PostgresCatalogRepository) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*ledger.Item, error) {
	return r.getItemByID(ctx, tx, itemID, true)
}

func (r *PostgresCatalogRepository) getItemByID(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID, forUpdate bool) (*ledger.Item, error) {
	query := `SELECT` + itemColumns + `
		FROM items i
		JOIN auctions a ON a.id = i.auction_id
		WHERE i.id = $1
	`
	if forUpdate {
		query += " FOR UPDATE OF i"
	}

	var item ledger.Item
	err := db.QueryRow(ctx, query, itemID).Scan(itemDest(&item)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// UpdateHighestBid updates the highest amount within a transaction
func (r *PostgresCatalogRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount int64) error {
	query := `
		UPDATE items
		SET highest_bid = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, amount, itemID)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrItemNotFound
	}
	return nil
}

// CreateAuction inserts an auction
func (r *PostgresCatalogRepository) CreateAuction(ctx context.Context, auction *ledger.Auction) error {
	query := `
		INSERT INTO auctions (id, name, start_time, duration_minutes)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, auction.ID, auction.Name, auction.StartTime, auction.DurationMinutes)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// CreateItem inserts an item
func (r *PostgresCatalogRepository) CreateItem(ctx context.Context, item *ledger.Item) error {
	images := item.Images
	if images == nil {
		images = []string{}
	}
	query := `
		INSERT INTO items (id, auction_id, title, description, category, condition, images, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.AuctionID,
		item.Title,
		item.Description,
		item.Category,
		item.Condition,
		images,
		item.Price,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func itemDest(item *ledger.Item) []any {
	return []any{
		&item.ID,
		&item.AuctionID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Condition,
		&item.Images,
		&item.Price,
		&item.HighestBid,
		&item.Auction.ID,
		&item.Auction.Name,
		&item.Auction.StartTime,
		&item.Auction.DurationMinutes,
	}
}
