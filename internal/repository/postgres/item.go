package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new wishlist item repository
func NewItemRepository(db *sql.DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `id, wishlist_id, title, url, image_url, price_cents, allow_group_funding,
		target_amount_cents, min_contribution_cents, source_unavailable, created_at`

func scanItem(row scanner) (*models.Item, error) {
	item := &models.Item{}
	err := row.Scan(
		&item.ID,
		&item.WishlistID,
		&item.Title,
		&item.URL,
		&item.ImageURL,
		&item.PriceCents,
		&item.AllowGroupFunding,
		&item.TargetAmountCents,
		&item.MinContributionCents,
		&item.SourceUnavailable,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO wishlist_items (wishlist_id, title, url, image_url, price_cents, allow_group_funding,
			target_amount_cents, min_contribution_cents, source_unavailable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	item.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.WishlistID,
		item.Title,
		item.URL,
		item.ImageURL,
		item.PriceCents,
		item.AllowGroupFunding,
		item.TargetAmountCents,
		item.MinContributionCents,
		item.SourceUnavailable,
		item.CreatedAt,
	).Scan(&item.ID, &item.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create wishlist item: %w", err)
	}

	return item, nil
}

func (r *itemRepository) queryOne(ctx context.Context, what, query string, args ...any) (*models.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wishlist item by %s: %w", what, err)
	}
	return item, nil
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	return r.queryOne(ctx, "ID",
		`SELECT `+itemColumns+` FROM wishlist_items WHERE id = $1`, id)
}

func (r *itemRepository) GetOwned(ctx context.Context, itemID, ownerID int64) (*models.Item, error) {
	query := `
		SELECT i.id, i.wishlist_id, i.title, i.url, i.image_url, i.price_cents, i.allow_group_funding,
			i.target_amount_cents, i.min_contribution_cents, i.source_unavailable, i.created_at
		FROM wishlist_items i
		JOIN wishlists w ON w.id = i.wishlist_id
		WHERE i.id = $1 AND w.owner_id = $2`
	return r.queryOne(ctx, "owner", query, itemID, ownerID)
}

func (r *itemRepository) ListByWishlist(ctx context.Context, wishlistID int64) ([]*models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM wishlist_items
		WHERE wishlist_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *itemRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wishlist item %d: %w", id, repository.ErrNotFound)
	}

	return nil
}
