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

type wishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository creates a new wishlist repository
func NewWishlistRepository(db *sql.DB) repository.WishlistRepository {
	return &wishlistRepository{db: db}
}

const wishlistColumns = `id, owner_id, title, description, event_date, public_slug, is_public, created_at`

func scanWishlist(row scanner) (*models.Wishlist, error) {
	list := &models.Wishlist{}
	err := row.Scan(
		&list.ID,
		&list.OwnerID,
		&list.Title,
		&list.Description,
		&list.EventDate,
		&list.PublicSlug,
		&list.IsPublic,
		&list.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *wishlistRepository) Create(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	query := `
		INSERT INTO wishlists (owner_id, title, description, event_date, public_slug, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	list.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		list.OwnerID,
		list.Title,
		list.Description,
		list.EventDate,
		list.PublicSlug,
		list.IsPublic,
		list.CreatedAt,
	).Scan(&list.ID, &list.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("wishlist slug %q: %w", list.PublicSlug, repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create wishlist: %w", err)
	}

	return list, nil
}

func (r *wishlistRepository) queryOne(ctx context.Context, what, query string, args ...any) (*models.Wishlist, error) {
	list, err := scanWishlist(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wishlist by %s: %w", what, err)
	}
	return list, nil
}

func (r *wishlistRepository) GetByID(ctx context.Context, id int64) (*models.Wishlist, error) {
	return r.queryOne(ctx, "ID",
		`SELECT `+wishlistColumns+` FROM wishlists WHERE id = $1`, id)
}

func (r *wishlistRepository) GetOwned(ctx context.Context, id, ownerID int64) (*models.Wishlist, error) {
	return r.queryOne(ctx, "owner",
		`SELECT `+wishlistColumns+` FROM wishlists WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (r *wishlistRepository) GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error) {
	return r.queryOne(ctx, "slug",
		`SELECT `+wishlistColumns+` FROM wishlists WHERE public_slug = $1`, slug)
}

func (r *wishlistRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM wishlists WHERE public_slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist slug: %w", err)
	}
	return exists, nil
}

func (r *wishlistRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Wishlist, error) {
	query := `
		SELECT ` + wishlistColumns + `
		FROM wishlists
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlists by owner: %w", err)
	}
	defer rows.Close()

	var lists []*models.Wishlist
	for rows.Next() {
		list, err := scanWishlist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist: %w", err)
		}
		lists = append(lists, list)
	}

	return lists, rows.Err()
}

func (r *wishlistRepository) Update(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	query := `
		UPDATE wishlists
		SET title = $2, description = $3, event_date = $4, is_public = $5
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		list.ID,
		list.Title,
		list.Description,
		list.EventDate,
		list.IsPublic,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("wishlist %d: %w", list.ID, repository.ErrNotFound)
	}

	return list, nil
}

func (r *wishlistRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM wishlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wishlist %d: %w", id, repository.ErrNotFound)
	}

	return nil
}
