package repository

import (
	"context"
	"errors"

	"github.com/Kerhoff/wishlistd/internal/models"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by updates and deletes that matched no row.
	ErrNotFound = errors.New("record not found")
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	SetTelegramChatID(ctx context.Context, userID int64, chatID *int64) error
}

// WishlistRepository defines the interface for wishlist data operations.
// Lookups return nil, nil when nothing matches.
type WishlistRepository interface {
	Create(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error)
	GetByID(ctx context.Context, id int64) (*models.Wishlist, error)
	GetOwned(ctx context.Context, id, ownerID int64) (*models.Wishlist, error)
	GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Wishlist, error)
	Update(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error)
	Delete(ctx context.Context, id int64) error
}

// ItemRepository defines the interface for wishlist item data operations
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	GetByID(ctx context.Context, id int64) (*models.Item, error)
	GetOwned(ctx context.Context, itemID, ownerID int64) (*models.Item, error)
	ListByWishlist(ctx context.Context, wishlistID int64) ([]*models.Item, error)
	Delete(ctx context.Context, id int64) error
}

// LedgerStore persists reservations, contributions and item edits. Every
// write goes through WithItemLock so the checks and the write see a stable
// item and a stable collected amount.
type LedgerStore interface {
	// WithItemLock runs fn while holding an exclusive lock on the item row.
	// item is nil when the item does not exist. Writes made through tx are
	// committed only when fn returns nil.
	WithItemLock(ctx context.Context, itemID int64, fn func(tx LedgerTx, item *models.Item) error) error

	// ListReservations returns the reservations of the given items with
	// their contributions loaded.
	ListReservations(ctx context.Context, itemIDs []int64) ([]*models.Reservation, error)
}

// LedgerTx is the view of the ledger inside WithItemLock.
type LedgerTx interface {
	CountReservations(ctx context.Context, itemID int64) (int, error)
	CollectedAmount(ctx context.Context, itemID int64) (int64, error)
	GroupReservation(ctx context.Context, itemID int64) (*models.Reservation, error)
	CreateReservation(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	CreateContribution(ctx context.Context, c *models.Contribution) (*models.Contribution, error)
	// UpdateItem replaces the editable fields of the locked item.
	UpdateItem(ctx context.Context, item *models.Item) (*models.Item, error)
}
