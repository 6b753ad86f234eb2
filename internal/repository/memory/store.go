// Package memory is an in-process implementation of the repositories, used
// by STORAGE_DRIVER=memory and by the service and API tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

// Store holds every table in maps guarded by one lock. Ledger writes
// additionally hold a per-item lock for the whole unit of work.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]*models.User
	wishlists     map[int64]*models.Wishlist
	items         map[int64]*models.Item
	reservations  map[int64]*models.Reservation
	contributions map[int64]*models.Contribution

	seq *atomic.Int64

	lockMu    sync.Mutex
	itemLocks map[int64]*lockEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[int64]*models.User),
		wishlists:     make(map[int64]*models.Wishlist),
		items:         make(map[int64]*models.Item),
		reservations:  make(map[int64]*models.Reservation),
		contributions: make(map[int64]*models.Contribution),
		seq:           atomic.NewInt64(0),
		itemLocks:     make(map[int64]*lockEntry),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return &userRepository{s} }

// Wishlists returns the wishlist repository view of the store.
func (s *Store) Wishlists() repository.WishlistRepository { return &wishlistRepository{s} }

// Items returns the item repository view of the store.
func (s *Store) Items() repository.ItemRepository { return &itemRepository{s} }

// Ledger returns the reservation and contribution store.
func (s *Store) Ledger() repository.LedgerStore { return &ledgerStore{s} }

func (s *Store) nextID() int64 { return s.seq.Inc() }

// ------------------------------------------------------------------
// Users
// ------------------------------------------------------------------

type userRepository struct{ s *Store }

func copyUser(u *models.User) *models.User {
	c := *u
	if u.TelegramChatID != nil {
		id := *u.TelegramChatID
		c.TelegramChatID = &id
	}
	return &c
}

func (r *userRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return nil, fmt.Errorf("user %q: %w", user.Email, repository.ErrDuplicate)
		}
	}

	user.ID = r.s.nextID()
	user.CreatedAt = time.Now()
	r.s.users[user.ID] = copyUser(user)
	return user, nil
}

func (r *userRepository) find(match func(*models.User) bool) *models.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return copyUser(u)
		}
	}
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (r *userRepository) GetByTelegramChatID(_ context.Context, chatID int64) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.TelegramChatID != nil && *u.TelegramChatID == chatID
	}), nil
}

func (r *userRepository) SetTelegramChatID(_ context.Context, userID int64, chatID *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, repository.ErrNotFound)
	}
	if chatID == nil {
		u.TelegramChatID = nil
		return nil
	}
	id := *chatID
	u.TelegramChatID = &id
	return nil
}

// ------------------------------------------------------------------
// Wishlists
// ------------------------------------------------------------------

type wishlistRepository struct{ s *Store }

func copyWishlist(w *models.Wishlist) *models.Wishlist {
	c := *w
	return &c
}

func (r *wishlistRepository) Create(_ context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, w := range r.s.wishlists {
		if w.PublicSlug == list.PublicSlug {
			return nil, fmt.Errorf("wishlist slug %q: %w", list.PublicSlug, repository.ErrDuplicate)
		}
	}

	list.ID = r.s.nextID()
	list.CreatedAt = time.Now()
	r.s.wishlists[list.ID] = copyWishlist(list)
	return list, nil
}

func (r *wishlistRepository) get(match func(*models.Wishlist) bool) *models.Wishlist {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, w := range r.s.wishlists {
		if match(w) {
			return copyWishlist(w)
		}
	}
	return nil
}

func (r *wishlistRepository) GetByID(_ context.Context, id int64) (*models.Wishlist, error) {
	return r.get(func(w *models.Wishlist) bool { return w.ID == id }), nil
}

func (r *wishlistRepository) GetOwned(_ context.Context, id, ownerID int64) (*models.Wishlist, error) {
	return r.get(func(w *models.Wishlist) bool { return w.ID == id && w.OwnerID == ownerID }), nil
}

func (r *wishlistRepository) GetBySlug(_ context.Context, slug string) (*models.Wishlist, error) {
	return r.get(func(w *models.Wishlist) bool { return w.PublicSlug == slug }), nil
}

func (r *wishlistRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	w, _ := r.GetBySlug(ctx, slug)
	return w != nil, nil
}

func (r *wishlistRepository) ListByOwner(_ context.Context, ownerID int64) ([]*models.Wishlist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var lists []*models.Wishlist
	for _, w := range r.s.wishlists {
		if w.OwnerID == ownerID {
			lists = append(lists, copyWishlist(w))
		}
	}
	// newest first; ids break ties between lists created in the same instant
	sort.Slice(lists, func(i, j int) bool {
		if !lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].CreatedAt.After(lists[j].CreatedAt)
		}
		return lists[i].ID > lists[j].ID
	})
	return lists, nil
}

func (r *wishlistRepository) Update(_ context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wishlists[list.ID]
	if !ok {
		return nil, fmt.Errorf("wishlist %d: %w", list.ID, repository.ErrNotFound)
	}
	w.Title = list.Title
	w.Description = list.Description
	w.EventDate = list.EventDate
	w.IsPublic = list.IsPublic
	return copyWishlist(w), nil
}

func (r *wishlistRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.wishlists[id]; !ok {
		return fmt.Errorf("wishlist %d: %w", id, repository.ErrNotFound)
	}
	delete(r.s.wishlists, id)
	for itemID, item := range r.s.items {
		if item.WishlistID == id {
			r.s.deleteItemLocked(itemID)
		}
	}
	return nil
}

// ------------------------------------------------------------------
// Items
// ------------------------------------------------------------------

type itemRepository struct{ s *Store }

func copyItem(i *models.Item) *models.Item {
	c := *i
	return &c
}

func (r *itemRepository) Create(_ context.Context, item *models.Item) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.wishlists[item.WishlistID]; !ok {
		return nil, fmt.Errorf("wishlist %d: %w", item.WishlistID, repository.ErrNotFound)
	}

	item.ID = r.s.nextID()
	item.CreatedAt = time.Now()
	r.s.items[item.ID] = copyItem(item)
	return item, nil
}

func (r *itemRepository) GetByID(_ context.Context, id int64) (*models.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if item, ok := r.s.items[id]; ok {
		return copyItem(item), nil
	}
	return nil, nil
}

func (r *itemRepository) GetOwned(_ context.Context, itemID, ownerID int64) (*models.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[itemID]
	if !ok {
		return nil, nil
	}
	if w, ok := r.s.wishlists[item.WishlistID]; !ok || w.OwnerID != ownerID {
		return nil, nil
	}
	return copyItem(item), nil
}

func (r *itemRepository) ListByWishlist(_ context.Context, wishlistID int64) ([]*models.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var items []*models.Item
	for _, item := range r.s.items {
		if item.WishlistID == wishlistID {
			items = append(items, copyItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *itemRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[id]; !ok {
		return fmt.Errorf("wishlist item %d: %w", id, repository.ErrNotFound)
	}
	r.s.deleteItemLocked(id)
	return nil
}

// deleteItemLocked removes an item with its reservations and contributions.
// s.mu must be held for writing.
func (s *Store) deleteItemLocked(itemID int64) {
	delete(s.items, itemID)
	for resID, res := range s.reservations {
		if res.ItemID != itemID {
			continue
		}
		delete(s.reservations, resID)
		for cID, c := range s.contributions {
			if c.ReservationID == resID {
				delete(s.contributions, cID)
			}
		}
	}
}
