package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

const (
	slugLength   = 8
	slugAttempts = 10
	dateLayout   = "2006-01-02"
)

// WishlistInput is the editable part of a wishlist. IsPublic defaults to
// true on create and is left unchanged on update when omitted.
type WishlistInput struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	EventDate   *string `json:"event_date" validate:"omitnil,datetime=2006-01-02"`
	IsPublic    *bool   `json:"is_public"`
}

func (in WishlistInput) eventDate() *time.Time {
	if in.EventDate == nil {
		return nil
	}
	// already validated
	t, _ := time.Parse(dateLayout, *in.EventDate)
	return &t
}

// OwnerItem is an item as its owner sees it: how many reservations and how
// much money it has, but not from whom.
type OwnerItem struct {
	*models.Item
	ReservedCount        int   `json:"reserved_count"`
	CollectedAmountCents int64 `json:"collected_amount_cents"`
}

// OwnerWishlist is the owner's detailed view of a wishlist.
type OwnerWishlist struct {
	*models.Wishlist
	Items []OwnerItem `json:"items"`
}

// PublicContribution hides the contributor name when they asked to stay
// anonymous.
type PublicContribution struct {
	ID              int64   `json:"id"`
	AmountCents     int64   `json:"amount_cents"`
	ContributorName *string `json:"contributor_name"`
	IsAnonymous     bool    `json:"is_anonymous"`
}

type PublicReservation struct {
	ID            int64                `json:"id"`
	ReserverName  string               `json:"reserver_name"`
	Message       *string              `json:"message"`
	IsGroup       bool                 `json:"is_group"`
	CreatedAt     time.Time            `json:"created_at"`
	Contributions []PublicContribution `json:"contributions"`
}

type PublicItem struct {
	*models.Item
	Reservations         []PublicReservation `json:"reservations"`
	CollectedAmountCents int64               `json:"collected_amount_cents"`
}

// PublicWishlist is what guests see through the shared link.
type PublicWishlist struct {
	*models.Wishlist
	Items []PublicItem `json:"items"`
}

// newSlug returns a random lowercase alphanumeric slug.
func newSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:slugLength]
}

// CreateWishlist creates a wishlist with a fresh public slug.
func (s *Service) CreateWishlist(ctx context.Context, ownerID int64, in WishlistInput) (*models.Wishlist, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug := newSlug()
		taken, err := s.Wishlists.SlugExists(ctx, slug)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		list, err := s.Wishlists.Create(ctx, &models.Wishlist{
			OwnerID:     ownerID,
			Title:       in.Title,
			Description: in.Description,
			EventDate:   in.eventDate(),
			PublicSlug:  slug,
			IsPublic:    isPublic,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create wishlist: %w", err)
		}

		s.logger.Infof("Created wishlist %d (slug=%s) for user %d", list.ID, list.PublicSlug, ownerID)
		return list, nil
	}

	return nil, fmt.Errorf("failed to allocate a unique slug after %d attempts", slugAttempts)
}

// ListWishlists returns the owner's wishlists, newest first.
func (s *Service) ListWishlists(ctx context.Context, ownerID int64) ([]*models.Wishlist, error) {
	lists, err := s.Wishlists.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlists of user %d: %w", ownerID, err)
	}
	if lists == nil {
		lists = []*models.Wishlist{}
	}
	return lists, nil
}

func (s *Service) ownedWishlist(ctx context.Context, ownerID, wishlistID int64) (*models.Wishlist, error) {
	list, err := s.Wishlists.GetOwned(ctx, wishlistID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist %d: %w", wishlistID, err)
	}
	if list == nil {
		return nil, fmt.Errorf("wishlist %d: %w", wishlistID, ErrNotFound)
	}
	return list, nil
}

// loadItems returns the items of a wishlist and their reservations grouped
// by item id.
func (s *Service) loadItems(ctx context.Context, wishlistID int64) ([]*models.Item, map[int64][]*models.Reservation, error) {
	items, err := s.Items.ListByWishlist(ctx, wishlistID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list items of wishlist %d: %w", wishlistID, err)
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	reservations, err := s.Ledger.ListReservations(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list reservations of wishlist %d: %w", wishlistID, err)
	}

	byItem := make(map[int64][]*models.Reservation, len(items))
	for _, r := range reservations {
		byItem[r.ItemID] = append(byItem[r.ItemID], r)
	}
	return items, byItem, nil
}

// GetOwnedWishlist returns the owner's view of a wishlist.
func (s *Service) GetOwnedWishlist(ctx context.Context, ownerID, wishlistID int64) (*OwnerWishlist, error) {
	list, err := s.ownedWishlist(ctx, ownerID, wishlistID)
	if err != nil {
		return nil, err
	}

	items, byItem, err := s.loadItems(ctx, list.ID)
	if err != nil {
		return nil, err
	}

	view := &OwnerWishlist{Wishlist: list, Items: make([]OwnerItem, 0, len(items))}
	for _, item := range items {
		f := fundingOf(item, byItem[item.ID])
		view.Items = append(view.Items, OwnerItem{
			Item:                 item,
			ReservedCount:        f.ReservationCount,
			CollectedAmountCents: f.CollectedCents,
		})
	}
	return view, nil
}

// UpdateWishlist changes the title, description, event date and, when
// given, the visibility of a wishlist.
func (s *Service) UpdateWishlist(ctx context.Context, ownerID, wishlistID int64, in WishlistInput) (*models.Wishlist, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}

	list, err := s.ownedWishlist(ctx, ownerID, wishlistID)
	if err != nil {
		return nil, err
	}

	list.Title = in.Title
	list.Description = in.Description
	list.EventDate = in.eventDate()
	if in.IsPublic != nil {
		list.IsPublic = *in.IsPublic
	}

	list, err = s.Wishlists.Update(ctx, list)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("wishlist %d: %w", wishlistID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update wishlist %d: %w", wishlistID, err)
	}
	return list, nil
}

// DeleteWishlist removes a wishlist with everything in it.
func (s *Service) DeleteWishlist(ctx context.Context, ownerID, wishlistID int64) error {
	list, err := s.ownedWishlist(ctx, ownerID, wishlistID)
	if err != nil {
		return err
	}

	if err := s.Wishlists.Delete(ctx, list.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("wishlist %d: %w", wishlistID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete wishlist %d: %w", wishlistID, err)
	}

	s.logger.Infof("Deleted wishlist %d of user %d", list.ID, ownerID)
	return nil
}

// GetPublicWishlist returns the guest view of a public wishlist.
func (s *Service) GetPublicWishlist(ctx context.Context, slug string) (*PublicWishlist, error) {
	list, err := s.Wishlists.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist %q: %w", slug, err)
	}
	if list == nil || !list.IsPublic {
		return nil, fmt.Errorf("wishlist %q: %w", slug, ErrNotFound)
	}

	items, byItem, err := s.loadItems(ctx, list.ID)
	if err != nil {
		return nil, err
	}

	view := &PublicWishlist{Wishlist: list, Items: make([]PublicItem, 0, len(items))}
	for _, item := range items {
		pub := PublicItem{Item: item, Reservations: []PublicReservation{}}
		for _, r := range byItem[item.ID] {
			res := PublicReservation{
				ID:            r.ID,
				ReserverName:  r.ReserverName,
				Message:       r.Message,
				IsGroup:       r.IsGroup,
				CreatedAt:     r.CreatedAt,
				Contributions: make([]PublicContribution, 0, len(r.Contributions)),
			}
			for _, c := range r.Contributions {
				pc := PublicContribution{ID: c.ID, AmountCents: c.AmountCents, IsAnonymous: c.IsAnonymous}
				if !c.IsAnonymous {
					name := c.ContributorName
					pc.ContributorName = &name
				}
				res.Contributions = append(res.Contributions, pc)
				pub.CollectedAmountCents += c.AmountCents
			}
			pub.Reservations = append(pub.Reservations, res)
		}
		view.Items = append(view.Items, pub)
	}
	return view, nil
}
