package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/realtime"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

// ItemInput is the editable part of an item. Updates replace every field.
type ItemInput struct {
	Title                string  `json:"title" validate:"required,max=255"`
	URL                  *string `json:"url" validate:"omitnil,max=2048"`
	ImageURL             *string `json:"image_url" validate:"omitnil,max=2048"`
	PriceCents           *int64  `json:"price_cents" validate:"omitnil,gte=0"`
	AllowGroupFunding    bool    `json:"allow_group_funding"`
	TargetAmountCents    *int64  `json:"target_amount_cents" validate:"omitnil,gte=0"`
	MinContributionCents *int64  `json:"min_contribution_cents" validate:"omitnil,gt=0"`
	SourceUnavailable    bool    `json:"source_unavailable"`
}

func (in ItemInput) apply(item *models.Item) {
	item.Title = in.Title
	item.URL = in.URL
	item.ImageURL = in.ImageURL
	item.PriceCents = in.PriceCents
	item.AllowGroupFunding = in.AllowGroupFunding
	item.TargetAmountCents = in.TargetAmountCents
	item.MinContributionCents = in.MinContributionCents
	item.SourceUnavailable = in.SourceUnavailable
}

// CreateItem adds an item to a wishlist owned by ownerID.
func (s *Service) CreateItem(ctx context.Context, ownerID, wishlistID int64, in ItemInput) (*models.Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}

	list, err := s.Wishlists.GetOwned(ctx, wishlistID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist %d: %w", wishlistID, err)
	}
	if list == nil {
		return nil, fmt.Errorf("wishlist %d: %w", wishlistID, ErrNotFound)
	}

	item := &models.Item{WishlistID: list.ID}
	in.apply(item)

	item, err = s.Items.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create item in wishlist %d: %w", list.ID, err)
	}

	s.logger.Infof("Created item %d in wishlist %d", item.ID, list.ID)
	s.emit(list.ID, realtime.EventItemCreated)
	return item, nil
}

// UpdateItem replaces the editable fields of an item owned by ownerID. The
// write happens under the item's ledger lock; a funding target below the
// amount already collected is rejected with ErrInvalidState.
func (s *Service) UpdateItem(ctx context.Context, ownerID, itemID int64, in ItemInput) (*models.Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}

	if _, err := s.ownedItem(ctx, ownerID, itemID); err != nil {
		return nil, err
	}

	var updated *models.Item
	err := s.Ledger.WithItemLock(ctx, itemID, func(tx repository.LedgerTx, item *models.Item) error {
		if item == nil {
			return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		in.apply(item)

		collected, err := tx.CollectedAmount(ctx, item.ID)
		if err != nil {
			return err
		}
		if collected > 0 {
			target, ok := item.FundingTarget()
			if !ok || target < collected {
				return fmt.Errorf("item %d has %d cents collected, target would be %d: %w",
					item.ID, collected, target, ErrInvalidState)
			}
		}

		updated, err = tx.UpdateItem(ctx, item)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update item %d: %w", itemID, err)
	}

	s.emit(updated.WishlistID, realtime.EventItemUpdated)
	return updated, nil
}

// DeleteItem removes an item owned by ownerID together with its
// reservations and contributions.
func (s *Service) DeleteItem(ctx context.Context, ownerID, itemID int64) error {
	item, err := s.ownedItem(ctx, ownerID, itemID)
	if err != nil {
		return err
	}

	if err := s.Items.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete item %d: %w", itemID, err)
	}

	s.logger.Infof("Deleted item %d from wishlist %d", item.ID, item.WishlistID)
	s.emit(item.WishlistID, realtime.EventItemDeleted)
	return nil
}

func (s *Service) ownedItem(ctx context.Context, ownerID, itemID int64) (*models.Item, error) {
	item, err := s.Items.GetOwned(ctx, itemID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item %d: %w", itemID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return item, nil
}
