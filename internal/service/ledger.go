package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/realtime"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

// ReserveInput is a guest's claim on an item.
type ReserveInput struct {
	ReserverName string  `json:"reserver_name" validate:"required,max=255"`
	Message      *string `json:"message"`
	IsGroup      bool    `json:"is_group"`
}

// ContributeInput is money pledged toward a group-funded item.
type ContributeInput struct {
	ContributorName string `json:"contributor_name" validate:"required,max=255"`
	AmountCents     int64  `json:"amount_cents" validate:"gt=0"`
	IsAnonymous     bool   `json:"is_anonymous"`
}

// Reserve records a reservation on an item. An item without group funding
// accepts a single reservation; later attempts fail with ErrConflict. Only
// one group reservation may exist per item.
func (s *Service) Reserve(ctx context.Context, itemID int64, in ReserveInput) (*models.Reservation, error) {
	in.ReserverName = strings.TrimSpace(in.ReserverName)
	if err := s.check(in); err != nil {
		s.metrics.reject("reserve", err)
		return nil, err
	}

	var (
		reservation *models.Reservation
		wishlistID  int64
	)
	err := s.Ledger.WithItemLock(ctx, itemID, func(tx repository.LedgerTx, item *models.Item) error {
		if item == nil {
			return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		wishlistID = item.WishlistID

		if !item.AllowGroupFunding {
			count, err := tx.CountReservations(ctx, item.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("item %d is already reserved: %w", item.ID, ErrConflict)
			}
		}

		created, err := tx.CreateReservation(ctx, &models.Reservation{
			ItemID:       item.ID,
			ReserverName: in.ReserverName,
			Message:      in.Message,
			IsGroup:      in.IsGroup,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("item %d already has a group reservation: %w", item.ID, ErrConflict)
			}
			return err
		}
		reservation = created
		return nil
	})
	if err != nil {
		s.metrics.reject("reserve", err)
		return nil, err
	}

	s.metrics.accept("reserve")
	s.logger.WithFields(logrus.Fields{
		"item_id":        itemID,
		"reservation_id": reservation.ID,
		"is_group":       reservation.IsGroup,
	}).Info("Item reserved")

	s.emit(wishlistID, realtime.EventItemReserved)
	s.queueNotice(wishlistID, "Someone reserved a gift from your wishlist.")
	return reservation, nil
}

// Contribute adds money toward a group-funded item. The group reservation
// is created by the first contribution and shared by the rest. The running
// total never exceeds the item's funding target.
func (s *Service) Contribute(ctx context.Context, itemID int64, in ContributeInput) (*models.Contribution, error) {
	in.ContributorName = strings.TrimSpace(in.ContributorName)
	if err := s.check(in); err != nil {
		s.metrics.reject("contribute", err)
		return nil, err
	}

	var (
		contribution *models.Contribution
		wishlistID   int64
		remaining    int64
	)
	err := s.Ledger.WithItemLock(ctx, itemID, func(tx repository.LedgerTx, item *models.Item) error {
		if item == nil || !item.AllowGroupFunding {
			return fmt.Errorf("group-funded item %d: %w", itemID, ErrNotFound)
		}
		wishlistID = item.WishlistID

		target, ok := item.FundingTarget()
		if !ok {
			return fmt.Errorf("item %d has no funding target: %w", item.ID, ErrInvalidState)
		}

		collected, err := tx.CollectedAmount(ctx, item.ID)
		if err != nil {
			return err
		}
		remaining = target - collected
		// Checked before the minimum so a fully funded item reports
		// ExceedsRemaining for any amount. The cost: an amount that is both
		// over the remainder and under the minimum reports ExceedsRemaining.
		if in.AmountCents > remaining {
			return fmt.Errorf("%d cents requested, %d cents remaining: %w", in.AmountCents, remaining, ErrExceedsRemaining)
		}

		if floor := item.MinContributionCents; floor != nil && *floor > 0 && in.AmountCents < *floor {
			return fmt.Errorf("minimum is %d cents: %w", *floor, ErrBelowMinimum)
		}

		group, err := tx.GroupReservation(ctx, item.ID)
		if err != nil {
			return err
		}
		if group == nil {
			group, err = tx.CreateReservation(ctx, &models.Reservation{
				ItemID:       item.ID,
				ReserverName: in.ContributorName,
				IsGroup:      true,
			})
			if err != nil {
				return err
			}
		}

		created, err := tx.CreateContribution(ctx, &models.Contribution{
			ReservationID:   group.ID,
			AmountCents:     in.AmountCents,
			ContributorName: in.ContributorName,
			IsAnonymous:     in.IsAnonymous,
		})
		if err != nil {
			return err
		}
		contribution = created
		remaining -= created.AmountCents
		return nil
	})
	if err != nil {
		s.metrics.reject("contribute", err)
		return nil, err
	}

	s.metrics.accept("contribute")
	s.logger.WithFields(logrus.Fields{
		"item_id":         itemID,
		"contribution_id": contribution.ID,
		"remaining_cents": remaining,
	}).Info("Contribution added")

	s.emit(wishlistID, realtime.EventContributionAdded)
	s.queueNotice(wishlistID, "A new contribution was added to a group gift.")
	return contribution, nil
}

// Funding reports how far an item is from being covered.
func (s *Service) Funding(ctx context.Context, itemID int64) (*models.Funding, error) {
	item, err := s.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item %d: %w", itemID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}

	reservations, err := s.Ledger.ListReservations(ctx, []int64{item.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations of item %d: %w", itemID, err)
	}

	return fundingOf(item, reservations), nil
}

// fundingOf derives the funding state of item from its reservations.
func fundingOf(item *models.Item, reservations []*models.Reservation) *models.Funding {
	f := &models.Funding{
		ItemID:           item.ID,
		State:            models.FundingOpen,
		ReservationCount: len(reservations),
	}

	hasGroup := false
	for _, r := range reservations {
		hasGroup = hasGroup || r.IsGroup
		for _, c := range r.Contributions {
			f.CollectedCents += c.AmountCents
		}
	}

	target, ok := item.FundingTarget()
	if item.AllowGroupFunding && ok {
		remaining := target - f.CollectedCents
		if remaining < 0 {
			remaining = 0
		}
		f.TargetCents = &target
		f.RemainingCents = &remaining
	}

	switch {
	case len(reservations) == 0:
		f.State = models.FundingOpen
	case !item.AllowGroupFunding:
		f.State = models.FundingReserved
	case ok && f.CollectedCents >= target:
		f.State = models.FundingFunded
	case hasGroup:
		f.State = models.FundingActive
	default:
		f.State = models.FundingReserved
	}
	return f
}
