package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// NotifyCallback is a function that sends a text message to a chat.
type NotifyCallback func(chatID int64, text string)

type ownerNotice struct {
	wishlistID int64
	text       string
}

// StartOwnerNotifier delivers queued owner notifications through callback
// until ctx is cancelled. It blocks, so it should be launched in a separate
// goroutine. Nothing is queued while no notifier is running.
func (s *Service) StartOwnerNotifier(ctx context.Context, callback NotifyCallback) {
	s.noticesActive.Store(true)
	defer s.noticesActive.Store(false)

	s.logger.Info("Owner notifier started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Owner notifier stopped")
			return
		case n := <-s.notices:
			s.deliverNotice(ctx, n, callback)
		}
	}
}

// queueNotice hands a notice to the running notifier. The queue is bounded;
// when it is full the notice is dropped.
func (s *Service) queueNotice(wishlistID int64, text string) {
	if !s.noticesActive.Load() {
		return
	}
	select {
	case s.notices <- ownerNotice{wishlistID: wishlistID, text: text}:
	default:
		s.logger.WithField("wishlist_id", wishlistID).Warn("Owner notification queue full, dropping notice")
	}
}

// deliverNotice resolves the owner's linked chat and sends the notice.
// Wishlists whose owner has no linked chat are skipped.
func (s *Service) deliverNotice(ctx context.Context, n ownerNotice, callback NotifyCallback) {
	log := s.logger.WithField("wishlist_id", n.wishlistID)

	list, err := s.Wishlists.GetByID(ctx, n.wishlistID)
	if err != nil {
		log.WithError(err).Error("Failed to load wishlist for notification")
		return
	}
	if list == nil {
		return
	}

	owner, err := s.Users.GetByID(ctx, list.OwnerID)
	if err != nil {
		log.WithError(err).Error("Failed to load wishlist owner for notification")
		return
	}
	if owner == nil || owner.TelegramChatID == nil {
		return
	}

	callback(*owner.TelegramChatID, fmt.Sprintf("Wishlist %q\n%s", list.Title, n.text))
	log.WithFields(logrus.Fields{"owner_id": owner.ID}).Debug("Owner notified")
}
