package service

import (
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/realtime"
)

// emit tells the viewers of a wishlist that something changed. Call it only
// after the change has been committed; it never fails the caller.
func (s *Service) emit(wishlistID int64, kind realtime.EventKind) {
	if s.events == nil {
		return
	}

	s.events.Publish(realtime.RoomID(wishlistID), realtime.Event{Type: kind})

	s.logger.WithFields(logrus.Fields{
		"wishlist_id": wishlistID,
		"event":       kind,
	}).Debug("Event published")
}
