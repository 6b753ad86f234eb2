package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/realtime"
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin applies the CORS origin list to WebSocket handshakes.
// Requests without an Origin header come from non-browser clients.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.opts.CORSOrigins, "*") {
		return true
	}
	return slices.Contains(s.opts.CORSOrigins, origin)
}

// handleWishlistSocket joins the caller to the wishlist's room for as long
// as the connection lives. The room is keyed by id alone; anyone holding
// the id may listen.
func (s *Server) handleWishlistSocket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid wishlist id")
		return
	}

	ws, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	room := realtime.RoomID(id)
	conn := realtime.NewConn(ws, s.opts.Conn, s.logger)
	s.dispatcher.Subscribe(room, conn)
	defer s.dispatcher.Unsubscribe(room, conn)

	s.logger.WithFields(logrus.Fields{
		"room":          room,
		"subscriber_id": conn.ID(),
	}).Info("WebSocket connected")

	conn.Serve(s.ctx)

	s.logger.WithField("subscriber_id", conn.ID()).Info("WebSocket disconnected")
}
