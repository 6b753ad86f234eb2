package api

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/service"
)

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type linkTelegramRequest struct {
	ChatID *int64 `json:"chat_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := s.svc.Register(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err, "register user")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// handleLogin accepts an OAuth2 password form (username, password) or a
// JSON body with email and password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	token, err := s.svc.Login(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err, "log in")
		return
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user *models.User) {
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleLinkTelegram(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req linkTelegramRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := s.svc.LinkTelegram(r.Context(), user.ID, req.ChatID)
	if err != nil {
		s.respondServiceError(w, r, err, "link telegram chat")
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// ---------------------------------------------------------------------------
// Wishlists
// ---------------------------------------------------------------------------

func (s *Server) handleListWishlists(w http.ResponseWriter, r *http.Request, user *models.User) {
	lists, err := s.svc.ListWishlists(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, r, err, "list wishlists")
		return
	}
	s.respondJSON(w, http.StatusOK, lists)
}

func (s *Server) handleCreateWishlist(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req service.WishlistInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := s.svc.CreateWishlist(r.Context(), user.ID, req)
	if err != nil {
		s.respondServiceError(w, r, err, "create wishlist")
		return
	}
	s.respondJSON(w, http.StatusCreated, list)
}

func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid wishlist id")
		return
	}

	view, err := s.svc.GetOwnedWishlist(r.Context(), user.ID, id)
	if err != nil {
		s.respondServiceError(w, r, err, "get wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateWishlist(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid wishlist id")
		return
	}

	var req service.WishlistInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := s.svc.UpdateWishlist(r.Context(), user.ID, id, req)
	if err != nil {
		s.respondServiceError(w, r, err, "update wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteWishlist(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid wishlist id")
		return
	}

	if err := s.svc.DeleteWishlist(r.Context(), user.ID, id); err != nil {
		s.respondServiceError(w, r, err, "delete wishlist")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePublicWishlist(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetPublicWishlist(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, r, err, "get wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request, user *models.User) {
	wishlistID, err := pathID(r, "wishlist_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid wishlist id")
		return
	}

	var req service.ItemInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.CreateItem(r.Context(), user.ID, wishlistID, req)
	if err != nil {
		s.respondServiceError(w, r, err, "create item")
		return
	}
	s.respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req service.ItemInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.UpdateItem(r.Context(), user.ID, id, req)
	if err != nil {
		s.respondServiceError(w, r, err, "update item")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := s.svc.DeleteItem(r.Context(), user.ID, id); err != nil {
		s.respondServiceError(w, r, err, "delete item")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Reservations and contributions
// ---------------------------------------------------------------------------

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req service.ReserveInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := s.svc.Reserve(r.Context(), id, req)
	if err != nil {
		s.respondServiceError(w, r, err, "reserve item")
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req service.ContributeInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	c, err := s.svc.Contribute(r.Context(), id, req)
	if err != nil {
		s.respondServiceError(w, r, err, "add contribution")
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleFunding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	funding, err := s.svc.Funding(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "get funding")
		return
	}
	s.respondJSON(w, http.StatusOK, funding)
}
