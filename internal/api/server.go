package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/realtime"
	"github.com/Kerhoff/wishlistd/internal/service"
)

const appVersion = "1.0.0"

// Options configures the HTTP layer.
type Options struct {
	AppName     string
	CORSOrigins []string
	Conn        realtime.ConnOptions
}

// Server provides the HTTP API and the WebSocket endpoints.
type Server struct {
	svc        *service.Service
	dispatcher *realtime.Dispatcher
	logger     *logrus.Logger
	router     *chi.Mux
	opts       Options

	// ctx outlives individual requests; WebSocket sessions end when it is
	// cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, dispatcher *realtime.Dispatcher, logger *logrus.Logger, opts Options) *Server {
	if opts.AppName == "" {
		opts.AppName = "Social Wishlist API"
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc:        svc,
		dispatcher: dispatcher,
		logger:     logger,
		router:     chi.NewRouter(),
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends every open WebSocket session. http.Server.Shutdown does not
// track hijacked connections, so call this alongside it.
func (s *Server) Close() {
	s.cancel()
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/routes", s.handleRoutes)

	// Accounts
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Get("/auth/me", s.authenticated(s.handleMe))
	r.Put("/auth/me/telegram", s.authenticated(s.handleLinkTelegram))

	// Wishlists
	r.Get("/wishlists/me", s.authenticated(s.handleListWishlists))
	r.Post("/wishlists", s.authenticated(s.handleCreateWishlist))
	r.Get("/wishlists/{id}", s.authenticated(s.handleGetWishlist))
	r.Patch("/wishlists/{id}", s.authenticated(s.handleUpdateWishlist))
	r.Delete("/wishlists/{id}", s.authenticated(s.handleDeleteWishlist))
	r.Get("/wishlists/public/{slug}", s.handlePublicWishlist)

	// Items
	r.Post("/items/wishlist/{wishlist_id}", s.authenticated(s.handleCreateItem))
	r.Patch("/items/{id}", s.authenticated(s.handleUpdateItem))
	r.Delete("/items/{id}", s.authenticated(s.handleDeleteItem))

	// Reservations and contributions
	r.Post("/items/{id}/reserve", s.handleReserve)
	r.Post("/items/{id}/contributions", s.handleContribute)
	r.Get("/items/{id}/funding", s.handleFunding)

	// Realtime; both paths reach the same room
	r.Get("/ws/wishlists/{id}", s.handleWishlistSocket)
	r.Get("/ws/{id}", s.handleWishlistSocket)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error onto a status code. Domain
// rejections carry their message; anything else is logged and reported as
// a generic failure.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrExceedsRemaining):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).
			Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts a numeric URL parameter and converts it to int64.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s in path", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

type userHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// authenticated resolves the bearer token before calling next.
func (s *Server) authenticated(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		user, err := s.svc.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.respondServiceError(w, r, err, "authenticate")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"remote":     r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

// ---------------------------------------------------------------------------
// Root
// ---------------------------------------------------------------------------

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": s.opts.AppName,
		"version": appVersion,
		"health":  "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type routeInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	var routes []routeInfo
	err := chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeInfo{Method: method, Path: route})
		return nil
	})
	if err != nil {
		s.respondServiceError(w, r, err, "list routes")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"routes": routes, "total": len(routes)})
}
