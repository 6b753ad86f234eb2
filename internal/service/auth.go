package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

// Credentials is an email and password pair.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. A taken email yields ErrConflict.
func (s *Service) Register(ctx context.Context, in Credentials) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.Users.Create(ctx, &models.User{Email: in.Email, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infof("Registered user %d", user.ID)
	return user, nil
}

// Login checks the credentials and issues a signed access token.
func (s *Service) Login(ctx context.Context, in Credentials) (string, error) {
	user, err := s.Users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("incorrect email or password: %w", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return "", fmt.Errorf("incorrect email or password: %w", ErrUnauthorized)
	}

	return s.issueToken(user.Email, time.Now())
}

func (s *Service) issueToken(subject string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves an access token to its user.
func (s *Service) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v: %w", err, ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", ErrUnauthorized)
	}

	user, err := s.Users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("unknown user: %w", ErrUnauthorized)
	}
	return user, nil
}

// LinkTelegram sets or, with a nil chatID, clears the chat that receives
// the user's owner notifications.
func (s *Service) LinkTelegram(ctx context.Context, userID int64, chatID *int64) (*models.User, error) {
	if chatID != nil {
		other, err := s.Users.GetByTelegramChatID(ctx, *chatID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up chat %d: %w", *chatID, err)
		}
		if other != nil && other.ID != userID {
			return nil, fmt.Errorf("chat %d is linked to another account: %w", *chatID, ErrConflict)
		}
	}

	if err := s.Users.SetTelegramChatID(ctx, userID, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return user, nil
}

// WishlistsForChat returns the wishlists of the account linked to chatID.
// It returns ErrNotFound when no account is linked.
func (s *Service) WishlistsForChat(ctx context.Context, chatID int64) ([]*models.Wishlist, error) {
	user, err := s.Users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (chat_id=%d): %w", chatID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("chat %d: %w", chatID, ErrNotFound)
	}
	return s.ListWishlists(ctx, user.ID)
}
