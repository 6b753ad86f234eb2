package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/service"
	"github.com/Kerhoff/wishlistd/internal/telegram"
)

const lookupTimeout = 10 * time.Second

// WishlistSource resolves the wishlists of the account linked to a chat.
type WishlistSource interface {
	WishlistsForChat(ctx context.Context, chatID int64) ([]*models.Wishlist, error)
}

// ---------------------------------------------------------------------------
// WishlistsHandler – /wishlists
// ---------------------------------------------------------------------------

// WishlistsHandler lists the wishlists owned by the account linked to the
// chat, with their public slugs.
type WishlistsHandler struct {
	source WishlistSource
	logger *logrus.Logger
}

// NewWishlistsHandler creates a new WishlistsHandler.
func NewWishlistsHandler(source WishlistSource, logger *logrus.Logger) *WishlistsHandler {
	return &WishlistsHandler{source: source, logger: logger}
}

// Handle processes the /wishlists command.
func (h *WishlistsHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	lists, err := h.source.WishlistsForChat(ctx, message.Chat.ID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return h.send(bot, message.Chat.ID, "This chat is not linked to an account yet. Send /start to see how to link it.")
	case err != nil:
		return fmt.Errorf("list wishlists: %w", err)
	}

	if len(lists) == 0 {
		return h.send(bot, message.Chat.ID, "You have no wishlists yet.")
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"count":   len(lists),
	}).Info("Listed wishlists")

	return h.send(bot, message.Chat.ID, formatWishlists(lists))
}

func (h *WishlistsHandler) send(bot telegram.Sender, chatID int64, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send wishlists: %w", err)
	}
	return nil
}

func formatWishlists(lists []*models.Wishlist) string {
	var sb strings.Builder
	sb.WriteString("Your wishlists\n")

	for _, list := range lists {
		sb.WriteString(fmt.Sprintf("\n#%d %s", list.ID, list.Title))
		if list.EventDate != nil {
			sb.WriteString(" (" + list.EventDate.Format("2006-01-02") + ")")
		}
		if list.IsPublic {
			sb.WriteString("\n  public: /wishlists/public/" + list.PublicSlug)
		} else {
			sb.WriteString("\n  private")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
