package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlistd/internal/telegram"
)

// StartHandler handles the /start command. It tells the owner which chat id
// to link so that reservation notices arrive here.
type StartHandler struct {
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		logger: logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	text := fmt.Sprintf(`Welcome to Social Wishlist!

I let you know when friends reserve gifts or chip in on your wishlists. You will never see who did it.

Your chat id is %d.
Link it to your account with PUT /auth/me/telegram and the body {"chat_id": %d}.

Use /wishlists to see your lists and /help for everything else.`, message.Chat.ID, message.Chat.ID)

	if _, err := bot.Send(tgbotapi.NewMessage(message.Chat.ID, text)); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithField("chat_id", message.Chat.ID).Info("Sent start message")
	return nil
}
