package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/service"
	"github.com/Kerhoff/wishlistd/pkg/logger"
)

type fakeSender struct {
	texts []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.texts = append(f.texts, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

type fakeSource struct {
	lists map[int64][]*models.Wishlist
	err   error
}

func (f *fakeSource) WishlistsForChat(_ context.Context, chatID int64) ([]*models.Wishlist, error) {
	if f.err != nil {
		return nil, f.err
	}
	lists, ok := f.lists[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %d: %w", chatID, service.ErrNotFound)
	}
	return lists, nil
}

func chatMessage(chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, From: &tgbotapi.User{ID: 1}}
}

func TestStartShowsChatID(t *testing.T) {
	bot := &fakeSender{}
	require.NoError(t, NewStartHandler(logger.Discard()).Handle(bot, chatMessage(123456), nil))
	require.Len(t, bot.texts, 1)
	require.Contains(t, bot.texts[0], "123456")
}

func TestWishlistsForLinkedChat(t *testing.T) {
	date := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{lists: map[int64][]*models.Wishlist{
		9: {
			{ID: 1, Title: "Birthday", PublicSlug: "abcd1234", IsPublic: true, EventDate: &date},
			{ID: 2, Title: "Secret", PublicSlug: "zzzz9999"},
		},
	}}

	bot := &fakeSender{}
	require.NoError(t, NewWishlistsHandler(source, logger.Discard()).Handle(bot, chatMessage(9), nil))
	require.Len(t, bot.texts, 1)
	require.Contains(t, bot.texts[0], "Birthday (2026-12-24)")
	require.Contains(t, bot.texts[0], "/wishlists/public/abcd1234")
	require.NotContains(t, bot.texts[0], "zzzz9999")
}

func TestWishlistsForUnlinkedChat(t *testing.T) {
	bot := &fakeSender{}
	handler := NewWishlistsHandler(&fakeSource{}, logger.Discard())
	require.NoError(t, handler.Handle(bot, chatMessage(9), nil))
	require.Contains(t, bot.texts[0], "not linked")
}

func TestWishlistsPropagatesStorageErrors(t *testing.T) {
	bot := &fakeSender{}
	handler := NewWishlistsHandler(&fakeSource{err: fmt.Errorf("connection reset")}, logger.Discard())
	require.Error(t, handler.Handle(bot, chatMessage(9), nil))
	require.Empty(t, bot.texts)
}
