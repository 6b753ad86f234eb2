package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID int64
	text   string
}

func startNotifier(t *testing.T, f *fixture) <-chan sentMessage {
	t.Helper()
	sent := make(chan sentMessage, 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go f.svc.StartOwnerNotifier(ctx, func(chatID int64, text string) {
		sent <- sentMessage{chatID: chatID, text: text}
	})
	require.Eventually(t, f.svc.noticesActive.Load, time.Second, 5*time.Millisecond)
	return sent
}

func TestOwnerIsNotifiedOfReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := int64(31337)
	_, err := f.svc.LinkTelegram(ctx, f.owner.ID, &chat)
	require.NoError(t, err)
	item := f.addItem(t, ItemInput{Title: "Drone"})

	sent := startNotifier(t, f)

	_, err = f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Alice"})
	require.NoError(t, err)

	select {
	case msg := <-sent:
		require.Equal(t, chat, msg.chatID)
		require.Contains(t, msg.text, "Birthday")
		require.NotContains(t, msg.text, "Alice")
	case <-time.After(2 * time.Second):
		t.Fatal("owner was not notified")
	}
}

func TestUnlinkedOwnerIsNotNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Drone"})

	sent := startNotifier(t, f)

	_, err := f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Alice"})
	require.NoError(t, err)

	select {
	case msg := <-sent:
		t.Fatalf("unexpected notification to chat %d", msg.chatID)
	case <-time.After(100 * time.Millisecond):
	}
}
