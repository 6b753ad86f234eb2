package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/wishlistd/pkg/logger"
)

func startRoomServer(t *testing.T, d *Dispatcher, room string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConn(ws, ConnOptions{SendBuffer: 4, WriteTimeout: time.Second, PingInterval: time.Second}, logger.Discard())
		d.Subscribe(room, conn)
		defer d.Unsubscribe(room, conn)
		conn.Serve(context.Background())
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestConnDeliversPublishedEvents(t *testing.T) {
	d, _ := newTestDispatcher(t)
	url := startRoomServer(t, d, "4")
	client := dial(t, url)
	waitFor(t, func() bool { return d.Registry().Subscribers("4") == 1 })

	d.Publish("4", Event{Type: EventItemCreated})
	d.Publish("4", Event{Type: EventItemReserved})

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Event
	require.NoError(t, client.ReadJSON(&first))
	require.NoError(t, client.ReadJSON(&second))
	require.Equal(t, EventItemCreated, first.Type)
	require.Equal(t, EventItemReserved, second.Type)
}

func TestConnIgnoresClientKeepalives(t *testing.T) {
	d, _ := newTestDispatcher(t)
	url := startRoomServer(t, d, "8")
	client := dial(t, url)
	waitFor(t, func() bool { return d.Registry().Subscribers("8") == 1 })

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("ping")))
	d.Publish("8", Event{Type: EventItemUpdated})

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"item_updated"}`, string(raw))
}

func TestConnDisconnectLeavesRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	url := startRoomServer(t, d, "5")
	client := dial(t, url)
	waitFor(t, func() bool { return d.Registry().Subscribers("5") == 1 })

	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = client.Close()

	waitFor(t, func() bool { return d.Registry().Rooms() == 0 })
	require.NotPanics(t, func() { d.Publish("5", Event{Type: EventItemDeleted}) })
}

func TestClosedConnRejectsSend(t *testing.T) {
	var served *Conn
	ready := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		served = NewConn(ws, DefaultConnOptions(), logger.Discard())
		close(ready)
		served.Serve(context.Background())
	}))
	defer srv.Close()

	dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	<-ready

	require.NoError(t, served.Close())
	require.ErrorIs(t, served.Send([]byte(`{}`)), ErrSubscriberClosed)
	require.NoError(t, served.Close())
}
