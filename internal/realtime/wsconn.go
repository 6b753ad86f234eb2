package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const maxInboundMessage = 512

// ConnOptions tunes a WebSocket subscriber.
type ConnOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultConnOptions returns the values used when nothing is configured.
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		SendBuffer:   16,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Conn is a Subscriber backed by a WebSocket. Send only queues; a single
// writer goroutine owns all data writes so queue order is wire order.
type Conn struct {
	id       string
	ws       *websocket.Conn
	opts     ConnOptions
	outbound chan []byte
	done     chan struct{}
	closed   *atomic.Bool
	once     sync.Once
	logger   *logrus.Entry
}

// NewConn wraps an upgraded WebSocket.
func NewConn(ws *websocket.Conn, opts ConnOptions, logger *logrus.Logger) *Conn {
	def := DefaultConnOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}

	id := uuid.NewString()
	return &Conn{
		id:       id,
		ws:       ws,
		opts:     opts,
		outbound: make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
		closed:   atomic.NewBool(false),
		logger: logger.WithFields(logrus.Fields{
			"subscriber_id": id,
			"remote_addr":   ws.RemoteAddr().String(),
		}),
	}
}

// ID identifies the connection in logs.
func (c *Conn) ID() string { return c.id }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues payload without blocking.
func (c *Conn) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrSubscriberClosed
	}
	select {
	case <-c.done:
		return ErrSubscriberClosed
	case c.outbound <- payload:
		return nil
	default:
		return ErrSubscriberSlow
	}
}

// Close sends a close frame when possible and tears the connection down.
// It is safe to call more than once and from any goroutine.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

// Serve runs the connection until the peer goes away, a write fails or ctx
// is cancelled. Inbound messages only prove liveness; their content is
// ignored.
func (c *Conn) Serve(ctx context.Context) {
	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	c.readLoop()
	_ = c.Close()
}

func (c *Conn) readLoop() {
	c.ws.SetReadLimit(maxInboundMessage)
	liveness := 2 * c.opts.PingInterval
	extend := func() { _ = c.ws.SetReadDeadline(time.Now().Add(liveness)) }

	extend()
	c.ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.closed.Load() {
				c.logger.WithError(err).Debug("WebSocket read failed")
			}
			return
		}
		extend()
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.WithError(err).Debug("WebSocket write failed")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
