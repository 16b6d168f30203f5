package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tailcast/internal/hub"
	"tailcast/internal/logging"
)

var (
	// ErrSendBufferFull is returned by a subscriber whose outbound queue is
	// full; only that delivery is lost.
	ErrSendBufferFull = errors.New("subscriber send buffer full")
	errSubscriberGone = errors.New("subscriber closed")
)

// Clients only send control frames; anything larger is a protocol misuse.
const maxInboundMessage = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsSubscriber adapts one WebSocket connection to hub.Subscriber.
type wsSubscriber struct {
	id           string
	conn         *websocket.Conn
	send         chan hub.Message
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *slog.Logger
}

func newWSSubscriber(conn *websocket.Conn, opts Options, logger *slog.Logger) *wsSubscriber {
	id := uuid.NewString()
	return &wsSubscriber{
		id:           id,
		conn:         conn,
		send:         make(chan hub.Message, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		logger:       logger.With(logging.String(logging.FieldConnection, id)),
	}
}

func (c *wsSubscriber) ID() string { return c.id }

// Send queues msg without blocking.
func (c *wsSubscriber) Send(msg hub.Message) error {
	select {
	case <-c.done:
		return errSubscriberGone
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the writer, which sends a close frame and releases the
// connection.
func (c *wsSubscriber) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *wsSubscriber) writeLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(c.writeTimeout),
			)
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", logging.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				c.logger.Debug("websocket ping failed", logging.Error(err))
				c.Close()
				return
			}
		}
	}
}

// readLoop consumes inbound frames until the peer goes away. Pongs extend the
// read deadline; a missing pong ends the connection.
func (c *wsSubscriber) readLoop() {
	pongWait := 2 * c.pingInterval
	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read ended", logging.Error(err))
			}
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	sub := newWSSubscriber(conn, s.opts, s.logger)
	go sub.writeLoop()

	if err := s.backend.Register(sub); err != nil {
		sub.logger.Warn("subscriber rejected", logging.Error(err))
		sub.Close()
		return
	}
	sub.logger.Info("subscriber connected", logging.String("remote", r.RemoteAddr))

	sub.readLoop()

	s.backend.Unregister(sub)
	sub.Close()
	sub.logger.Info("subscriber disconnected")
}
