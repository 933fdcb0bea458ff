package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"coderoom/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// frameSlack covers the envelope and file name around a base64 buffer.
	frameSlack = 64 * 1024
)

type Client struct {
	ID   string
	addr string
	conn *websocket.Conn
	send chan []byte

	// closed is guarded by Hub.mu.
	closed bool

	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

type ClientOptions struct {
	SendBuffer int
	RateRPS    float64
	RateBurst  int
}

func newClient(conn *websocket.Conn, addr string, opts ClientOptions, logger *zap.SugaredLogger) *Client {
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}

	var limiter *rate.Limiter
	if opts.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateRPS), opts.RateBurst)
	}

	id := uuid.NewString()
	return &Client{
		ID:      id,
		addr:    addr,
		conn:    conn,
		send:    make(chan []byte, buffer),
		limiter: limiter,
		logger:  logger.With("client_id", id),
	}
}

// readLimit sizes the largest frame a client may send: a base64 encoded file
// at the configured cap plus its envelope.
func readLimit(maxFileSize int64) int64 {
	return maxFileSize/3*4 + 4 + frameSlack
}

func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump processes one frame fully before reading the next, so events from
// a single connection are applied in order.
func (c *Client) readPump(room *Room, maxFrame int64) {
	defer room.OnDisconnect(c)

	c.conn.SetReadLimit(maxFrame)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warnw("Failed to set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warnw("Invalid frame", "remote_addr", c.addr, "error", err)
			continue
		}

		if rateLimited(env.Event) && !c.allow() {
			c.logger.Warnw("Rate limit exceeded, submission dropped", "remote_addr", c.addr, "event", env.Event)
			recordEvent(env.Event, ErrRateLimited)
			continue
		}

		err = room.Dispatch(c, env)
		recordEvent(env.Event, err)
		if err != nil {
			c.logger.Debugw("Event not applied", "event", env.Event, "error", err)
		}
	}
}

func recordEvent(event string, err error) {
	result := "applied"
	switch {
	case errors.Is(err, ErrUnknownEvent):
		event, result = "unknown", "rejected"
	case errors.Is(err, ErrRateLimited):
		result = "limited"
	case err != nil:
		result = "ignored"
	}
	metrics.Events.WithLabelValues(event, result).Inc()
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warnw("Frame exceeded maximum size", "remote_addr", c.addr)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debugw("Client closed connection", "remote_addr", c.addr)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.logger.Debugw("Connection closed", "remote_addr", c.addr)
	default:
		c.logger.Infow("WebSocket read error", "remote_addr", c.addr, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Infow("Write failed", "remote_addr", c.addr, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
