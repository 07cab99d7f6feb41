/*
Package ws adapts a gorilla WebSocket connection to the broadcast subscriber contract.

A Client owns two goroutines: ReadPump feeds inbound frames to a Handler, and WritePump drains the
outbound queue and keeps the heartbeat. Deliver never blocks; a client whose queue is full is closed,
and its ReadPump then runs the handler's disconnect path.
*/
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vttcore/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// DefaultSendBuffer is the outbound queue length used when Config leaves it unset.
	DefaultSendBuffer = 256

	// DefaultMaxFrameBytes bounds inbound frames when Config leaves it unset. Map uploads may
	// carry inline image data, so the limit is generous.
	DefaultMaxFrameBytes int64 = 50 << 20
)

// Handler consumes the inbound side of a connection.
type Handler interface {
	Handle(raw []byte) error
	Disconnect()
}

// Config tunes a Client. Zero values select defaults.
type Config struct {
	SendBuffer    int
	MaxFrameBytes int64
}

// Client is one live WebSocket connection.
type Client struct {
	id   string
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// done is closed exactly once when the client starts shutting down.
	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string

	maxFrameBytes int64

	logger zerolog.Logger
}

// NewClient wraps conn under the connection id id.
func NewClient(id string, conn *websocket.Conn, cfg Config) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}

	return &Client{
		id:            id,
		conn:          conn,
		send:          make(chan []byte, cfg.SendBuffer),
		done:          make(chan struct{}),
		maxFrameBytes: cfg.MaxFrameBytes,
		logger:        logx.Component("WSClient").With().Str("conn_id", id).Logger(),
	}
}

// ID implements broadcast.Subscriber.
func (c *Client) ID() string {
	return c.id
}

// Deliver implements broadcast.Subscriber. A full queue closes the connection.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, closing slow connection.")
		c.closeWith(websocket.ClosePolicyViolation, "send queue overflow")
		return false
	}
}

// Close implements broadcast.Subscriber. It is safe to call more than once and from any goroutine.
func (c *Client) Close() {
	c.closeWith(websocket.CloseGoingAway, "server closing connection")
}

// Done is closed once the client starts shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = reason
		close(c.done)
	})
}

// ReadPump reads frames until the connection fails, handing each to h. It calls h.Disconnect
// before returning.
func (c *Client) ReadPump(h Handler) {
	defer func() {
		h.Disconnect()
		c.Close()
		c.logger.Debug().Msg("Read pump stopped.")
	}()

	c.conn.SetReadLimit(c.maxFrameBytes)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		if err := h.Handle(frame); err != nil {
			c.logger.Debug().Err(err).Msg("Inbound event not applied.")
		}
	}
}

// WritePump writes queued frames and heartbeats until the client is closed or a write fails.
// It closes the underlying connection on exit.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(frame) {
				c.Close()
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				c.Close()
				return
			}

		case <-c.done:
			c.writeClose()
			return
		}
	}
}

func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePing sends a periodic WebSocket Ping message to maintain the connection heartbeat.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

func (c *Client) writeClose() {
	msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send close frame.")
	}
}
