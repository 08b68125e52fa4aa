package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// ClientState is the per-connection lifecycle state. Request frames are only
// accepted in StateOpen.
type ClientState int32

const (
	StateConnecting ClientState = iota // accepted, awaiting connect handshake
	StateOpen                          // handshake done, requests accepted
	StateClosing                       // close notification sent, draining
	StateClosed                        // transport gone
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

const writeTimeout = 10 * time.Second

// Client is a single WebSocket connection to the gateway.
type Client struct {
	id          string
	conn        *websocket.Conn
	server      *Server
	state       atomic.Int32
	writeMu     sync.Mutex
	limiter     *rate.Limiter
	connectedAt time.Time
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	c := &Client{
		id:          uuid.NewString(),
		conn:        conn,
		server:      server,
		connectedAt: time.Now(),
	}

	gw := server.cfg.GatewaySnapshot()
	if gw.MaxFrameBytes > 0 {
		conn.SetReadLimit(gw.MaxFrameBytes)
	}
	if gw.RateLimitRPS > 0 {
		burst := gw.RateLimitBurst
		if burst <= 0 {
			burst = int(gw.RateLimitRPS)
		}
		c.limiter = rate.NewLimiter(rate.Limit(gw.RateLimitRPS), burst)
	}

	return c
}

// ID returns the connection's opaque identity.
func (c *Client) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Client) State() ClientState { return ClientState(c.state.Load()) }

// SetOpen transitions Connecting → Open after a successful handshake.
func (c *Client) SetOpen() {
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// AllowFrame applies the per-connection inbound rate limit.
func (c *Client) AllowFrame() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// Run reads frames until the connection drops or ctx is done.
func (c *Client) Run(ctx context.Context) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("gateway.read_error", "client", c.id, "error", err)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		c.server.router.Dispatch(ctx, c, data)
	}
}

// SendResponse delivers a correlated response frame. Responses are still
// written in Closing state so in-flight requests can finish; once Closed
// they are discarded.
func (c *Client) SendResponse(resp *protocol.ResponseFrame) error {
	if c.State() == StateClosed {
		return fmt.Errorf("client %s closed", c.id)
	}
	return c.writeJSON(resp)
}

// SendEvent delivers a broadcast event frame. Events are only written to
// open connections.
func (c *Client) SendEvent(event protocol.EventFrame) error {
	if c.State() != StateOpen {
		return nil
	}
	return c.writeJSON(&event)
}

// CloseWithReason sends a close notification carrying reason, then tears the
// connection down.
func (c *Client) CloseWithReason(reason string) {
	if !c.transition(StateClosing) {
		return
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, reason))
	c.writeMu.Unlock()

	c.Close()
}

// Close tears down the transport. Idempotent.
func (c *Client) Close() {
	prev := ClientState(c.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return
	}
	c.conn.Close()
}

// transition moves to next unless already at or past it.
func (c *Client) transition(next ClientState) bool {
	for {
		cur := c.state.Load()
		if cur >= int32(next) {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}
