// Package client is a Go client for the botgate WebSocket control plane.
// It correlates requests with responses by requestId and surfaces broadcast
// events on a channel.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

const eventBuffer = 64

// Options configures Dial.
type Options struct {
	Token      string // gateway auth token, if the server requires one
	ClientName string // reported during the connect handshake
}

// Client is a single gateway connection. Safe for concurrent Call use.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.ResponseFrame

	events chan protocol.EventFrame

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

// Dial connects to addr (host:port), performs the connect handshake, and
// starts the read loop.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	wsURL := fmt.Sprintf("ws://%s/ws", addr)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *protocol.ResponseFrame),
		events:  make(chan protocol.EventFrame, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	connectParams := map[string]interface{}{
		"minProtocol": protocol.ProtocolVersion,
		"clientName":  opts.ClientName,
	}
	if opts.Token != "" {
		connectParams["token"] = opts.Token
	}
	if _, err := c.Call(ctx, protocol.MethodConnect, connectParams); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect handshake: %w", err)
	}

	return c, nil
}

// Call sends a request and blocks until the correlated response, ctx
// cancellation, or connection loss. A response with success=false is
// returned as an error carrying the server's error code.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := uuid.NewString()[:8]

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		rawParams = data
	}

	ch := make(chan *protocol.ResponseFrame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := protocol.RequestFrame{
		Type:   protocol.FrameRequest,
		ID:     id,
		Method: method,
		Params: rawParams,
	}
	if err := c.write(ctx, &req); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if !resp.Success {
			if resp.Error != nil {
				return nil, resp.Error
			}
			return nil, fmt.Errorf("%s failed", method)
		}
		result, err := json.Marshal(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		return result, nil
	case <-c.done:
		if c.readErr != nil {
			return nil, fmt.Errorf("connection lost: %w", c.readErr)
		}
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallInto is Call plus unmarshal of the result into out.
func (c *Client) CallInto(ctx context.Context, method string, params, out interface{}) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(result, out)
}

// Events returns the broadcast event stream. Events arriving while the
// buffer is full are dropped.
func (c *Client) Events() <-chan protocol.EventFrame { return c.events }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close shuts the connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.conn.Close(websocket.StatusNormalClosure, "bye")
	})
}

func (c *Client) write(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) readLoop() {
	defer close(c.done)

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.readErr = err
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			continue
		}

		switch head.Type {
		case protocol.FrameResponse:
			var resp protocol.ResponseFrame
			if err := json.Unmarshal(data, &resp); err != nil {
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[resp.ID]
			c.pendingMu.Unlock()
			if ok {
				ch <- &resp
			}
		case "":
			// neither a response nor a named event
		default:
			// type carries the event name for broadcast frames
			var ev protocol.EventFrame
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			select {
			case c.events <- ev:
			default: // slow consumer, drop
			}
		}
	}
}

// WaitEvent blocks until an event with the given name arrives or the timeout
// elapses. Convenience for tests and scripts.
func (c *Client) WaitEvent(name string, timeout time.Duration) (*protocol.EventFrame, error) {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-c.events:
			if ev.Type == name {
				return &ev, nil
			}
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for event %s", name)
		case <-c.done:
			return nil, fmt.Errorf("connection closed")
		}
	}
}
