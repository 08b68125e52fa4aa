package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

// HandlerFunc handles a single request frame. Every handler must send exactly
// one response via client.SendResponse.
type HandlerFunc func(ctx context.Context, client *Client, req *protocol.RequestFrame)

// MethodRouter maps method names to handlers. Adding a method is a matter of
// registering an entry; there is no dispatch hierarchy.
type MethodRouter struct {
	server   *Server
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	tracer   trace.Tracer
}

// NewMethodRouter creates an empty router bound to the server.
func NewMethodRouter(server *Server) *MethodRouter {
	return &MethodRouter{
		server:   server,
		handlers: make(map[string]HandlerFunc),
		tracer:   otel.Tracer("botgate/gateway"),
	}
}

// Register binds a handler to a method name, replacing any previous binding.
func (r *MethodRouter) Register(method string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// Methods returns the sorted list of registered method names.
func (r *MethodRouter) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses an inbound frame and runs the matching handler in its own
// goroutine so a slow operation never blocks other frames on this or any
// other connection. A malformed frame gets a PROTOCOL_ERROR response and the
// connection stays up.
func (r *MethodRouter) Dispatch(ctx context.Context, client *Client, data []byte) {
	var req protocol.RequestFrame
	if err := json.Unmarshal(data, &req); err != nil {
		client.SendResponse(protocol.NewErrorResponse("", protocol.ErrProtocol,
			fmt.Sprintf("malformed frame: %v", err)))
		return
	}
	if req.Method == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrProtocol, "missing method"))
		return
	}
	if req.ID == "" {
		client.SendResponse(protocol.NewErrorResponse("", protocol.ErrProtocol, "missing requestId"))
		return
	}

	switch client.State() {
	case StateClosing:
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrConnectionClosing, "connection is closing"))
		return
	case StateClosed:
		return
	case StateConnecting:
		if req.Method != protocol.MethodConnect {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnauthorized,
				"connect handshake required before other methods"))
			return
		}
	}

	if !client.AllowFrame() {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "rate limit exceeded"))
		return
	}

	r.mu.RLock()
	handler, ok := r.handlers[req.Method]
	r.mu.RUnlock()
	if !ok {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnknownMethod,
			fmt.Sprintf("unknown method: %s", req.Method)))
		return
	}

	go r.invoke(ctx, client, handler, &req)
}

func (r *MethodRouter) invoke(ctx context.Context, client *Client, handler HandlerFunc, req *protocol.RequestFrame) {
	ctx, span := r.tracer.Start(ctx, "gateway.dispatch",
		trace.WithAttributes(
			attribute.String("rpc.method", req.Method),
			attribute.String("rpc.request_id", req.ID),
		))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("gateway.handler_panic", "method", req.Method, "request_id", req.ID, "panic", rec)
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", rec))
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal,
				fmt.Sprintf("internal error in %s", req.Method)))
		}
	}()

	handler(ctx, client, req)
}
