package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/config"
	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

const healthInterval = 30 * time.Second

// Server is the control-plane gateway handling WebSocket client connections.
type Server struct {
	cfg      *config.Config
	eventPub bus.EventPublisher
	router   *MethodRouter

	upgrader websocket.Upgrader
	clients  map[string]*Client
	mu       sync.RWMutex

	seq      atomic.Uint64 // global broadcast sequence
	bcastMu  sync.Mutex    // serializes seq assignment + fan-out
	running  atomic.Bool

	startedAt time.Time

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config, eventPub bus.EventPublisher) *Server {
	s := &Server{
		cfg:      cfg,
		eventPub: eventPub,
		clients:  make(map[string]*Client),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// The bus carries events raised by subsystems (dm security, channels);
	// forward them to all connected clients under the shared sequence.
	eventPub.Subscribe("gateway", func(event bus.Event) {
		s.EmitToClients(event.Name, event.Payload)
	})

	s.router = NewMethodRouter(s)
	return s
}

// Router returns the method router for registering handlers.
func (s *Server) Router() *MethodRouter { return s.router }

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.cfg }

// checkOrigin validates the WebSocket Origin header against the allowed
// origins whitelist. No configured origins means allow all. An empty Origin
// header (non-browser clients like the CLI) is always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.GatewaySnapshot().AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("security.origin_rejected", "origin", origin)
	return false
}

// Start binds the listener and begins accepting connections. Calling Start
// while already running fails with ALREADY_RUNNING. Blocks until ctx is done
// or the server fails.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return &protocol.ErrorPayload{Code: protocol.ErrAlreadyRunning, Message: "gateway already running"}
	}
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	gw := s.cfg.GatewaySnapshot()
	addr := fmt.Sprintf("%s:%d", gw.Host, gw.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("gateway listen %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: mux}

	slog.Info("gateway.starting", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop("shutdown")
	}()
	go s.healthLoop(ctx)

	if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// Stop gracefully closes all client connections with a close notification
// carrying reason, then releases the listener. Safe to call at any time,
// including before a successful Start or with zero clients.
func (s *Server) Stop(reason string) {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	slog.Info("gateway.stopping", "reason", reason, "clients", s.ClientCount())

	s.BroadcastEvent(protocol.NewEvent(protocol.EventShutdown, map[string]interface{}{
		"reason": reason,
	}))

	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.CloseWithReason(reason)
	}

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.httpServer.Shutdown(shutdownCtx)
		cancel()
	}
}

// handleWebSocket upgrades HTTP to WebSocket and manages the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("gateway.upgrade_failed", "error", err)
		return
	}

	client := NewClient(conn, s)
	s.registerClient(client)

	defer func() {
		s.unregisterClient(client)
		client.Close()
	}()

	client.Run(r.Context())
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","protocol":%d}`, protocol.ProtocolVersion)
}

// BroadcastEvent assigns the next global sequence number and fans the event
// out to every connected client. A slow or dead client never blocks delivery
// to the others.
func (s *Server) BroadcastEvent(event *protocol.EventFrame) {
	s.bcastMu.Lock()
	defer s.bcastMu.Unlock()
	event.Seq = s.seq.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, client := range s.clients {
		if err := client.SendEvent(*event); err != nil {
			slog.Debug("gateway.event_send_failed", "client", client.ID(), "event", event.Type, "error", err)
		}
	}
}

// EmitToClients constructs and broadcasts a gateway event.
func (s *Server) EmitToClients(eventType string, payload interface{}) {
	s.BroadcastEvent(protocol.NewEvent(eventType, payload))
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Uptime returns time since a successful Start, zero when not running.
func (s *Server) Uptime() time.Duration {
	if !s.running.Load() {
		return 0
	}
	return time.Since(s.startedAt)
}

// IsRunning reports whether Start has succeeded and Stop has not been called.
func (s *Server) IsRunning() bool { return s.running.Load() }

// healthLoop broadcasts a periodic health event until ctx is done.
func (s *Server) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EmitToClients(protocol.EventHealth, map[string]interface{}{
				"uptimeMs": s.Uptime().Milliseconds(),
				"clients":  s.ClientCount(),
			})
		}
	}
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	s.clients[c.ID()] = c
	count := len(s.clients)
	s.mu.Unlock()

	slog.Info("gateway.client_connected", "id", c.ID(), "count", count)
	s.EmitToClients(protocol.EventPresence, map[string]interface{}{
		"clientId": c.ID(),
		"online":   true,
		"clients":  count,
	})
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.ID())
	count := len(s.clients)
	s.mu.Unlock()

	slog.Info("gateway.client_disconnected", "id", c.ID(), "count", count)
	s.EmitToClients(protocol.EventPresence, map[string]interface{}{
		"clientId": c.ID(),
		"online":   false,
		"clients":  count,
	})
}

// StartTestServer creates a listener on 127.0.0.1:0 and returns the actual
// address and a start function. Used for integration tests.
func StartTestServer(ctx context.Context, s *Server) (addr string, start func()) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("listen: " + err.Error())
	}

	s.running.Store(true)
	s.startedAt = time.Now()
	s.listener = ln
	s.httpServer = &http.Server{Handler: mux}
	addr = ln.Addr().String()

	start = func() {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		}()
		s.httpServer.Serve(ln)
	}

	return addr, start
}
