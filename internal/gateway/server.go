// Package gateway exposes the agent host over a WebSocket RPC protocol:
// request/response frames for control (run.start, run.stop, browser.tabs)
// and pushed event frames for run lifecycle notifications.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/webpilot/internal/agent"
	"github.com/nextlevelbuilder/webpilot/internal/bus"
	"github.com/nextlevelbuilder/webpilot/pkg/protocol"
)

// Config holds the gateway's own settings, wired from the application config.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8420".
	Addr string
	// Token authenticates clients during the connect handshake. Empty means
	// no authentication (local development).
	Token string
	// RPM is the per-client request rate limit in requests per minute.
	// Zero disables rate limiting.
	RPM int
	// Burst is the rate limiter burst size.
	Burst int
}

// Server accepts WebSocket connections and routes RPC frames.
type Server struct {
	cfg    Config
	agents *agent.Router
	events *bus.Bus

	router      *MethodRouter
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	httpSrv     *http.Server

	mu      sync.RWMutex
	clients map[string]*Client

	seq atomic.Int64
}

// NewServer creates a gateway server. Register method groups on Router()
// before calling Start.
func NewServer(cfg Config, agents *agent.Router, events *bus.Bus) *Server {
	s := &Server{
		cfg:     cfg,
		agents:  agents,
		events:  events,
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway binds to loopback by default; remote origins are
			// a deployment decision, not a browser same-origin concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.rateLimiter = NewRateLimiter(cfg.RPM, cfg.Burst)
	s.router = NewMethodRouter(s)
	return s
}

// Router returns the method router so hosts can register method groups.
func (s *Server) Router() *MethodRouter { return s.router }

// RateLimiter returns the per-client rate limiter.
func (s *Server) RateLimiter() *RateLimiter { return s.rateLimiter }

// Start begins serving and blocks until the listener fails or ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.events != nil {
		s.events.Subscribe("gateway", s.onRunEvent)
		defer s.events.Unsubscribe("gateway")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS(ctx))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("gateway listen: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown notifies clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Broadcast(protocol.NewEvent(protocol.EventShutdown, map[string]any{
		"reason": "server shutting down",
	}))

	s.mu.Lock()
	for id, c := range s.clients {
		c.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, s)
		s.addClient(client)
		slog.Info("client connected", "client", client.id, "remote", r.RemoteAddr)

		client.Run(ctx)

		s.removeClient(client.id)
		slog.Info("client disconnected", "client", client.id)
	}
}

func (s *Server) addClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast pushes an event frame to every authenticated client.
func (s *Server) Broadcast(event *protocol.EventFrame) {
	event.Seq = s.seq.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.authenticated {
			c.SendEvent(*event)
		}
	}
}

// onRunEvent forwards run lifecycle events from the internal bus to
// connected clients.
func (s *Server) onRunEvent(ev bus.Event) {
	s.Broadcast(protocol.NewEvent(protocol.EventRun, ev))
}
