// Package server hosts querysync sessions over WebSocket.
//
// Each connected client gets one Session running on its own goroutine. The
// session owns the client's server-side URL (a location.Location) and the
// hook scope its bindings live in; events arrive as frames, dispatch to
// handlers registered during setup, and any URL patches the handlers caused
// flush back to the client at the end of the tick. When the socket drops,
// the session snapshots its URL to a store so a reconnecting client resumes
// where it left off.
package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querysync-dev/querysync/pkg/middleware"
	"github.com/querysync-dev/querysync/pkg/reactive"
	"github.com/querysync-dev/querysync/pkg/session"
)

// SetupFunc runs once per session, inside the session's hook scope.
// It creates the session's query-bound state and registers event handlers
// on the Ctx.
type SetupFunc func(ctx *Ctx)

// Server is the querysync HTTP/WebSocket server.
type Server struct {
	config *Config

	router   chi.Router
	upgrader websocket.Upgrader

	store   session.Store
	metrics *middleware.Metrics
	chain   []middleware.Middleware

	setup SetupFunc

	sessionsMu sync.Mutex
	sessions   map[string]*Session

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server. Setup must be set before Run.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	config.fillDefaults()

	reactive.DebugMode = config.DebugMode

	logger := slog.Default().With("component", "server")

	s := &Server{
		config:   config,
		store:    config.Store,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", s.handleWebSocket)
	s.router = r

	return s
}

// Setup sets the per-session setup function.
func (s *Server) Setup(fn SetupFunc) {
	s.setup = fn
}

// Use appends event middleware. Middlewares run outermost-first in the
// order added, around every dispatched event.
func (s *Server) Use(mws ...middleware.Middleware) {
	s.chain = append(s.chain, mws...)
}

// Metrics attaches a metrics handle. Its middleware is added to the event
// chain and session lifecycle transitions are recorded against it. Stores
// that report eviction (MemoryStore) also drive the detached-session gauge
// down when an unresumed snapshot expires.
func (s *Server) Metrics(m *middleware.Metrics) {
	s.metrics = m
	s.Use(m.Middleware())

	if n, ok := s.store.(interface{ OnEvict(func(string)) }); ok {
		n.OnEvict(func(string) { m.SessionExpired() })
	}
}

// Router exposes the chi router so applications can mount additional routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully, persisting every live session.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Address)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections, snapshots all live sessions to the
// store, and closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	s.sessionsMu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.sessionsMu.Unlock()

	snapshots := make(map[string]session.Stored, len(live))
	for _, sess := range live {
		data, err := sess.snapshot().Marshal()
		if err != nil {
			s.logger.Error("snapshot failed", "session", sess.ID(), "error", err)
			continue
		}
		snapshots[sess.ID()] = session.Stored{
			Data:      data,
			ExpiresAt: time.Now().Add(s.config.ResumeWindow),
		}
	}
	if len(snapshots) > 0 {
		if err := s.store.SaveAll(ctx, snapshots); err != nil {
			s.logger.Error("persisting sessions failed", "error", err)
		}
	}

	for _, sess := range live {
		sess.close()
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if err := s.serveConn(r.Context(), conn); err != nil {
		s.logger.Debug("session ended", "error", err)
	}
}

func (s *Server) addSession(sess *Session) {
	s.sessionsMu.Lock()
	s.sessions[sess.ID()] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) removeSession(sess *Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.ID())
	s.sessionsMu.Unlock()
}

// newSessionID generates a 128-bit URL-safe session identifier.
func newSessionID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
