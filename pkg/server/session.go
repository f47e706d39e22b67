package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/querysync-dev/querysync/pkg/location"
	"github.com/querysync-dev/querysync/pkg/middleware"
	"github.com/querysync-dev/querysync/pkg/protocol"
	"github.com/querysync-dev/querysync/pkg/querystate"
	"github.com/querysync-dev/querysync/pkg/reactive"
	"github.com/querysync-dev/querysync/pkg/session"
)

// wsConn is the connection surface a session needs.
// *websocket.Conn satisfies it; tests supply an in-memory fake.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one client's server-side state: its URL, its hook scope, and
// its registered event handlers. All event processing happens on the
// session's goroutine; handlers never race each other.
type Session struct {
	id     string
	server *Server
	conn   wsConn
	logger *slog.Logger

	owner *reactive.Owner
	loc   *location.Location

	handlers map[string]HandlerFunc

	pendingMu sync.Mutex
	pending   []protocol.Patch

	writeMu sync.Mutex
	sendSeq uint64

	closeOnce sync.Once
}

// HandlerFunc handles one client event. The raw value is the event payload
// as sent by the client; handlers unmarshal what they expect.
type HandlerFunc func(ctx *Ctx, value []byte) error

// serveConn performs the hello handshake and runs the session loop.
// Blocks until the connection closes.
func (s *Server) serveConn(ctx context.Context, conn wsConn) error {
	// This goroutine runs every owner scope for the session; drop its
	// tracking context on exit.
	defer reactive.CleanupGoroutineContext()

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}
	hello, err := protocol.DecodeFrame(data)
	if err != nil || hello.Type != protocol.FrameHello {
		conn.Close()
		return fmt.Errorf("expected hello frame")
	}

	sess, resumed, err := s.attachSession(ctx, conn, hello)
	if err != nil {
		conn.Close()
		return err
	}

	if s.metrics != nil {
		if resumed {
			s.metrics.SessionResumed()
		} else {
			s.metrics.SessionStarted()
		}
	}

	s.addSession(sess)
	defer s.removeSession(sess)

	return sess.run(ctx)
}

// attachSession builds a new session or resumes a detached one.
// On resume, the stored URL wins over the client's: the hello ack tells the
// client where it actually is.
func (s *Server) attachSession(ctx context.Context, conn wsConn, hello *protocol.Frame) (*Session, bool, error) {
	path, rawQuery := hello.Path, hello.Query
	if path == "" {
		path = "/"
	}

	id := hello.Session
	resumed := false
	if id != "" {
		data, err := s.store.Load(ctx, id)
		if err != nil {
			s.logger.Warn("session load failed", "session", id, "error", err)
		}
		if data != nil {
			snap, err := session.UnmarshalSnapshot(data)
			if err != nil {
				s.logger.Warn("session snapshot corrupt", "session", id, "error", err)
			} else {
				path, rawQuery = snap.Path, snap.RawQuery
				resumed = true
			}
		}
	}
	if resumed {
		// The snapshot is single-use: the live session owns the URL now, and
		// a leftover snapshot would count as an expiring detached session.
		if derr := s.store.Delete(ctx, id); derr != nil {
			s.logger.Warn("consumed snapshot delete failed", "session", id, "error", derr)
		}
	} else {
		var err error
		id, err = newSessionID()
		if err != nil {
			return nil, false, err
		}
	}

	sess := &Session{
		id:       id,
		server:   s,
		conn:     conn,
		logger:   s.logger.With("session", id),
		owner:    reactive.NewOwner(nil),
		handlers: make(map[string]HandlerFunc),
	}

	loc, err := location.New(path, rawQuery, sess.queuePatch)
	if err != nil {
		return nil, false, fmt.Errorf("parse hello url: %w", err)
	}
	sess.loc = loc

	// Run setup inside the hook scope so bindings hydrate from the URL and
	// keep stable identity.
	if s.setup != nil {
		reactive.WithOwner(sess.owner, func() {
			sess.owner.StartRender()
			reactive.SetContext(querystate.NavigatorKey, loc)
			s.setup(&Ctx{session: sess, ctx: ctx})
			sess.owner.EndRender()
		})
	}

	// Ack with the authoritative session ID and URL, then drop any patches
	// setup queued: the ack already carries the full URL.
	ack := protocol.NewHelloFrame(id, loc.Path(), loc.Query().Encode())
	if err := sess.writeFrame(ack); err != nil {
		sess.owner.Dispose()
		return nil, false, err
	}
	sess.takePending()

	return sess, resumed, nil
}

// ID returns the session identifier.
func (sess *Session) ID() string {
	return sess.id
}

// Location returns the session's URL state.
func (sess *Session) Location() *location.Location {
	return sess.loc
}

// run is the session loop: read a frame, process it, flush patches.
// Single-threaded by construction.
func (sess *Session) run(ctx context.Context) error {
	defer sess.detach(ctx)

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			sess.writeError("E140", "malformed frame")
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			sess.processEvent(ctx, frame)
		case protocol.FrameNavigate:
			sess.processNavigate(frame)
		default:
			sess.writeError("E141", "unexpected frame type "+string(frame.Type))
		}
	}
}

// processEvent dispatches to the registered handler through the middleware
// chain, then flushes whatever patches the tick produced.
func (sess *Session) processEvent(ctx context.Context, frame *protocol.Frame) {
	ev := &middleware.Event{
		SessionID: sess.id,
		Path:      sess.loc.Path(),
		Handler:   frame.Handler,
	}

	chain := middleware.Chain(sess.server.chain...)
	err := chain(ctx, ev, func(c context.Context) error {
		handler, ok := sess.handlers[frame.Handler]
		if !ok {
			return fmt.Errorf("unknown handler: %s", frame.Handler)
		}

		var herr error
		reactive.WithOwner(sess.owner, func() {
			herr = handler(&Ctx{session: sess, ctx: c}, frame.Value)
		})
		if herr != nil {
			return herr
		}

		ev.PatchCount = sess.pendingCount()
		return nil
	})
	if err != nil {
		sess.logger.Warn("event failed", "handler", frame.Handler, "error", err)
		sess.writeError("E141", err.Error())
	}

	sess.flush()
}

// processNavigate adopts a client-originated URL change. Bindings
// re-decode via their location subscription; nothing is echoed back.
func (sess *Session) processNavigate(frame *protocol.Frame) {
	if err := sess.loc.SetURL(frame.Path, frame.Query); err != nil {
		sess.writeError("E140", "malformed navigate url")
		return
	}
	// A handler-free tick still flushes: navigation may cascade patches
	// (a binding clamping an out-of-range value, for example).
	sess.flush()
}

func (sess *Session) queuePatch(p protocol.Patch) {
	sess.pendingMu.Lock()
	sess.pending = append(sess.pending, p)
	sess.pendingMu.Unlock()
}

func (sess *Session) pendingCount() int {
	sess.pendingMu.Lock()
	defer sess.pendingMu.Unlock()
	return len(sess.pending)
}

func (sess *Session) takePending() []protocol.Patch {
	sess.pendingMu.Lock()
	defer sess.pendingMu.Unlock()
	pending := sess.pending
	sess.pending = nil
	return pending
}

// flush sends all pending patches as one frame.
func (sess *Session) flush() {
	pending := sess.takePending()
	if len(pending) == 0 {
		return
	}

	sess.writeMu.Lock()
	sess.sendSeq++
	frame := protocol.NewPatchesFrame(sess.sendSeq, pending)
	sess.writeMu.Unlock()

	if err := sess.writeFrame(frame); err != nil {
		sess.logger.Warn("patch write failed", "error", err)
	}
}

func (sess *Session) writeError(code, message string) {
	sess.writeMu.Lock()
	sess.sendSeq++
	frame := protocol.NewErrorFrame(sess.sendSeq, code, message)
	sess.writeMu.Unlock()

	if err := sess.writeFrame(frame); err != nil {
		sess.logger.Warn("error write failed", "error", err)
	}
}

func (sess *Session) writeFrame(frame *protocol.Frame) error {
	data, err := protocol.EncodeFrame(frame)
	if err != nil {
		return err
	}
	return sess.conn.WriteMessage(websocket.TextMessage, data)
}

// snapshot captures the session's URL for persistence.
func (sess *Session) snapshot() session.Snapshot {
	return session.Snapshot{
		ID:       sess.id,
		Path:     sess.loc.Path(),
		RawQuery: sess.loc.Query().Encode(),
		SavedAt:  time.Now(),
	}
}

// detach persists the snapshot so the client can resume, then releases the
// session's scope.
func (sess *Session) detach(ctx context.Context) {
	data, err := sess.snapshot().Marshal()
	if err == nil {
		expires := time.Now().Add(sess.server.config.ResumeWindow)
		if serr := sess.server.store.Save(ctx, sess.id, data, expires); serr != nil {
			sess.logger.Warn("session persist failed", "error", serr)
		}
	}

	if sess.server.metrics != nil {
		sess.server.metrics.SessionDetached()
	}
	sess.close()
}

func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		sess.owner.Dispose()
		sess.conn.Close()
	})
}
