package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/querysync-dev/querysync/pkg/protocol"
	"github.com/querysync-dev/querysync/pkg/querystate"
	"github.com/querysync-dev/querysync/pkg/session"
)

// fakeConn is an in-memory wsConn driven from the test goroutine.
type fakeConn struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, frame *protocol.Frame) {
	t.Helper()
	data, err := protocol.EncodeFrame(frame)
	require.NoError(t, err)
	c.in <- data
}

func (c *fakeConn) recv(t *testing.T) *protocol.Frame {
	t.Helper()
	select {
	case data := <-c.out:
		frame, err := protocol.DecodeFrame(data)
		require.NoError(t, err)
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// searchApp is the canonical test app: a search box and a page size bound
// to the URL.
func searchApp() SetupFunc {
	return func(ctx *Ctx) {
		search := querystate.Use("q", "")
		limit := querystate.Use("limit", 25)

		ctx.Handle("setQuery", func(ctx *Ctx, value []byte) error {
			var v string
			if err := json.Unmarshal(value, &v); err != nil {
				return err
			}
			search.Set(v)
			return nil
		})
		ctx.Handle("setLimit", func(ctx *Ctx, value []byte) error {
			var v int
			if err := json.Unmarshal(value, &v); err != nil {
				return err
			}
			limit.Set(v)
			return nil
		})
		ctx.Handle("report", func(ctx *Ctx, value []byte) error {
			detail, _ := json.Marshal(map[string]any{"q": search.Peek(), "limit": limit.Peek()})
			ctx.Dispatch("report", string(detail))
			return nil
		})
	}
}

type harness struct {
	server *Server
	conn   *fakeConn
	done   chan error
}

func startSession(t *testing.T, srv *Server, hello *protocol.Frame) *harness {
	t.Helper()

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() {
		done <- srv.serveConn(context.Background(), conn)
	}()
	conn.send(t, hello)

	return &harness{server: srv, conn: conn, done: done}
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.conn.Close()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session loop did not exit")
	}
}

func newTestServer(store session.Store) *Server {
	srv := New(&Config{Store: store, ResumeWindow: time.Minute})
	srv.Setup(searchApp())
	return srv
}

func eventFrame(handler string, value any) *protocol.Frame {
	raw, _ := json.Marshal(value)
	return &protocol.Frame{Type: protocol.FrameEvent, Handler: handler, Value: raw}
}

func TestHandshakeAssignsSessionAndHydrates(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/runs", "q=initial"))
	defer h.stop(t)

	ack := h.conn.recv(t)
	require.Equal(t, protocol.FrameHello, ack.Type)
	require.NotEmpty(t, ack.Session)
	require.Equal(t, "/runs", ack.Path)
	require.Equal(t, "q=initial", ack.Query)

	// Bindings hydrated from the hello URL.
	h.conn.send(t, eventFrame("report", nil))
	frame := h.conn.recv(t)
	require.Equal(t, protocol.FramePatches, frame.Type)
	require.Len(t, frame.Patches, 1)
	require.Equal(t, protocol.PatchDispatch, frame.Patches[0].Op)
	require.JSONEq(t, `{"q":"initial","limit":25}`, frame.Patches[0].Detail)
}

func TestEventProducesURLPatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/runs", "cursor=c"))
	defer h.stop(t)
	h.conn.recv(t) // hello ack

	h.conn.send(t, eventFrame("setQuery", "Typed"))

	frame := h.conn.recv(t)
	require.Equal(t, protocol.FramePatches, frame.Type)
	require.Len(t, frame.Patches, 1)
	p := frame.Patches[0]
	require.Equal(t, protocol.PatchURLReplace, p.Op)
	require.Equal(t, "/runs", p.Path)
	require.Equal(t, "cursor=c&q=Typed", p.Query)
}

func TestInterleavedEventsMerge(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/", ""))
	defer h.stop(t)
	h.conn.recv(t)

	h.conn.send(t, eventFrame("setQuery", "pods"))
	require.Equal(t, "q=pods", h.conn.recv(t).Patches[0].Query)

	h.conn.send(t, eventFrame("setLimit", 100))
	require.Equal(t, "limit=100&q=pods", h.conn.recv(t).Patches[0].Query)
}

func TestSettingDefaultRemovesKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/", "limit=100"))
	defer h.stop(t)
	h.conn.recv(t)

	h.conn.send(t, eventFrame("setLimit", 25))

	require.Equal(t, "", h.conn.recv(t).Patches[0].Query)
}

func TestUnknownHandlerError(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/", ""))
	defer h.stop(t)
	h.conn.recv(t)

	h.conn.send(t, eventFrame("nope", nil))

	frame := h.conn.recv(t)
	require.Equal(t, protocol.FrameError, frame.Type)
	require.Contains(t, frame.Message, "unknown handler")
}

func TestMalformedFrameError(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/", ""))
	defer h.stop(t)
	h.conn.recv(t)

	h.conn.in <- []byte("not json")

	frame := h.conn.recv(t)
	require.Equal(t, protocol.FrameError, frame.Type)
	require.Equal(t, "E140", frame.Code)
}

func TestClientNavigationRefreshesBindings(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/", "q=old"))
	defer h.stop(t)
	h.conn.recv(t)

	// Back button on the client.
	h.conn.send(t, &protocol.Frame{Type: protocol.FrameNavigate, Path: "/", Query: "q=back&limit=50"})

	h.conn.send(t, eventFrame("report", nil))
	frame := h.conn.recv(t)
	require.JSONEq(t, `{"q":"back","limit":50}`, frame.Patches[0].Detail)
}

func TestDetachPersistsAndResumeRestores(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/runs", ""))
	ack := h.conn.recv(t)
	sessionID := ack.Session

	h.conn.send(t, eventFrame("setQuery", "persisted"))
	h.conn.recv(t)

	h.stop(t)
	require.Equal(t, 0, srv.SessionCount())

	// Resume with the same session ID from a fresh connection. The client
	// claims a stale URL; the snapshot wins.
	h2 := startSession(t, srv, protocol.NewHelloFrame(sessionID, "/stale", "other=x"))
	defer h2.stop(t)

	ack2 := h2.conn.recv(t)
	require.Equal(t, sessionID, ack2.Session)
	require.Equal(t, "/runs", ack2.Path)
	require.Equal(t, "q=persisted", ack2.Query)

	h2.conn.send(t, eventFrame("report", nil))
	frame := h2.conn.recv(t)
	require.JSONEq(t, `{"q":"persisted","limit":25}`, frame.Patches[0].Detail)
}

func TestResumeConsumesSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/runs", ""))
	ack := h.conn.recv(t)
	h.stop(t)
	require.Equal(t, 1, store.Count())

	h2 := startSession(t, srv, protocol.NewHelloFrame(ack.Session, "/runs", ""))
	h2.conn.recv(t)
	require.Equal(t, 0, store.Count())

	// Detaching again re-persists under the same ID.
	h2.stop(t)
	require.Equal(t, 1, store.Count())
}

func TestResumeWithUnknownIDStartsFresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("expired-id", "/runs", "q=client"))
	defer h.stop(t)

	ack := h.conn.recv(t)
	require.NotEqual(t, "expired-id", ack.Session)
	require.Equal(t, "q=client", ack.Query)
}

func TestSessionCountTracksLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	h := startSession(t, srv, protocol.NewHelloFrame("", "/", ""))
	h.conn.recv(t)
	require.Equal(t, 1, srv.SessionCount())

	h.stop(t)
	require.Equal(t, 0, srv.SessionCount())
}

func TestHandshakeRequiresHello(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	defer store.Close()
	srv := newTestServer(store)

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() {
		done <- srv.serveConn(context.Background(), conn)
	}()

	conn.send(t, eventFrame("setQuery", "x"))

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serveConn did not reject non-hello frame")
	}
}
