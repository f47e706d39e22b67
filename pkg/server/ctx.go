package server

import (
	"context"
	"log/slog"

	"github.com/querysync-dev/querysync/pkg/location"
	"github.com/querysync-dev/querysync/pkg/protocol"
)

// Ctx is handed to setup functions and event handlers. It is only valid on
// the session's goroutine for the duration of the call.
type Ctx struct {
	session *Session
	ctx     context.Context
}

// Context returns the request-scoped context, carrying any trace span the
// middleware chain opened.
func (c *Ctx) Context() context.Context {
	return c.ctx
}

// SessionID returns the session identifier.
func (c *Ctx) SessionID() string {
	return c.session.id
}

// Location returns the session's URL state.
func (c *Ctx) Location() *location.Location {
	return c.session.loc
}

// Logger returns a logger scoped to the session.
func (c *Ctx) Logger() *slog.Logger {
	return c.session.logger
}

// Handle registers an event handler for this session. Called during setup;
// later events with the given name dispatch to fn on the session goroutine.
func (c *Ctx) Handle(name string, fn HandlerFunc) {
	c.session.handlers[name] = fn
}

// Dispatch queues a custom client event, delivered with the tick's patches.
func (c *Ctx) Dispatch(event, detail string) {
	c.session.queuePatch(protocol.NewDispatchPatch(event, detail))
}

// Navigate changes the session's path and queues a history-pushing
// navigation for the client.
func (c *Ctx) Navigate(path string) {
	c.session.loc.Navigate(path)
}
