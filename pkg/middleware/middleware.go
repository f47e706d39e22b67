// Package middleware provides observability middleware for the querysync
// event pipeline: Prometheus metrics and OpenTelemetry tracing around every
// state-change event a session processes.
package middleware

import "context"

// Event describes one client event flowing through a session.
// Middleware may read all fields; PatchCount is populated by the session
// after the handler runs, before the chain unwinds.
type Event struct {
	// SessionID identifies the session processing the event.
	SessionID string

	// Path is the session's current URL path.
	Path string

	// Handler is the registered handler name the event dispatches to.
	Handler string

	// PatchCount is the number of patches queued while handling the event.
	PatchCount int
}

// Middleware wraps event handling. Implementations call next exactly once
// unless they intend to short-circuit the event.
type Middleware func(ctx context.Context, ev *Event, next func(context.Context) error) error

// Chain composes middlewares into one, outermost first.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		run := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			inner := run
			run = func(c context.Context) error {
				return mw(c, ev, inner)
			}
		}
		return run(ctx)
	}
}
