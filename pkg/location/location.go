// Package location tracks a session's current URL on the server and bridges
// state patches to the wire protocol.
//
// Each session owns one Location. Bindings read the live query values through
// it and apply merge patches; the Location folds every patch into its state
// and queues a protocol patch so the client's address bar follows.
package location

import (
	"net/url"
	"sync"

	"github.com/querysync-dev/querysync/pkg/protocol"
	"github.com/querysync-dev/querysync/pkg/querystate"
)

// Location is the server-side source of truth for a session's URL.
// It implements querystate.Navigator.
type Location struct {
	mu    sync.RWMutex
	path  string
	query url.Values

	// queuePatch appends to the session's pending patch buffer. The session
	// passes in a closure; patches flush to the client with the next tick.
	queuePatch func(protocol.Patch)

	subscribers map[uint64]func()
	nextSubID   uint64
}

// New creates a Location from the handshake URL.
// rawQuery is the query string as received, without the leading "?".
func New(path, rawQuery string, queuePatch func(protocol.Patch)) (*Location, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return &Location{
		path:        path,
		query:       q,
		queuePatch:  queuePatch,
		subscribers: make(map[uint64]func()),
	}, nil
}

// Path returns the current path.
func (l *Location) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

// Query returns a copy of the current query values.
// Always reflects the state at call time, including patches applied earlier
// in the same tick.
func (l *Location) Query() url.Values {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyValues(l.query)
}

// URL returns the current path with the encoded query string appended.
func (l *Location) URL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.urlLocked()
}

func (l *Location) urlLocked() string {
	if len(l.query) == 0 {
		return l.path
	}
	return l.path + "?" + l.query.Encode()
}

// Apply merges the patch into the current query and queues a URL patch for
// the client. The merge happens against the live state, so interleaved
// patches from different bindings in the same tick all land.
func (l *Location) Apply(patch querystate.Patch, mode querystate.Mode) {
	l.mu.Lock()
	l.query = patch.Apply(l.query)
	path := l.path
	encoded := l.query.Encode()
	queue := l.queuePatch
	l.mu.Unlock()

	if queue != nil {
		if mode == querystate.ModePush {
			queue(protocol.NewURLPushPatch(path, encoded))
		} else {
			queue(protocol.NewURLReplacePatch(path, encoded))
		}
	}
}

// SetURL replaces the tracked URL wholesale. Called when a navigation
// originates on the client (back button, link click) and notifies
// subscribers so bindings re-decode from the new query.
func (l *Location) SetURL(path, rawQuery string) error {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.path = path
	l.query = q
	subs := make([]func(), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

// Navigate changes the path (keeping no query state) and queues a push
// navigation. Used by server-side redirects and tab switches.
func (l *Location) Navigate(path string) {
	l.mu.Lock()
	l.path = path
	l.query = url.Values{}
	queue := l.queuePatch
	l.mu.Unlock()

	if queue != nil {
		queue(protocol.NewURLPushPatch(path, ""))
	}
}

// Subscribe registers fn to run after an external URL change (SetURL).
// Returns an unsubscribe function.
func (l *Location) Subscribe(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSubID++
	id := l.nextSubID
	l.subscribers[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subscribers, id)
	}
}

func copyValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
