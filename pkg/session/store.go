// Package session persists a session's URL state across disconnects.
//
// When a client detaches, the server snapshots the session's current URL and
// writes it to a Store; when the client resumes with the same session ID, the
// snapshot restores the URL so every query-bound value picks up where it left
// off. Stores hold opaque serialized snapshots and must be safe for
// concurrent use.
package session

import (
	"context"
	"time"
)

// Store is a session persistence backend.
type Store interface {
	// Save persists a serialized snapshot. Overwrites any existing snapshot
	// for the same session ID.
	Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error

	// Load retrieves a snapshot by session ID.
	// Returns (nil, nil) when the snapshot doesn't exist or has expired.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Delete removes a snapshot. Not an error if it doesn't exist.
	Delete(ctx context.Context, sessionID string) error

	// Touch extends the expiration without rewriting the snapshot.
	// Not an error if the snapshot doesn't exist.
	Touch(ctx context.Context, sessionID string, expiresAt time.Time) error

	// SaveAll persists multiple snapshots, used on graceful shutdown.
	// Backends without atomic multi-write save sequentially.
	SaveAll(ctx context.Context, snapshots map[string]Stored) error

	// Close releases the store's resources.
	Close() error
}

// Stored is a serialized snapshot with its expiry, as handed to SaveAll.
type Stored struct {
	Data      []byte
	ExpiresAt time.Time
}

// ErrStoreClosed is returned by operations on a closed store.
type ErrStoreClosed struct{}

func (ErrStoreClosed) Error() string {
	return "session store is closed"
}
