package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// snapshotVersion guards against decoding snapshots written by an
// incompatible release.
const snapshotVersion = 1

// Snapshot is the persisted URL state of one session.
type Snapshot struct {
	Version int `json:"v"`

	// ID is the session identifier.
	ID string `json:"id"`

	// Path and RawQuery are the session's last URL.
	// RawQuery is stored encoded, exactly as it would appear after "?".
	Path     string `json:"path"`
	RawQuery string `json:"query"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`
}

// Marshal serializes the snapshot, stamping the current version.
func (s Snapshot) Marshal() ([]byte, error) {
	s.Version = snapshotVersion
	return json.Marshal(s)
}

// UnmarshalSnapshot deserializes a stored snapshot, rejecting unknown
// versions rather than restoring a URL it may misread.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported session snapshot version %d", s.Version)
	}
	return s, nil
}
