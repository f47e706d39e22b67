package reactive

// Listener is anything that can be notified when a dependency changes.
// Session render loops and subscription bridges implement this interface.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies has changed.
	// For a session, this schedules a re-render/flush tick.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}

// Cleanup is a function registered to release resources when a scope is
// disposed.
type Cleanup func()
