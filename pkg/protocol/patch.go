// Package protocol defines the wire frames exchanged between a querysync
// server session and its client: URL patches flowing down, state-change
// events flowing up. Frames are JSON-encoded; the vocabulary is small enough
// that a binary encoding would buy nothing.
package protocol

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	// PatchURLReplace replaces the current URL's query string without
	// creating a history entry. This is the default for persisted state so
	// typing in a filter doesn't spam the back button.
	PatchURLReplace PatchOp = 0x01

	// PatchURLPush updates the URL's query string and pushes a history entry.
	PatchURLPush PatchOp = 0x02

	// PatchDispatch dispatches a custom client event (hash updates, toasts).
	PatchDispatch PatchOp = 0x03
)

// String returns the string representation of the patch operation.
func (op PatchOp) String() string {
	switch op {
	case PatchURLReplace:
		return "URLReplace"
	case PatchURLPush:
		return "URLPush"
	case PatchDispatch:
		return "Dispatch"
	default:
		return "Unknown"
	}
}

// Patch represents a single client-side operation.
type Patch struct {
	Op PatchOp `json:"op"`

	// Query is the full, already-merged query string (without leading "?")
	// for URLReplace/URLPush. The server owns the merge; the client applies
	// the result verbatim so independent bindings can never clobber each
	// other on the client side.
	Query string `json:"query,omitempty"`

	// Path is the pathname for URLReplace/URLPush. Empty means keep current.
	Path string `json:"path,omitempty"`

	// Event is the event name for Dispatch.
	Event string `json:"event,omitempty"`

	// Detail is the JSON-encoded event detail for Dispatch.
	Detail string `json:"detail,omitempty"`
}

// NewURLReplacePatch creates a replace-style URL patch.
func NewURLReplacePatch(path, query string) Patch {
	return Patch{Op: PatchURLReplace, Path: path, Query: query}
}

// NewURLPushPatch creates a history-pushing URL patch.
func NewURLPushPatch(path, query string) Patch {
	return Patch{Op: PatchURLPush, Path: path, Query: query}
}

// NewDispatchPatch creates a custom client event patch.
func NewDispatchPatch(event, detail string) Patch {
	return Patch{Op: PatchDispatch, Event: event, Detail: detail}
}
