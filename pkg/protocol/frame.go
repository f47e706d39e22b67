package protocol

import "encoding/json"

// FrameType discriminates client/server frames.
type FrameType string

const (
	// FrameHello is the first client frame: the session handshake with the
	// client's initial URL, so bindings hydrate from the address bar.
	FrameHello FrameType = "hello"

	// FrameEvent is a client frame invoking a registered handler.
	FrameEvent FrameType = "event"

	// FrameNavigate is a client frame reporting a URL change that originated
	// on the client (back/forward button, link click). The server adopts the
	// URL; no patch is echoed back.
	FrameNavigate FrameType = "navigate"

	// FramePatches is a server frame carrying URL patches for one tick.
	FramePatches FrameType = "patches"

	// FrameError is a server frame reporting a non-fatal session error.
	FrameError FrameType = "error"
)

// Frame is the envelope for every message on the wire.
// Seq is monotonically increasing per direction; the client uses it to
// detect missed patch frames after a reconnect.
type Frame struct {
	Type FrameType `json:"type"`
	Seq  uint64    `json:"seq"`

	// Session identifies the session. The client sends it on hello to resume
	// a detached session; the server's hello ack carries the assigned ID.
	Session string `json:"session,omitempty"`

	// Hello and navigate fields.
	Path  string `json:"path,omitempty"`
	Query string `json:"query,omitempty"`

	// Event fields.
	Handler string          `json:"handler,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`

	// Patches fields.
	Patches []Patch `json:"patches,omitempty"`

	// Error fields.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// EncodeFrame encodes a frame to its wire representation.
func EncodeFrame(f *Frame) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame decodes a frame from its wire representation.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// NewHelloFrame builds a hello frame. The client sends one to open or
// resume a session; the server acks with the authoritative session ID and
// URL (which may differ from the client's after a resume).
func NewHelloFrame(sessionID, path, query string) *Frame {
	return &Frame{Type: FrameHello, Session: sessionID, Path: path, Query: query}
}

// NewPatchesFrame builds a server patches frame.
func NewPatchesFrame(seq uint64, patches []Patch) *Frame {
	return &Frame{Type: FramePatches, Seq: seq, Patches: patches}
}

// NewErrorFrame builds a server error frame.
func NewErrorFrame(seq uint64, code, message string) *Frame {
	return &Frame{Type: FrameError, Seq: seq, Code: code, Message: message}
}
