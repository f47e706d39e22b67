package server

import (
	"net/http"
	"time"

	"github.com/querysync-dev/querysync/pkg/session"
)

// Config configures the querysync server.
type Config struct {
	// Address is the listen address (default: ":8080").
	Address string

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the WebSocket origin header.
	// The default accepts same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	// Store persists session URL snapshots for resume. Defaults to an
	// in-memory store.
	Store session.Store

	// ResumeWindow is how long a detached session's snapshot stays
	// restorable (default: 5 minutes).
	ResumeWindow time.Duration

	// ShutdownTimeout bounds graceful shutdown (default: 10 seconds).
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout guards the HTTP server against slow clients.
	ReadHeaderTimeout time.Duration

	// DebugMode enables hook order validation and verbose logging.
	DebugMode bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       nil,
		ResumeWindow:      5 * time.Minute,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// fillDefaults fills unset fields from the defaults.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.ResumeWindow == 0 {
		c.ResumeWindow = d.ResumeWindow
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if c.Store == nil {
		c.Store = session.NewMemoryStore()
	}
}
