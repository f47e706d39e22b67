package querystate

import "time"

// Mode determines how URL updates interact with browser history.
type Mode int

const (
	// ModeReplace replaces the current history entry. This is the default:
	// persisted state (filters, search, pagination) should not pollute the
	// back button.
	ModeReplace Mode = iota

	// ModePush adds a new history entry.
	ModePush
)

// Option configures a QueryState hook.
type Option interface {
	apply(*stateConfig)
}

type stateConfig struct {
	mode     Mode
	debounce time.Duration
}

// Mode options as values (not functions) to avoid collision with navigation
// method names.
var (
	// Replace updates the URL without creating a history entry (default).
	Replace Option = modeOption{mode: ModeReplace}

	// Push creates a new history entry per update.
	Push Option = modeOption{mode: ModePush}
)

type modeOption struct {
	mode Mode
}

func (o modeOption) apply(c *stateConfig) {
	c.mode = o.mode
}

type debounceOption struct {
	d time.Duration
}

func (o debounceOption) apply(c *stateConfig) {
	c.debounce = o.d
}

// Debounce delays URL updates by the specified duration.
// Use this for search inputs to avoid a navigation per keystroke.
//
// Example:
//
//	search := querystate.Use("q", "", querystate.Debounce(300*time.Millisecond))
func Debounce(d time.Duration) Option {
	return debounceOption{d: d}
}
