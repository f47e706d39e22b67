// Package querysync keeps application state and the URL query string in
// sync. It re-exports the core querystate API so applications can depend on
// a single import for the common path.
//
// State is declared per query parameter (or per custom codec spanning
// several parameters), hydrates from the current URL, and writes back
// through a merge patch: unrelated parameters survive every update, and
// values equal to their default vanish from the URL.
//
//	search := querysync.Use("q", "")
//	limit := querysync.Use("limit", 25)
//
//	search.Set("pods")   // ?q=pods, limit untouched
//	limit.Set(25)        // limit removed again: it's the default
//
// See pkg/querystate for bindings and codecs, pkg/server for hosting
// sessions over WebSocket, and pkg/nav for permission-gated navigation tabs.
package querysync

import (
	"github.com/querysync-dev/querysync/pkg/querystate"
)

// Config declares a binding. See querystate.Config.
type Config[T any] = querystate.Config[T]

// QueryState is reactive state persisted in the URL. See
// querystate.QueryState.
type QueryState[T any] = querystate.QueryState[T]

// Option configures a QueryState hook.
type Option = querystate.Option

// Binding is the pure codec between a typed value and the query string.
type Binding[T any] = querystate.Binding[T]

// Use creates query-persisted state for a single parameter.
func Use[T any](key string, defaultValue T, opts ...Option) *QueryState[T] {
	return querystate.Use(key, defaultValue, opts...)
}

// UseBinding creates query-persisted state from an explicit configuration.
func UseBinding[T any](cfg Config[T], opts ...Option) (*QueryState[T], error) {
	return querystate.UseBinding(cfg, opts...)
}

// NewBinding builds a standalone codec binding.
func NewBinding[T any](cfg Config[T]) (*Binding[T], error) {
	return querystate.NewBinding(cfg)
}

// Debounce delays URL updates; see querystate.Debounce.
var Debounce = querystate.Debounce

// Replace and Push select the history mode for URL updates.
var (
	Replace = querystate.Replace
	Push    = querystate.Push
)
