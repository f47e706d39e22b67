// Package reactive provides the reactive primitives that back query-persisted
// state: signals, owners, and hook slots.
//
// A Signal[T] is a value container that notifies subscribed listeners when it
// changes. An Owner represents a component or session scope that owns hook
// state and context values; disposing an Owner releases everything it owns.
// Hook slots give hook-style APIs (querystate.Use and friends) stable identity
// across re-renders of the same scope.
//
// All primitives are safe for concurrent use, but the intended model is the
// session event loop: reads and writes happen on a single goroutine, and the
// locking exists so background work can hand values back via Dispatch-style
// mechanisms without races.
package reactive
