package querystate

import (
	"net/url"
	"reflect"
	"sync"
	"time"

	"github.com/querysync-dev/querysync/pkg/reactive"
)

// Navigator is the binding's window onto the externally-owned URL.
// The session's Location implements it.
type Navigator interface {
	// Query returns the full current query values. Implementations must
	// return the live state at call time, never a snapshot: the merge-patch
	// protocol depends on reads-before-write freshness.
	Query() url.Values

	// Apply merges the patch into the current query string and requests a
	// navigation in the given mode.
	Apply(patch Patch, mode Mode)
}

// NavigatorKey is the owner-context key for the session's Navigator.
// The session sets this on the root owner so hooks can reach the URL.
var NavigatorKey = &struct{ name string }{"QueryNavigator"}

// urlSubscriber is implemented by navigators that can report external URL
// changes (client back/forward). Hook-created states subscribe so they
// re-decode when a navigation happens outside their own Set calls.
type urlSubscriber interface {
	Subscribe(fn func()) func()
}

// QueryState is reactive state persisted in a URL query parameter.
// Instances obtained through Use/UseBinding inside a session scope have
// stable identity across renders, so the state (and its Set method) can be
// captured in callbacks without re-subscription churn.
type QueryState[T any] struct {
	binding *Binding[T]
	signal  *reactive.Signal[T]
	config  stateConfig

	// Debounce timer.
	timerMu sync.Mutex
	timer   *time.Timer

	nav Navigator
}

// Use creates query-persisted state bound to a single query parameter with
// the default codec.
//
// This is a hook-like API and must be called unconditionally during render.
// On first render it hydrates from the current URL; on subsequent renders it
// returns the same instance.
//
// Example:
//
//	search := querystate.Use("q", "Navigated")
//	pageSize := querystate.Use("limit", 25)
//	tags := querystate.Use("tags", []string{})
func Use[T any](key string, defaultValue T, opts ...Option) *QueryState[T] {
	s, err := UseBinding(Config[T]{Key: key, Defaults: defaultValue}, opts...)
	if err != nil {
		// Unreachable for key-only configs; NewBinding only rejects
		// malformed custom codecs.
		panic(err)
	}
	return s
}

// UseBinding creates query-persisted state from an explicit binding
// configuration. Configuration errors (incomplete codec pair) are returned
// here, at hook construction.
func UseBinding[T any](cfg Config[T], opts ...Option) (*QueryState[T], error) {
	reactive.TrackHook(reactive.HookQueryState)

	// Hook slot stabilization: same instance on every render of this scope.
	slot := reactive.UseHookSlot()
	if slot != nil {
		existing, ok := slot.(*QueryState[T])
		if !ok {
			panic("querysync: hook slot type mismatch for QueryState")
		}
		return existing, nil
	}

	binding, err := NewBinding(cfg)
	if err != nil {
		return nil, err
	}

	s := &QueryState[T]{binding: binding}
	for _, opt := range opts {
		opt.apply(&s.config)
	}

	if navCtx := reactive.GetContext(NavigatorKey); navCtx != nil {
		if nav, ok := navCtx.(Navigator); ok {
			s.nav = nav
		}
	}

	// Hydrate from the current URL; fall back to defaults outside a session.
	initial := cfg.Defaults
	if s.nav != nil {
		initial = binding.Decode(s.nav.Query())
	}
	s.signal = reactive.NewSignal(initial)

	// Follow external navigations for the life of the owning scope.
	if sub, ok := s.nav.(urlSubscriber); ok {
		unsub := sub.Subscribe(s.Refresh)
		if owner := reactive.CurrentOwner(); owner != nil {
			owner.OnCleanup(unsub)
		}
	}

	reactive.SetHookSlot(s)
	return s, nil
}

// Bind creates a QueryState outside a hook scope, wired to an explicit
// navigator. Used by adapters that own their own subscription lifecycle.
func Bind[T any](cfg Config[T], nav Navigator, opts ...Option) (*QueryState[T], error) {
	binding, err := NewBinding(cfg)
	if err != nil {
		return nil, err
	}

	s := &QueryState[T]{binding: binding, nav: nav}
	for _, opt := range opts {
		opt.apply(&s.config)
	}

	initial := cfg.Defaults
	if nav != nil {
		initial = binding.Decode(nav.Query())
	}
	s.signal = reactive.NewSignal(initial)
	return s, nil
}

// Get returns the current value.
// In a tracking context, this subscribes the listener to changes.
func (s *QueryState[T]) Get() T {
	return s.signal.Get()
}

// Peek returns the current value without subscribing.
func (s *QueryState[T]) Peek() T {
	return s.signal.Peek()
}

// Set updates the value and synchronizes the URL.
//
// The patch is merged into the query string as it exists at call time, never
// a snapshot captured when the binding was created, so interleaved updates
// from other bindings on the same URL are preserved. Callers with the same
// obligation: read the current value (Get/Peek) when building the next one,
// don't cache it in a long-lived closure.
func (s *QueryState[T]) Set(value T) {
	s.signal.Set(value)
	s.scheduleSync(value)
}

// Update atomically reads and updates the value, then synchronizes the URL.
// Prefer this over Get-then-Set in event handlers: it cannot capture a stale
// value.
func (s *QueryState[T]) Update(fn func(T) T) {
	s.signal.Update(fn)
	s.scheduleSync(s.signal.Peek())
}

// Reset resets the value to the default, removing the binding's keys from
// the URL.
func (s *QueryState[T]) Reset() {
	s.Set(s.binding.Defaults())
}

// IsSet reports whether the current value differs from the default.
func (s *QueryState[T]) IsSet() bool {
	return !reflect.DeepEqual(s.Peek(), s.binding.Defaults())
}

// Binding returns the underlying codec binding.
func (s *QueryState[T]) Binding() *Binding[T] {
	return s.binding
}

// Refresh re-decodes the value from the current URL. The session calls this
// when a navigation originates outside this binding (back button, link).
func (s *QueryState[T]) Refresh() {
	if s.nav == nil {
		return
	}
	s.signal.Set(s.binding.Decode(s.nav.Query()))
}

// scheduleSync pushes the encoded value to the URL, respecting debounce.
func (s *QueryState[T]) scheduleSync(value T) {
	if s.config.debounce > 0 {
		s.timerMu.Lock()
		defer s.timerMu.Unlock()

		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.AfterFunc(s.config.debounce, func() {
			s.syncNow(value)
		})
		return
	}

	s.syncNow(value)
}

func (s *QueryState[T]) syncNow(value T) {
	if s.nav == nil {
		return
	}
	s.nav.Apply(s.binding.BuildPatch(value), s.config.mode)
}
