package querystate

import (
	"net/url"
	"sort"

	"github.com/querysync-dev/querysync/internal/errors"
)

// Config declares one binding: a logical piece of state bound to a set of
// query-string keys.
//
// Either Key names a single query parameter holding the whole state (the
// default codec then applies), or Encode/Decode supply a custom codec that
// spreads the state over its own key set. Supplying only one of
// Encode/Decode is a configuration error.
type Config[T any] struct {
	// Key is the query parameter for single-field bindings.
	// Ignored when a custom codec is supplied.
	Key string

	// Defaults is the value assumed when the binding's keys are absent from
	// the query string. Fields equal to their default are elided from the
	// URL entirely.
	Defaults T

	// Encode converts the state to its flat representation.
	// Must be supplied together with Decode.
	Encode EncodeFunc[T]

	// Decode reconstructs the state from its flat representation.
	// Must be supplied together with Encode.
	Decode DecodeFunc[T]
}

// Binding is a stateless, bidirectional mapping between a typed state value
// and the query string. Construct with NewBinding; all methods are pure and
// safe for concurrent use.
type Binding[T any] struct {
	key      string
	defaults T
	encode   EncodeFunc[T]
	decode   DecodeFunc[T]
	custom   bool

	// defaultRecord is encode(defaults), precomputed: elision compares
	// encoded values against it, and its keys seed the owned key set.
	defaultRecord Record
}

// NewBinding validates cfg and builds a Binding.
//
// Configuration errors (codec supplied in one direction only, or neither a
// key nor a codec) surface here, at construction time, not at runtime:
// encode and decode themselves are total.
func NewBinding[T any](cfg Config[T]) (*Binding[T], error) {
	if (cfg.Encode == nil) != (cfg.Decode == nil) {
		return nil, errors.New("E100").
			WithSuggestion("supply both Encode and Decode, or neither")
	}
	if cfg.Encode == nil && cfg.Key == "" {
		return nil, errors.New("E101")
	}

	b := &Binding[T]{
		key:      cfg.Key,
		defaults: cfg.Defaults,
		custom:   cfg.Encode != nil,
	}
	if b.custom {
		b.encode = cfg.Encode
		b.decode = cfg.Decode
	} else {
		b.encode = defaultEncode[T](cfg.Key)
		b.decode = defaultDecode[T](cfg.Key, cfg.Defaults)
	}
	b.defaultRecord = b.encode(cfg.Defaults)

	return b, nil
}

// Defaults returns the binding's default value.
func (b *Binding[T]) Defaults() T {
	return b.defaults
}

// Decode reconstructs the state from the full current query values.
// Keys outside the binding are ignored; absent keys fall back to the
// defaults. Decoding never fails: malformed values pass through the codec's
// fallback path.
func (b *Binding[T]) Decode(q url.Values) T {
	if b.custom {
		// Custom codecs see the whole record and pick out their own keys.
		return b.decode(FromValues(q, nil))
	}
	return b.decode(FromValues(q, []string{b.key}))
}

// BuildPatch encodes v and produces the merge patch for the current query
// string. Every owned key whose encoded value equals the encoded default is
// elided: listed in Remove rather than Set, which keeps the URL minimal and
// canonical. Keys outside the binding's key set never appear in the patch.
func (b *Binding[T]) BuildPatch(v T) Patch {
	enc := b.encode(v)

	owned := make(map[string]struct{}, len(enc)+len(b.defaultRecord))
	for k := range enc {
		owned[k] = struct{}{}
	}
	for k := range b.defaultRecord {
		owned[k] = struct{}{}
	}

	patch := Patch{Set: Record{}}
	for k := range owned {
		ev, ok := enc[k]
		if dv, dok := b.defaultRecord[k]; ok && !(dok && ev.Equal(dv)) {
			patch.Set[k] = ev
		} else {
			patch.Remove = append(patch.Remove, k)
		}
	}
	sort.Strings(patch.Remove)

	return patch
}

// Keys returns the binding's owned key set for its default value, sorted.
// For custom codecs whose encoded key set varies with the value, this is the
// key set of encode(defaults); BuildPatch always computes the full owned set
// per value.
func (b *Binding[T]) Keys() []string {
	if !b.custom {
		return []string{b.key}
	}
	return b.defaultRecord.Keys()
}
