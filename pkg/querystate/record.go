package querystate

import (
	"net/url"
	"sort"
	"strconv"
)

// bracketSuffix marks a key as list-valued on the wire: items are repeated
// under "key[]" so order survives standard query-string parsing.
const bracketSuffix = "[]"

// Value is one query-string field: either a single string or an ordered list
// of strings. The zero Value is the empty scalar.
type Value struct {
	scalar string
	items  []string
	list   bool
}

// String creates a scalar value.
func String(s string) Value {
	return Value{scalar: s}
}

// Bool creates a scalar value holding "true" or "false".
func Bool(b bool) Value {
	return Value{scalar: strconv.FormatBool(b)}
}

// Int creates a scalar value holding the decimal representation of n.
func Int(n int) Value {
	return Value{scalar: strconv.Itoa(n)}
}

// List creates a list value. Order is preserved through encode/decode.
func List(items ...string) Value {
	return Value{items: items, list: true}
}

// IsList reports whether the value is list-valued.
func (v Value) IsList() bool {
	return v.list
}

// Scalar returns the scalar string. For list values it returns "".
func (v Value) Scalar() string {
	if v.list {
		return ""
	}
	return v.scalar
}

// Items returns the ordered list items. For scalar values it returns nil.
func (v Value) Items() []string {
	if !v.list {
		return nil
	}
	return v.items
}

// Equal reports whether two values have the same wire representation.
func (v Value) Equal(o Value) bool {
	if v.list != o.list {
		return false
	}
	if !v.list {
		return v.scalar == o.scalar
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if v.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// Record is the flat, URL-safe representation of one binding's state:
// logical key (no bracket suffix) to Value.
type Record map[string]Value

// Get returns the scalar string for key, or "" when absent.
func (r Record) Get(key string) string {
	return r[key].Scalar()
}

// GetBool returns the boolean for key, or def when absent or not a boolean
// literal. Only the literal strings "true" and "false" coerce.
func (r Record) GetBool(key string, def bool) bool {
	v, ok := r[key]
	if !ok || v.IsList() {
		return def
	}
	switch v.Scalar() {
	case "true":
		return true
	case "false":
		return false
	}
	return def
}

// GetList returns the ordered items for key, or nil when absent.
func (r Record) GetList(key string) []string {
	return r[key].Items()
}

// Has reports whether key is present.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromValues extracts a Record from parsed query values.
// A wire key "k[]" becomes the list-valued logical key "k"; the bracket form
// wins when both are present (the list form is what this package writes).
// When keys is non-nil, only those logical keys are extracted; otherwise the
// whole query is converted.
func FromValues(q url.Values, keys []string) Record {
	rec := Record{}

	if keys != nil {
		for _, k := range keys {
			if items, ok := q[k+bracketSuffix]; ok {
				rec[k] = List(items...)
			} else if _, ok := q[k]; ok {
				rec[k] = String(q.Get(k))
			}
		}
		return rec
	}

	for wire, vals := range q {
		if len(wire) > len(bracketSuffix) && wire[len(wire)-len(bracketSuffix):] == bracketSuffix {
			rec[wire[:len(wire)-len(bracketSuffix)]] = List(vals...)
		} else if len(vals) > 0 {
			rec[wire] = String(vals[0])
		}
	}
	return rec
}

// Patch is a partial Record to merge into an existing query string:
// Set assigns keys, Remove deletes keys. Keys outside the patch are never
// touched, which is what lets independent bindings share one URL.
type Patch struct {
	Set    Record
	Remove []string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return len(p.Set) == 0 && len(p.Remove) == 0
}

// Apply merges the patch into q and returns the result as a new url.Values.
// The input is not modified. Both the plain and bracketed wire forms of each
// patched key are cleared before the new form is written, so a field can
// change shape (scalar to list) without leaving stale keys behind.
func (p Patch) Apply(q url.Values) url.Values {
	merged := make(url.Values, len(q))
	for k, vals := range q {
		merged[k] = append([]string(nil), vals...)
	}

	for _, k := range p.Remove {
		delete(merged, k)
		delete(merged, k+bracketSuffix)
	}

	for k, v := range p.Set {
		delete(merged, k)
		delete(merged, k+bracketSuffix)
		if v.IsList() {
			merged[k+bracketSuffix] = append([]string(nil), v.Items()...)
		} else {
			merged.Set(k, v.Scalar())
		}
	}

	return merged
}
