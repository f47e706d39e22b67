package querystate

import (
	"encoding/json"
	"strconv"
)

// EncodeFunc converts a state value to its flat query-string representation.
type EncodeFunc[T any] func(T) Record

// DecodeFunc reconstructs a state value from its query-string representation.
// Decoding is total: absent or malformed input falls back to defaults, never
// to an error.
type DecodeFunc[T any] func(Record) T

// defaultEncode returns the encoder used when no custom codec is supplied:
// the whole state is one field under key. Booleans become "true"/"false",
// []string becomes a list value (bracket notation on the wire), numbers use
// their canonical decimal form, and anything else falls back to JSON.
func defaultEncode[T any](key string) EncodeFunc[T] {
	return func(v T) Record {
		return Record{key: defaultValueOf(v)}
	}
}

func defaultValueOf(v any) Value {
	switch val := v.(type) {
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case int:
		return Int(val)
	case int64:
		return String(strconv.FormatInt(val, 10))
	case float64:
		return String(strconv.FormatFloat(val, 'g', -1, 64))
	case []string:
		return List(val...)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return String("")
		}
		return String(string(b))
	}
}

// defaultDecode returns the decoder paired with defaultEncode. The literal
// strings "true"/"false" coerce to bool, bracket-notation lists coerce to
// []string, unparseable input yields the default rather than an error.
func defaultDecode[T any](key string, def T) DecodeFunc[T] {
	return func(rec Record) T {
		v, ok := rec[key]
		if !ok {
			return def
		}

		switch any(def).(type) {
		case string:
			return any(v.Scalar()).(T)
		case bool:
			switch v.Scalar() {
			case "true":
				return any(true).(T)
			case "false":
				return any(false).(T)
			}
			return def
		case int:
			n, err := strconv.Atoi(v.Scalar())
			if err != nil {
				return def
			}
			return any(n).(T)
		case int64:
			n, err := strconv.ParseInt(v.Scalar(), 10, 64)
			if err != nil {
				return def
			}
			return any(n).(T)
		case float64:
			f, err := strconv.ParseFloat(v.Scalar(), 64)
			if err != nil {
				return def
			}
			return any(f).(T)
		case []string:
			if v.IsList() {
				return any(append([]string(nil), v.Items()...)).(T)
			}
			// A scalar under a list-typed binding is a single-element list.
			return any([]string{v.Scalar()}).(T)
		default:
			var out T
			if err := json.Unmarshal([]byte(v.Scalar()), &out); err != nil {
				return def
			}
			return out
		}
	}
}
