// Package envvars models agent environment variable sets as a JSON object
// whose values are a tagged union of JSON kinds.
package envvars

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNotObject is returned when env_vars is not a non-empty JSON object.
var ErrNotObject = errors.New("env_vars must be a JSON object")

// Kind tags the JSON type held by a Value.
type Kind int

// Kind constants.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is one env var value. Strings are held decoded so they can be
// templated; every other kind keeps its raw JSON so it round-trips verbatim.
type Value struct {
	kind Kind
	str  string
	raw  json.RawMessage
}

// String constructs a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNull:
		return []byte("null"), nil
	default:
		return v.raw, nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("envvars: empty value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("envvars: decode string: %w", err)
		}
		*v = String(s)
		return nil
	case 'n':
		*v = Value{kind: KindNull}
		return nil
	case 't', 'f':
		*v = Value{kind: KindBool, raw: cloneRaw(trimmed)}
	case '[':
		*v = Value{kind: KindArray, raw: cloneRaw(trimmed)}
	case '{':
		*v = Value{kind: KindObject, raw: cloneRaw(trimmed)}
	default:
		*v = Value{kind: KindNumber, raw: cloneRaw(trimmed)}
	}
	if !json.Valid(v.raw) {
		return fmt.Errorf("envvars: invalid %s value", v.kind)
	}
	return nil
}

// Map is a decoded env_vars object.
type Map map[string]Value

// Parse decodes data into a Map. Anything other than a non-empty JSON object
// (array, scalar, null, {} or malformed JSON) yields ErrNotObject.
func Parse(data []byte) (Map, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var out Map
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if len(out) == 0 {
		return nil, ErrNotObject
	}
	return out, nil
}

// Encode serializes m as a JSON object.
func Encode(m Map) ([]byte, error) {
	if m == nil {
		m = Map{}
	}
	data, err := json.Marshal(map[string]Value(m))
	if err != nil {
		return nil, fmt.Errorf("envvars: encode: %w", err)
	}
	return data, nil
}

// Keys returns the variable names in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of m. Values are immutable.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRaw(data []byte) json.RawMessage {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
