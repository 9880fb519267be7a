// Package optional provides tri-state request values.
//
// Edit requests against the Labstep API must distinguish three cases for
// every field:
//
//   - Unset: the caller did not mention the field; it is left out of the
//     request body and the server keeps its current value.
//   - Null: the caller explicitly cleared the field; JSON null is sent.
//   - Set: the caller supplied a value.
//
// The zero Value is Unset, so request structs built from Value fields only
// send what the caller actually touched.
package optional

import (
	"encoding/json"
)

type state uint8

const (
	unset state = iota
	null
	set
)

// Value is a tri-state optional value. The zero value is Unset.
type Value[T any] struct {
	state state
	v     T
}

// Set returns a Value holding v.
func Set[T any](v T) Value[T] {
	return Value[T]{state: set, v: v}
}

// Null returns a Value that clears the field server-side.
func Null[T any]() Value[T] {
	return Value[T]{state: null}
}

// FromPtr returns Null for a nil pointer and Set otherwise.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return Null[T]()
	}
	return Set(*p)
}

// IsUnset reports whether the value was never provided.
func (o Value[T]) IsUnset() bool { return o.state == unset }

// IsNull reports whether the value explicitly clears the field.
func (o Value[T]) IsNull() bool { return o.state == null }

// IsSet reports whether the value holds a concrete value.
func (o Value[T]) IsSet() bool { return o.state == set }

// Get returns the held value and whether one is present.
func (o Value[T]) Get() (T, bool) {
	return o.v, o.state == set
}

// OrElse returns the held value, or def when unset or null.
func (o Value[T]) OrElse(def T) T {
	if o.state == set {
		return o.v
	}
	return def
}

// MarshalJSON encodes Null and Unset as null and Set as the value itself.
// Struct fields of type Value should be collected through Fields instead,
// since encoding/json cannot omit them.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if o.state != set {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

func (o Value[T]) field() (interface{}, bool) {
	switch o.state {
	case set:
		return o.v, true
	case null:
		return nil, true
	}
	return nil, false
}

// Field is implemented by every Value.
type Field interface {
	field() (interface{}, bool)
}

// Fields is a JSON request body under construction.
type Fields map[string]interface{}

// Put adds key when v is Set or Null and skips it when Unset.
func (f Fields) Put(key string, v Field) Fields {
	if val, ok := v.field(); ok {
		f[key] = val
	}
	return f
}

// Merge copies every entry of other into f, overwriting existing keys.
func (f Fields) Merge(other Fields) Fields {
	for k, v := range other {
		f[k] = v
	}
	return f
}

// Has reports whether key will be sent.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}
