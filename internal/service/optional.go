package service

import (
	"bytes"
	"encoding/json"
)

// Optional is a PATCH body field that keeps "absent" apart from "null".
// A key missing from the body leaves the zero Optional (Set false). An
// explicit null decodes to Set with a nil Value, which clears the target.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some is a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null is a set Optional holding JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON is only called for keys present in the body, null included.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Get returns the new value. Null yields the zero value of T.
func (o Optional[T]) Get() T {
	if o.Value == nil {
		var zero T
		return zero
	}
	return *o.Value
}
