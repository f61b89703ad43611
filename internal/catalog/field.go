package catalog

import (
	"bytes"
	"encoding/json"
)

// Field is a patch value that tells an absent key apart from an explicit null.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Some returns a field set to value.
func Some[T any](value T) Field[T] {
	return Field[T]{Set: true, Value: &value}
}

// Null returns a field explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// UnmarshalJSON records that the key was present and decodes a non-null value.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Value = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	f.Value = &value
	return nil
}
