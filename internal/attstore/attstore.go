// Package attstore tracks the last non-empty value written to each value
// handle. The controller interface lets a zero-length notification or
// indication mean "resend the stored value", so the host must remember what
// it last submitted per handle.
package attstore

import (
	"errors"
	"fmt"

	"github.com/cornelk/hashmap"
)

// ErrNoStoredValue means a zero-length send referenced a value handle that
// never had a non-empty value written.
var ErrNoStoredValue = errors.New("no stored value")

// Store is a concurrent last-value-per-handle store.
type Store struct {
	values *hashmap.Map[uint16, []byte]
}

// New creates an empty store.
func New() *Store {
	return &Store{values: hashmap.New[uint16, []byte]()}
}

// Put records value as the last value of handle. Empty values are ignored:
// only non-empty payloads are eligible for resend.
func (s *Store) Put(handle uint16, value []byte) {
	if len(value) == 0 {
		return
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.values.Set(handle, v)
}

// Get returns the last non-empty value written to handle.
func (s *Store) Get(handle uint16) ([]byte, error) {
	v, ok := s.values.Get(handle)
	if !ok {
		return nil, fmt.Errorf("%w: handle 0x%04x", ErrNoStoredValue, handle)
	}
	return v, nil
}

// Len returns the number of handles with a stored value.
func (s *Store) Len() int {
	return s.values.Len()
}
