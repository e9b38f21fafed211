// Package attidx maps local (service index, attribute index) pairs to the
// attribute handles the controller assigned at registration time.
package attidx

import (
	"errors"
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/Technoculture/zephyr/nble"
)

var (
	// ErrArityMismatch means a register response carried a different number
	// of handle entries than attributes were submitted. Fatal to that
	// registration only.
	ErrArityMismatch = errors.New("attribute count mismatch")

	// ErrUnknownAttribute means a lookup referenced a service or attribute
	// index with no built table entry.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Table owns one handle table per registered service. Tables are built once,
// during registration, and read-only afterwards; services iterate in
// registration order.
type Table struct {
	mu       sync.RWMutex
	services *orderedmap.OrderedMap[uint8, []uint16]
}

// New creates an empty table.
func New() *Table {
	return &Table{services: orderedmap.New[uint8, []uint16]()}
}

// Build stores the handle entries returned for a service registration.
// submitted is the attribute count of the register request; a disagreeing
// entry count fails with ErrArityMismatch and leaves other services intact.
// Re-registering a service index replaces its table.
func (t *Table) Build(svcIdx uint8, submitted int, handles []uint16) error {
	if len(handles) != submitted {
		return fmt.Errorf("%w: service %d submitted %d attributes, response has %d entries",
			ErrArityMismatch, svcIdx, submitted, len(handles))
	}

	entries := make([]uint16, len(handles))
	copy(entries, handles)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.services.Set(svcIdx, entries)
	return nil
}

// Resolve returns the controller-assigned handle of (svcIdx, attrIdx).
func (t *Table) Resolve(svcIdx, attrIdx uint8) (uint16, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries, ok := t.services.Get(svcIdx)
	if !ok {
		return 0, fmt.Errorf("%w: service %d not registered", ErrUnknownAttribute, svcIdx)
	}
	if int(attrIdx) >= len(entries) {
		return 0, fmt.Errorf("%w: service %d has %d attributes, index %d",
			ErrUnknownAttribute, svcIdx, len(entries), attrIdx)
	}
	return entries[attrIdx], nil
}

// ServiceRange returns the [min, max] handle range of a built service,
// suitable for scoping a Service Changed indication.
func (t *Table) ServiceRange(svcIdx uint8) (nble.HandleRange, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries, ok := t.services.Get(svcIdx)
	if !ok || len(entries) == 0 {
		return nble.HandleRange{}, fmt.Errorf("%w: service %d not registered", ErrUnknownAttribute, svcIdx)
	}

	r := nble.HandleRange{Start: entries[0], End: entries[0]}
	for _, h := range entries[1:] {
		if h < r.Start {
			r.Start = h
		}
		if h > r.End {
			r.End = h
		}
	}
	return r, nil
}

// Services returns the registered service indexes in registration order.
func (t *Table) Services() []uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []uint8
	for pair := t.services.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
