// Package gatt implements the host side of the split-stack GATT interface:
// per-operation request/response pairs over an asynchronous controller
// transport, with a correlation engine pairing every completion to the
// request that caused it and routing unsolicited events independently.
//
// The controller wire format carries no request IDs, so at most one request
// may be outstanding per (connection, operation) at a time; a second issue
// on a busy key fails with ErrDuplicatePending until the first resolves.
package gatt

import (
	"errors"
	"fmt"

	"github.com/Technoculture/zephyr/internal/attidx"
	"github.com/Technoculture/zephyr/internal/attstore"
	"github.com/Technoculture/zephyr/internal/correlator"
)

// Sentinel errors surfaced by host operations. Protocol-level failures
// (controller statuses, timeouts) arrive on the completion callback instead.
var (
	// ErrDuplicatePending means the (connection, operation) key already has
	// a request in flight. Serialize per key.
	ErrDuplicatePending = correlator.ErrDuplicatePending

	// ErrArityMismatch means a register response disagreed with the request
	// about the attribute count. Fatal to that registration only.
	ErrArityMismatch = attidx.ErrArityMismatch

	// ErrUnknownAttribute means a (service index, attribute index) lookup
	// missed; returned to the caller of the referencing operation.
	ErrUnknownAttribute = attidx.ErrUnknownAttribute

	// ErrNoStoredValue means a zero-length notification or indication was
	// requested for a handle that never had a value written.
	ErrNoStoredValue = attstore.ErrNoStoredValue

	// ErrClosed means the host was shut down.
	ErrClosed = errors.New("gatt host closed")
)

// OpError wraps an operation failure with the operation name and connection
// handle it occurred on.
type OpError struct {
	Op   string
	Conn uint16
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("gatt %s (conn 0x%04x): %v", e.Op, e.Conn, e.Err)
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *OpError) Unwrap() error { return e.Err }

func opErr(op string, conn uint16, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Conn: conn, Err: err}
}
