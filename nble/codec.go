package nble

import (
	"errors"
	"fmt"
)

// Codec errors. Decoders never panic on malformed input; a short or
// malformed payload surfaces as ErrTruncated so the dispatcher can log the
// frame and drop it.
var (
	ErrTruncated       = errors.New("truncated message")
	ErrPayloadTooLarge = errors.New("payload too large")
)

func errTruncated(field string) error {
	return fmt.Errorf("%w: %s", ErrTruncated, field)
}

func putU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func putI32(b []byte, v int32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// reader walks a payload, remembering the first decode error.
type reader struct {
	b   []byte
	err error
}

func (r *reader) fail(field string) {
	if r.err == nil {
		r.err = errTruncated(field)
	}
}

func (r *reader) u8(field string) uint8 {
	if r.err != nil {
		return 0
	}
	if len(r.b) < 1 {
		r.fail(field)
		return 0
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v
}

func (r *reader) u16(field string) uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.b) < 2 {
		r.fail(field)
		return 0
	}
	v := uint16(r.b[0]) | uint16(r.b[1])<<8
	r.b = r.b[2:]
	return v
}

func (r *reader) i32(field string) int32 {
	if r.err != nil {
		return 0
	}
	if len(r.b) < 4 {
		r.fail(field)
		return 0
	}
	v := int32(uint32(r.b[0]) | uint32(r.b[1])<<8 | uint32(r.b[2])<<16 | uint32(r.b[3])<<24)
	r.b = r.b[4:]
	return v
}

func (r *reader) bytes(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.fail(field)
		return nil
	}
	// Copy: payload buffers may be reused by the transport.
	v := make([]byte, n)
	copy(v, r.b[:n])
	r.b = r.b[n:]
	return v
}

func (r *reader) uuid(field string) string {
	if r.err != nil {
		return ""
	}
	u, rest, err := consumeUUID(r.b)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("%s: %w", field, err)
		}
		return ""
	}
	r.b = rest
	return u
}

func (r *reader) handleRange(field string) HandleRange {
	start := r.u16(field + ".start")
	end := r.u16(field + ".end")
	return HandleRange{Start: start, End: end}
}

func (r *reader) status() Status {
	return Status(r.i32("status"))
}

func (r *reader) done(what string) error {
	if r.err != nil {
		return r.err
	}
	if len(r.b) != 0 {
		return fmt.Errorf("%s: %d trailing bytes", what, len(r.b))
	}
	return nil
}
