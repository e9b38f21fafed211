package gatt

import (
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/Technoculture/zephyr/nble"
)

// Direction tells which way a traced frame crossed the transport.
type Direction uint8

const (
	DirTX Direction = iota // host to controller
	DirRX                  // controller to host
)

func (d Direction) String() string {
	if d == DirTX {
		return "TX"
	}
	return "RX"
}

// TraceEntry is one captured frame with its direction and capture time.
type TraceEntry struct {
	Dir   Direction
	At    time.Time
	Frame nble.Frame
}

// frameTrace keeps the most recent frames in an overwriting ring so a
// wedged exchange can be reconstructed after the fact. Recording happens on
// the send and receive hot paths, so the buffer is lock-free and overflow
// silently drops the oldest entries.
type frameTrace struct {
	buffer      mpmc.RichOverlappedRingBuffer[TraceEntry]
	overwritten int64
}

func newFrameTrace(depth uint32) *frameTrace {
	if depth == 0 {
		depth = 64
	}
	return &frameTrace{
		buffer: mpmc.NewOverlappedRingBuffer[TraceEntry](depth),
	}
}

func (t *frameTrace) record(dir Direction, frame nble.Frame) {
	payload := make([]byte, len(frame.Payload))
	copy(payload, frame.Payload)

	overwrites, err := t.buffer.EnqueueM(TraceEntry{
		Dir:   dir,
		At:    time.Now(),
		Frame: nble.Frame{ID: frame.ID, Payload: payload},
	})
	if err == nil {
		atomic.AddInt64(&t.overwritten, int64(overwrites))
	}
}

// drain removes and returns all buffered entries, oldest first.
func (t *frameTrace) drain() []TraceEntry {
	var out []TraceEntry
	for !t.buffer.IsEmpty() {
		entry, err := t.buffer.Dequeue()
		if err != nil {
			break
		}
		out = append(out, entry)
	}
	return out
}

// Trace drains and returns the retained frame history, oldest first. Entries
// are consumed: a second call returns only frames recorded since the first.
func (h *Host) Trace() []TraceEntry {
	return h.trace.drain()
}

// TraceOverwritten reports how many trace entries were lost to overflow.
func (h *Host) TraceOverwritten() int64 {
	return atomic.LoadInt64(&h.trace.overwritten)
}
