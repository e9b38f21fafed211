package transport

import (
	"sync"

	"github.com/Technoculture/zephyr/nble"
)

// Loopback is an in-process crossed pair: frames sent on one endpoint are
// delivered synchronously to the other endpoint's receiver. Used by tests
// and the loopback CLI command to run a host against the controller
// emulator without any I/O.
type Loopback struct {
	mu       sync.Mutex
	peer     *Loopback
	receiver Receiver
	closed   bool
}

// NewLoopbackPair creates two connected endpoints.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{}
	b := &Loopback{}
	a.peer = b
	b.peer = a
	return a, b
}

// Send delivers the frame to the peer's receiver on the caller's goroutine.
func (l *Loopback) Send(frame nble.Frame) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	peer := l.peer
	l.mu.Unlock()

	peer.mu.Lock()
	r := peer.receiver
	closed := peer.closed
	peer.mu.Unlock()

	if closed || r == nil {
		return ErrClosed
	}
	r(frame)
	return nil
}

// SetReceiver installs the inbound frame handler.
func (l *Loopback) SetReceiver(r Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receiver = r
}

// Close stops delivery in both directions for this endpoint.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.receiver = nil
	return nil
}
