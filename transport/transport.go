// Package transport moves nble frames between the GATT host and the BLE
// controller core. The host never assumes anything about the medium beyond
// ordered, lossless frame delivery; byte-stream reassembly and framing live
// here.
package transport

import (
	"errors"

	"github.com/Technoculture/zephyr/nble"
)

// Receiver consumes inbound frames. It may be invoked from the transport's
// read goroutine; implementations must not block on it.
type Receiver func(nble.Frame)

// Transport is one endpoint of a host<->controller link.
type Transport interface {
	// Send transmits a frame to the peer.
	Send(frame nble.Frame) error
	// SetReceiver installs the inbound frame handler. Must be called
	// before traffic flows.
	SetReceiver(r Receiver)
	// Close tears the endpoint down; in-flight frames may be lost.
	Close() error
}

// ErrClosed is returned by Send after the transport is closed.
var ErrClosed = errors.New("transport closed")
