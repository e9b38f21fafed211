package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"

	"github.com/Technoculture/zephyr/nble"
)

// Stream frame format: message ID byte, 16-bit little-endian payload length,
// payload. UART-style links deliver arbitrary chunks, so inbound bytes are
// reassembled through a ring buffer until a complete frame is available.
const (
	frameHeaderSize = 3

	// DefaultStreamBufSize bounds both the reassembly buffer and the
	// largest acceptable payload.
	DefaultStreamBufSize = 16 * 1024
)

// StreamOptions configures a stream transport.
type StreamOptions struct {
	// BufSize is the reassembly ring capacity; payloads larger than
	// BufSize - 3 are a framing error.
	BufSize int
}

// Stream runs the frame protocol over any ordered byte link (UART, PTY,
// socket, pipe).
type Stream struct {
	rwc    io.ReadWriteCloser
	logger *logrus.Logger

	mu       sync.Mutex
	receiver Receiver
	closed   bool

	writeMu sync.Mutex

	rx      *ringbuffer.RingBuffer
	pending nble.MsgID // parsed frame header, MsgIDInvalid when between frames
	need    int        // payload bytes still expected for the pending frame

	done chan struct{}
}

// NewStream wraps rwc in a frame transport. Call SetReceiver, then Start.
func NewStream(rwc io.ReadWriteCloser, opts *StreamOptions, logger *logrus.Logger) *Stream {
	if logger == nil {
		logger = logrus.New()
	}
	bufSize := DefaultStreamBufSize
	if opts != nil && opts.BufSize > 0 {
		bufSize = opts.BufSize
	}
	return &Stream{
		rwc:    rwc,
		logger: logger,
		rx:     ringbuffer.New(bufSize),
		done:   make(chan struct{}),
	}
}

// SetReceiver installs the inbound frame handler.
func (s *Stream) SetReceiver(r Receiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiver = r
}

// Start launches the read loop. The loop ends when the underlying link
// reports an error or the stream is closed.
func (s *Stream) Start() {
	go s.readLoop()
}

// Send transmits one frame. Safe for concurrent use.
func (s *Stream) Send(frame nble.Frame) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if len(frame.Payload) > 0xFFFF {
		return fmt.Errorf("%w: payload %d bytes", nble.ErrPayloadTooLarge, len(frame.Payload))
	}

	buf := make([]byte, 0, frameHeaderSize+len(frame.Payload))
	buf = append(buf, byte(frame.ID), byte(len(frame.Payload)), byte(len(frame.Payload)>>8))
	buf = append(buf, frame.Payload...)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.rwc.Write(buf); err != nil {
		return fmt.Errorf("stream write: %w", err)
	}
	return nil
}

// Close tears down the link and stops the read loop.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.rwc.Close()
}

// Done is closed when the read loop has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) readLoop() {
	defer close(s.done)

	chunk := make([]byte, 4096)
	for {
		n, err := s.rwc.Read(chunk)
		if n > 0 {
			if ferr := s.feed(chunk[:n]); ferr != nil {
				s.logger.WithError(ferr).Error("Stream framing error, closing link")
				_ = s.Close()
				return
			}
		}
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed && !errors.Is(err, io.EOF) {
				s.logger.WithError(err).Warn("Stream read failed")
			}
			return
		}
	}
}

// feed appends raw bytes to the reassembly buffer and emits every complete
// frame found.
func (s *Stream) feed(data []byte) error {
	if _, err := s.rx.Write(data); err != nil {
		return fmt.Errorf("reassembly buffer overflow: %w", err)
	}

	for {
		if s.pending == nble.MsgIDInvalid {
			if s.rx.Length() < frameHeaderSize {
				return nil
			}
			var hdr [frameHeaderSize]byte
			if _, err := io.ReadFull(s.rx, hdr[:]); err != nil {
				return err
			}
			s.pending = nble.MsgID(hdr[0])
			s.need = int(hdr[1]) | int(hdr[2])<<8
			if s.pending == nble.MsgIDInvalid {
				return errors.New("zero message id")
			}
			if s.need > s.rx.Capacity()-frameHeaderSize {
				return fmt.Errorf("frame payload %d bytes exceeds buffer", s.need)
			}
		}

		if s.rx.Length() < s.need {
			return nil
		}

		payload := make([]byte, s.need)
		if s.need > 0 {
			if _, err := io.ReadFull(s.rx, payload); err != nil {
				return err
			}
		}
		frame := nble.Frame{ID: s.pending, Payload: payload}
		s.pending = nble.MsgIDInvalid
		s.need = 0

		s.mu.Lock()
		r := s.receiver
		s.mu.Unlock()
		if r != nil {
			r(frame)
		} else {
			s.logger.WithField("msg", frame.ID.String()).Warn("Frame dropped: no receiver installed")
		}
	}
}
