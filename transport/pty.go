package transport

import (
	"fmt"
	"io"
	"os"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// PTY wraps a pseudo-terminal pair so the controller emulator can stand in
// for real controller hardware behind a serial device node: the emulator
// speaks frames on the master side while a host process opens the slave
// path like a UART.
type PTY struct {
	*Stream
	tty *os.File
}

// Path returns the slave device path a peer process should open.
func (p *PTY) Path() string {
	return p.tty.Name()
}

// Close shuts down the stream and both sides of the terminal pair.
func (p *PTY) Close() error {
	err := p.Stream.Close()
	if terr := p.tty.Close(); err == nil {
		err = terr
	}
	return err
}

// OpenPTY allocates a pseudo-terminal and returns a frame transport on its
// master side. The slave is switched to raw mode so line discipline cannot
// mangle binary frames.
func OpenPTY(opts *StreamOptions, logger *logrus.Logger) (*PTY, error) {
	master, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		_ = master.Close()
		_ = tty.Close()
		return nil, fmt.Errorf("raw mode on %s: %w", tty.Name(), err)
	}

	p := &PTY{
		Stream: NewStream(master, opts, logger),
		tty:    tty,
	}
	return p, nil
}

// Pipe is a convenience for tests: a Stream over an in-process full-duplex
// pipe pair, exercising the same framing path as a real serial link.
func Pipe(opts *StreamOptions, logger *logrus.Logger) (*Stream, *Stream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := NewStream(pipeEnd{ar, aw}, opts, logger)
	b := NewStream(pipeEnd{br, bw}, opts, logger)
	return a, b
}

type pipeEnd struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipeEnd) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeEnd) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p pipeEnd) Close() error {
	err := p.r.Close()
	if werr := p.w.Close(); err == nil {
		err = werr
	}
	return err
}
