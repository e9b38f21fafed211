package gatt

import (
	"fmt"
	"sync"

	"github.com/Technoculture/zephyr/internal/correlator"
	"github.com/Technoculture/zephyr/nble"
)

// ReadResult is the outcome of a remote characteristic read.
type ReadResult struct {
	Status     nble.Status
	ConnHandle uint16
	Handle     uint16
	Offset     uint16
	Data       []byte
	Token      any
}

// ReadCallback receives a read outcome, exactly once.
type ReadCallback func(res ReadResult)

// WriteResult is the outcome of a remote write-with-response.
type WriteResult struct {
	Status     nble.Status
	ConnHandle uint16
	CharHandle uint16
	Len        uint16
	Token      any
}

// WriteCallback receives a write outcome, exactly once.
type WriteCallback func(res WriteResult)

// DiscoverCallback fires once when a discovery terminates, after the last
// batch has been absorbed into the session.
type DiscoverCallback func(sess *DiscoverySession, token any)

// DiscoverySession accumulates the batches of one discovery. Results arrive
// incrementally; Wait blocks until the controller signals end of results or
// the discovery fails.
type DiscoverySession struct {
	mu      sync.Mutex
	results []nble.DiscoveredAttr
	status  nble.Status
	done    chan struct{}
}

func newDiscoverySession() *DiscoverySession {
	return &DiscoverySession{done: make(chan struct{})}
}

func (s *DiscoverySession) absorb(attrs []nble.DiscoveredAttr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, attrs...)
}

func (s *DiscoverySession) finish(status nble.Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	close(s.done)
}

// Results returns the attributes discovered so far, in arrival order.
func (s *DiscoverySession) Results() []nble.DiscoveredAttr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]nble.DiscoveredAttr, len(s.results))
	copy(out, s.results)
	return out
}

// Status returns the terminal status; meaningless before Done is closed.
func (s *DiscoverySession) Status() nble.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed when the discovery terminates.
func (s *DiscoverySession) Done() <-chan struct{} { return s.done }

// Wait blocks until the discovery terminates and returns its results. A
// non-success terminal status is surfaced as an error; partial results
// gathered before the failure are still returned.
func (s *DiscoverySession) Wait() ([]nble.DiscoveredAttr, error) {
	<-s.done
	if status := s.Status(); !status.OK() {
		return s.Results(), fmt.Errorf("discovery failed: %s", status)
	}
	return s.Results(), nil
}

// Discover starts a ranged discovery on a connection. The controller streams
// results in batches; each batch extends the returned session and restarts
// the request timer, and an empty success batch or an error status
// terminates it. One discovery per connection at a time.
func (h *Host) Discover(par nble.DiscoverParams, token any, cb DiscoverCallback) (*DiscoverySession, error) {
	const op = "discover"

	if !par.Range.Valid() {
		return nil, opErr(op, par.ConnHandle, fmt.Errorf("invalid handle range %s", par.Range))
	}
	if par.UUID != "" {
		normalized := nble.NormalizeUUID(par.UUID)
		if normalized == "" {
			return nil, opErr(op, par.ConnHandle, fmt.Errorf("invalid UUID %q", par.UUID))
		}
		par.UUID = normalized
	}

	frame, err := nble.EncodeDiscoverReq(par)
	if err != nil {
		return nil, opErr(op, par.ConnHandle, err)
	}

	sess := newDiscoverySession()
	p, err := h.corr.Issue(par.ConnHandle, correlator.KindDiscover, token,
		func(status nble.Status, payload any, token any) {
			if rsp, ok := payload.(nble.DiscoverRsp); ok {
				sess.absorb(rsp.Attrs)
				if status.OK() && len(rsp.Attrs) > 0 {
					// Intermediate batch; the discovery stays pending.
					return
				}
			}
			sess.finish(status)
			if cb != nil {
				cb(sess, token)
			}
		})
	if err != nil {
		return nil, opErr(op, par.ConnHandle, err)
	}
	if err := h.send(frame, p); err != nil {
		return nil, opErr(op, par.ConnHandle, err)
	}
	return sess, nil
}

// OnDiscoverRsp routes one discovery batch. A success batch with results
// advances the pending discovery without resolving it; an empty success
// batch or any error status is terminal.
func (h *Host) OnDiscoverRsp(rsp nble.DiscoverRsp) {
	if rsp.Status.OK() && len(rsp.Attrs) > 0 {
		h.corr.Advance(rsp.ConnHandle, correlator.KindDiscover, rsp.Status, rsp)
		return
	}
	h.corr.Complete(rsp.ConnHandle, correlator.KindDiscover, rsp.Status, rsp)
}

// Read fetches a remote characteristic value at an offset.
func (h *Host) Read(par nble.ReadParams, token any, cb ReadCallback) error {
	const op = "read"

	p, err := h.corr.Issue(par.ConnHandle, correlator.KindRead, token,
		func(status nble.Status, payload any, token any) {
			res := ReadResult{
				Status:     status,
				ConnHandle: par.ConnHandle,
				Handle:     par.CharHandle,
				Offset:     par.Offset,
				Token:      token,
			}
			if rsp, ok := payload.(nble.ReadRsp); ok {
				res.ConnHandle = rsp.ConnHandle
				res.Handle = rsp.Handle
				res.Offset = rsp.Offset
				res.Data = rsp.Data
			}
			if cb != nil {
				cb(res)
			}
		})
	if err != nil {
		return opErr(op, par.ConnHandle, err)
	}
	return opErr(op, par.ConnHandle, h.send(nble.EncodeReadReq(par), p))
}

// OnReadRsp resolves the outstanding read on the response's connection.
func (h *Host) OnReadRsp(rsp nble.ReadRsp) {
	h.corr.Complete(rsp.ConnHandle, correlator.KindRead, rsp.Status, rsp)
}

// Write writes a remote characteristic value. With par.WithResp set the
// outcome arrives on cb after the peer responds; without it the controller
// sends an ATT Write Command, nothing comes back, and cb is never invoked.
func (h *Host) Write(par nble.WriteParams, data []byte, token any, cb WriteCallback) error {
	const op = "write"

	frame, err := nble.EncodeWriteReq(par, data)
	if err != nil {
		return opErr(op, par.ConnHandle, err)
	}

	if !par.WithResp {
		// Fire and forget: no response frame exists to correlate.
		h.trace.record(DirTX, frame)
		return opErr(op, par.ConnHandle, h.tr.Send(frame))
	}

	p, err := h.corr.Issue(par.ConnHandle, correlator.KindWrite, token,
		func(status nble.Status, payload any, token any) {
			res := WriteResult{
				Status:     status,
				ConnHandle: par.ConnHandle,
				CharHandle: par.CharHandle,
				Token:      token,
			}
			if rsp, ok := payload.(nble.WriteRsp); ok {
				res.ConnHandle = rsp.ConnHandle
				res.CharHandle = rsp.CharHandle
				res.Len = rsp.Len
			}
			if cb != nil {
				cb(res)
			}
		})
	if err != nil {
		return opErr(op, par.ConnHandle, err)
	}
	return opErr(op, par.ConnHandle, h.send(frame, p))
}

// OnWriteRsp resolves the outstanding write on the response's connection.
func (h *Host) OnWriteRsp(rsp nble.WriteRsp) {
	h.corr.Complete(rsp.ConnHandle, correlator.KindWrite, rsp.Status, rsp)
}
