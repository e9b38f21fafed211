// Package correlator pairs each outbound GATT request with exactly one
// inbound completion. The wire contract carries no sequence numbers, so
// correlation keys are derived from (connection handle, operation kind) and
// at most one request may be outstanding per key.
package correlator

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/Technoculture/zephyr/nble"
)

// Kind is the operation class a pending request belongs to. One request per
// (connection, kind) may be in flight at a time.
type Kind uint8

const (
	KindNone Kind = iota
	KindRegister
	KindSetAttribute
	KindGetAttribute
	KindSvcChanged
	KindNotify
	KindIndicate
	KindDiscover
	KindRead
	KindWrite
)

var kindNames = map[Kind]string{
	KindRegister:     "register",
	KindSetAttribute: "set_attribute",
	KindGetAttribute: "get_attribute",
	KindSvcChanged:   "svc_changed",
	KindNotify:       "notify",
	KindIndicate:     "indicate",
	KindDiscover:     "discover",
	KindRead:         "read",
	KindWrite:        "write",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ErrDuplicatePending is returned by Issue when the (connection, kind) key
// already has a request outstanding. Protocol misuse: callers must serialize
// per key.
var ErrDuplicatePending = errors.New("duplicate pending request")

// Completion receives the outcome of a request: the controller status, the
// decoded response payload, and the caller's opaque token passed through
// Issue unchanged. Exactly one terminal invocation happens per request.
type Completion func(status nble.Status, payload any, token any)

type key uint32

func makeKey(conn uint16, kind Kind) key {
	return key(uint32(conn)<<8 | uint32(kind))
}

const (
	stateOutstanding uint32 = iota
	stateResolved
)

// Pending is one in-flight request.
type Pending struct {
	conn     uint16
	kind     Kind
	token    any
	complete Completion
	timer    *time.Timer
	state    uint32 // atomic; exactly one of complete/timeout wins
}

// Conn returns the connection handle the request was issued on.
func (p *Pending) Conn() uint16 { return p.conn }

// Kind returns the operation kind of the request.
func (p *Pending) Kind() Kind { return p.kind }

// Metrics counts correlator anomalies and throughput. All fields are
// updated atomically.
type Metrics struct {
	Issued     int64
	Completed  int64
	Duplicates int64
	Unmatched  int64
	Timeouts   int64
}

// Correlator owns the pending-request table. Safe for concurrent use: the
// transport may deliver completions from an interrupt-like context while the
// host issues new requests.
type Correlator struct {
	pending *hashmap.Map[uint32, *Pending]
	timeout time.Duration
	logger  *logrus.Logger
	metrics Metrics
}

// New creates a correlator. timeout bounds each request; zero disables the
// local timer (the per-connection GATT timeout event still applies).
func New(timeout time.Duration, logger *logrus.Logger) *Correlator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Correlator{
		pending: hashmap.New[uint32, *Pending](),
		timeout: timeout,
		logger:  logger,
	}
}

// Issue registers intent to send a request on (conn, kind). It fails with
// ErrDuplicatePending while another request holds the key.
func (c *Correlator) Issue(conn uint16, kind Kind, token any, complete Completion) (*Pending, error) {
	p := &Pending{
		conn:     conn,
		kind:     kind,
		token:    token,
		complete: complete,
	}

	k := makeKey(conn, kind)
	if !c.pending.Insert(uint32(k), p) {
		atomic.AddInt64(&c.metrics.Duplicates, 1)
		return nil, fmt.Errorf("%w: conn=0x%04x op=%s", ErrDuplicatePending, conn, kind)
	}

	if c.timeout > 0 {
		p.timer = time.AfterFunc(c.timeout, func() {
			c.expire(p)
		})
	}

	atomic.AddInt64(&c.metrics.Issued, 1)
	return p, nil
}

// Complete resolves the pending request on (conn, kind) and invokes its
// completion callback. An unmatched completion is a transport desync: it is
// logged and counted, never fatal. Returns whether a request was resolved.
func (c *Correlator) Complete(conn uint16, kind Kind, status nble.Status, payload any) bool {
	k := makeKey(conn, kind)
	p, ok := c.pending.Get(uint32(k))
	if !ok || !p.claim() {
		c.unmatched(conn, kind)
		return false
	}

	c.pending.Del(uint32(k))
	atomic.AddInt64(&c.metrics.Completed, 1)
	p.complete(status, payload, p.token)
	return true
}

// Advance delivers an intermediate batch to the pending request on
// (conn, kind) without resolving it, restarting its timer. Used by
// multi-batch discovery. Returns whether a request was found.
func (c *Correlator) Advance(conn uint16, kind Kind, status nble.Status, payload any) bool {
	k := makeKey(conn, kind)
	p, ok := c.pending.Get(uint32(k))
	if !ok || atomic.LoadUint32(&p.state) != stateOutstanding {
		c.unmatched(conn, kind)
		return false
	}

	if p.timer != nil {
		p.timer.Reset(c.timeout)
	}
	p.complete(status, payload, p.token)
	return true
}

// Cancel withdraws a pending request without invoking its completion. Used
// when the transport rejects the encoded request after the key was claimed.
// Returns false if the request already resolved.
func (c *Correlator) Cancel(p *Pending) bool {
	if !p.claim() {
		return false
	}
	c.pending.Del(uint32(makeKey(p.conn, p.kind)))
	return true
}

// FailConn fails every pending request on the given connection with status,
// leaving other connections untouched. Returns the number of requests
// failed. This is how the per-connection GATT timeout event maps onto
// individual requests.
func (c *Correlator) FailConn(conn uint16, status nble.Status) int {
	var victims []*Pending
	c.pending.Range(func(_ uint32, p *Pending) bool {
		if p.conn == conn {
			victims = append(victims, p)
		}
		return true
	})

	failed := 0
	for _, p := range victims {
		if !p.claim() {
			continue
		}
		c.pending.Del(uint32(makeKey(p.conn, p.kind)))
		atomic.AddInt64(&c.metrics.Timeouts, 1)
		p.complete(status, nil, p.token)
		failed++
	}

	if failed > 0 {
		c.logger.WithFields(logrus.Fields{
			"conn":   fmt.Sprintf("0x%04x", conn),
			"failed": failed,
			"status": status,
		}).Warn("Failed all pending requests on connection")
	}
	return failed
}

// PendingCount returns the number of outstanding requests.
func (c *Correlator) PendingCount() int {
	return c.pending.Len()
}

// GetMetrics returns a snapshot of the counters.
func (c *Correlator) GetMetrics() Metrics {
	return Metrics{
		Issued:     atomic.LoadInt64(&c.metrics.Issued),
		Completed:  atomic.LoadInt64(&c.metrics.Completed),
		Duplicates: atomic.LoadInt64(&c.metrics.Duplicates),
		Unmatched:  atomic.LoadInt64(&c.metrics.Unmatched),
		Timeouts:   atomic.LoadInt64(&c.metrics.Timeouts),
	}
}

// claim marks the request resolved; only the first caller wins.
func (p *Pending) claim() bool {
	if !atomic.CompareAndSwapUint32(&p.state, stateOutstanding, stateResolved) {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}

// expire is the local request-timeout path.
func (c *Correlator) expire(p *Pending) {
	if !p.claim() {
		return
	}
	c.pending.Del(uint32(makeKey(p.conn, p.kind)))
	atomic.AddInt64(&c.metrics.Timeouts, 1)
	c.logger.WithFields(logrus.Fields{
		"conn": fmt.Sprintf("0x%04x", p.conn),
		"op":   p.kind.String(),
	}).Warn("Request timed out")
	p.complete(nble.StatusTimeout, nil, p.token)
}

func (c *Correlator) unmatched(conn uint16, kind Kind) {
	atomic.AddInt64(&c.metrics.Unmatched, 1)
	c.logger.WithFields(logrus.Fields{
		"conn": fmt.Sprintf("0x%04x", conn),
		"op":   kind.String(),
	}).Warn("Unmatched response dropped")
}
