package gatt

import (
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/Technoculture/zephyr/internal/attidx"
	"github.com/Technoculture/zephyr/internal/attstore"
	"github.com/Technoculture/zephyr/internal/correlator"
	"github.com/Technoculture/zephyr/internal/evqueue"
	"github.com/Technoculture/zephyr/nble"
	"github.com/Technoculture/zephyr/transport"
)

// Options configures a Host.
type Options struct {
	// RequestTimeout bounds each issued request; zero disables the local
	// timer and leaves only the controller's per-connection GATT timeout.
	RequestTimeout time.Duration `default:"30s"`

	// EventQueueDepth bounds the unsolicited-event queue between the
	// transport receive path and the event handlers.
	EventQueueDepth int `default:"128"`

	// TraceDepth is the number of recent frames retained for diagnostics.
	TraceDepth uint32 `default:"64"`
}

// DefaultOptions returns the default host options.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// WriteHandler consumes incoming peer writes.
type WriteHandler func(evt nble.WriteEvt)

// ValueHandler consumes value notifications/indications from peers.
type ValueHandler func(evt nble.ValueEvt)

// TimeoutHandler consumes per-connection GATT timeout events. By the time
// it runs, every pending request on that connection has already been failed
// with a timeout status.
type TimeoutHandler func(evt nble.TimeoutEvt)

// Host is the GATT layer's endpoint of the host<->controller link. All
// operations are asynchronous: they enqueue a request and deliver the
// outcome through a completion callback, exactly once.
//
// The Host is safe for concurrent use. Responses may be delivered from the
// transport's receive context while other goroutines issue requests.
type Host struct {
	tr     transport.Transport
	corr   *correlator.Correlator
	index  *attidx.Table
	values *attstore.Store
	logger *logrus.Logger

	events *evqueue.Queue[any]
	trace  *frameTrace

	handlerMu sync.RWMutex
	onWrite   WriteHandler
	onValue   ValueHandler
	onTimeout TimeoutHandler

	closeOnce sync.Once
	closed    chan struct{}
	pumpDone  chan struct{}
}

// NewHost binds a host to a transport and starts its event pump. The host
// installs itself as the transport's receiver.
func NewHost(tr transport.Transport, opts *Options, logger *logrus.Logger) *Host {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.EventQueueDepth <= 0 {
		opts.EventQueueDepth = DefaultOptions().EventQueueDepth
	}
	if logger == nil {
		logger = logrus.New()
	}

	h := &Host{
		tr:       tr,
		corr:     correlator.New(opts.RequestTimeout, logger),
		index:    attidx.New(),
		values:   attstore.New(),
		logger:   logger,
		events:   evqueue.New[any](opts.EventQueueDepth),
		trace:    newFrameTrace(opts.TraceDepth),
		closed:   make(chan struct{}),
		pumpDone: make(chan struct{}),
	}

	tr.SetReceiver(h.receive)
	go h.pumpEvents()
	return h
}

// Close shuts the host down: the transport is closed, the event pump
// drained, and any still-pending requests are left to their timers.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)
		err = h.tr.Close()
		h.events.Close()
		<-h.pumpDone
	})
	return err
}

// SetWriteHandler installs the handler for incoming peer writes.
func (h *Host) SetWriteHandler(fn WriteHandler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.onWrite = fn
}

// SetValueHandler installs the handler for peer value notifications and
// indications.
func (h *Host) SetValueHandler(fn ValueHandler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.onValue = fn
}

// SetTimeoutHandler installs the handler for per-connection GATT timeouts.
func (h *Host) SetTimeoutHandler(fn TimeoutHandler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.onTimeout = fn
}

// ResolveHandle maps a local (service index, attribute index) pair to the
// controller-assigned attribute handle from that service's registration.
func (h *Host) ResolveHandle(svcIdx, attrIdx uint8) (uint16, error) {
	return h.index.Resolve(svcIdx, attrIdx)
}

// ServiceRange returns the handle range covered by a registered service.
func (h *Host) ServiceRange(svcIdx uint8) (nble.HandleRange, error) {
	return h.index.ServiceRange(svcIdx)
}

// PendingCount reports the number of in-flight requests.
func (h *Host) PendingCount() int {
	return h.corr.PendingCount()
}

// Metrics returns a snapshot of the correlator's counters.
func (h *Host) Metrics() correlator.Metrics {
	return h.corr.GetMetrics()
}

// send transmits an already-encoded request; on transport failure the
// pending entry is withdrawn so the key frees up immediately.
func (h *Host) send(frame nble.Frame, p *correlator.Pending) error {
	select {
	case <-h.closed:
		h.corr.Cancel(p)
		return ErrClosed
	default:
	}

	h.trace.record(DirTX, frame)
	if err := h.tr.Send(frame); err != nil {
		h.corr.Cancel(p)
		return err
	}
	return nil
}

// receive is the transport's inbound entry point. Responses resolve their
// pending request synchronously; unsolicited events are queued so this path
// never blocks, even when called from an interrupt-like context.
func (h *Host) receive(frame nble.Frame) {
	h.trace.record(DirRX, frame)

	var err error
	switch frame.ID {
	case nble.MsgIDGattsRegisterRsp:
		var rsp nble.RegisterRsp
		if rsp, err = nble.DecodeRegisterRsp(frame.Payload); err == nil {
			h.OnRegisterRsp(rsp)
		}
	case nble.MsgIDGattsSetAttributeRsp:
		var rsp nble.AttributeRsp
		if rsp, err = nble.DecodeSetAttributeRsp(frame.Payload); err == nil {
			h.OnSetAttributeRsp(rsp)
		}
	case nble.MsgIDGattsGetAttributeRsp:
		var rsp nble.AttributeRsp
		if rsp, err = nble.DecodeGetAttributeRsp(frame.Payload); err == nil {
			h.OnGetAttributeRsp(rsp)
		}
	case nble.MsgIDGattsSvcChangedRsp:
		var rsp nble.SvcChangedRsp
		if rsp, err = nble.DecodeSvcChangedRsp(frame.Payload); err == nil {
			h.OnSvcChangedRsp(rsp)
		}
	case nble.MsgIDGattsSendNotifRsp, nble.MsgIDGattsSendIndRsp:
		var rsp nble.NotifIndRsp
		if rsp, err = nble.DecodeNotifIndRsp(frame.ID, frame.Payload); err == nil {
			h.OnNotifIndRsp(rsp)
		}
	case nble.MsgIDGattcDiscoverRsp:
		var rsp nble.DiscoverRsp
		if rsp, err = nble.DecodeDiscoverRsp(frame.Payload); err == nil {
			h.OnDiscoverRsp(rsp)
		}
	case nble.MsgIDGattcReadRsp:
		var rsp nble.ReadRsp
		if rsp, err = nble.DecodeReadRsp(frame.Payload); err == nil {
			h.OnReadRsp(rsp)
		}
	case nble.MsgIDGattcWriteRsp:
		var rsp nble.WriteRsp
		if rsp, err = nble.DecodeWriteRsp(frame.Payload); err == nil {
			h.OnWriteRsp(rsp)
		}
	case nble.MsgIDGattsWriteEvt:
		var evt nble.WriteEvt
		if evt, err = nble.DecodeWriteEvt(frame.Payload); err == nil {
			h.OnWriteEvt(evt)
		}
	case nble.MsgIDGattcValueEvt:
		var evt nble.ValueEvt
		if evt, err = nble.DecodeValueEvt(frame.Payload); err == nil {
			h.OnValueEvt(evt)
		}
	case nble.MsgIDGattcTimeoutEvt:
		var evt nble.TimeoutEvt
		if evt, err = nble.DecodeTimeoutEvt(frame.Payload); err == nil {
			h.OnTimeoutEvt(evt)
		}
	default:
		h.logger.WithField("msg", frame.ID.String()).Warn("Unexpected message dropped")
		return
	}

	if err != nil {
		h.logger.WithError(err).WithField("msg", frame.ID.String()).Warn("Undecodable frame dropped")
	}
}

// OnWriteEvt queues an incoming-write event for the write handler.
func (h *Host) OnWriteEvt(evt nble.WriteEvt) {
	if h.events.Push(evt) {
		h.logger.Warn("Event queue overflow, oldest event dropped")
	}
}

// OnValueEvt queues a value notification/indication event.
func (h *Host) OnValueEvt(evt nble.ValueEvt) {
	if h.events.Push(evt) {
		h.logger.Warn("Event queue overflow, oldest event dropped")
	}
}

// OnTimeoutEvt fails every pending request on the event's connection with a
// timeout status, then queues the event for the timeout handler. Requests
// on other connections are untouched.
func (h *Host) OnTimeoutEvt(evt nble.TimeoutEvt) {
	h.corr.FailConn(evt.ConnHandle, nble.StatusTimeout)
	if h.events.Push(evt) {
		h.logger.Warn("Event queue overflow, oldest event dropped")
	}
}

// pumpEvents drains the event queue on its own goroutine so handlers run
// outside the transport receive context.
func (h *Host) pumpEvents() {
	defer close(h.pumpDone)

	for ev := range h.events.C() {
		h.handlerMu.RLock()
		onWrite, onValue, onTimeout := h.onWrite, h.onValue, h.onTimeout
		h.handlerMu.RUnlock()

		switch evt := ev.(type) {
		case nble.WriteEvt:
			if onWrite != nil {
				onWrite(evt)
			}
		case nble.ValueEvt:
			if onValue != nil {
				onValue(evt)
			}
		case nble.TimeoutEvt:
			if onTimeout != nil {
				onTimeout(evt)
			}
		}
	}
}
