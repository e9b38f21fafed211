package gatt

import (
	"fmt"

	"github.com/Technoculture/zephyr/internal/correlator"
	"github.com/Technoculture/zephyr/nble"
)

// RegisterResult is the outcome of a service registration. On success,
// Handles maps each submitted attribute (by submission order) to its
// controller-assigned handle; the same mapping is retained by the host for
// ResolveHandle.
type RegisterResult struct {
	Status  nble.Status
	Handles []uint16
	Token   any
}

// RegisterCallback receives a registration outcome, exactly once.
type RegisterCallback func(res RegisterResult)

// AttributeResult is the outcome of a set- or get-attribute-value
// operation; Data is only populated for gets.
type AttributeResult struct {
	Status      nble.Status
	ValueHandle uint16
	Data        []byte
	Token       any
}

// AttributeCallback receives an attribute-value outcome, exactly once.
type AttributeCallback func(res AttributeResult)

// SvcChangedResult is the outcome of a Service Changed indication.
type SvcChangedResult struct {
	Status nble.Status
	Token  any
}

// SvcChangedCallback receives a Service Changed outcome, exactly once.
type SvcChangedCallback func(res SvcChangedResult)

// NotifIndResult is the outcome of a notification or indication send. For
// indications a success status also reports the peer's acknowledgment; for
// notifications it only reports local submission, since the protocol has no
// notification ack.
type NotifIndResult struct {
	Status      nble.Status
	ConnHandle  uint16
	ValueHandle uint16
	Indication  bool
	Token       any
}

// NotifIndCallback receives a notification/indication outcome, exactly once.
type NotifIndCallback func(res NotifIndResult)

// RegisterService submits one service's attribute table to the controller.
// Registrations are serialized globally: the wire format carries no
// connection or request ID for them, so a second registration before the
// first resolves fails with ErrDuplicatePending.
//
// On a successful response the host builds the (service, attribute) index
// consulted by ResolveHandle and seeds the value store with each
// attribute's initial value. A response whose entry count disagrees with
// the submitted attribute count is reported as StatusArityMismatch.
func (h *Host) RegisterService(svcIdx uint8, attrs []nble.Attribute, token any, cb RegisterCallback) error {
	const op = "register"

	if len(attrs) == 0 || len(attrs) > 0xFF {
		return opErr(op, nble.ConnBroadcast, fmt.Errorf("service %d: %d attributes", svcIdx, len(attrs)))
	}

	// Accept any UUID spelling the registry understands; the table encoder
	// requires normalized form.
	normalized := make([]nble.Attribute, len(attrs))
	copy(normalized, attrs)
	for i := range normalized {
		if u := nble.NormalizeUUID(normalized[i].UUID); u != "" {
			normalized[i].UUID = u
		}
	}
	attrs = normalized

	table, err := nble.EncodeAttrTable(attrs)
	if err != nil {
		return opErr(op, nble.ConnBroadcast, err)
	}
	frame, err := nble.EncodeRegisterReq(nble.RegisterParams{
		ServiceIdx: svcIdx,
		AttrCount:  uint8(len(attrs)),
	}, table)
	if err != nil {
		return opErr(op, nble.ConnBroadcast, err)
	}

	submitted := len(attrs)
	initial := make(map[int][]byte)
	for i, a := range attrs {
		if len(a.Value) > 0 {
			initial[i] = a.Value
		}
	}

	p, err := h.corr.Issue(nble.ConnBroadcast, correlator.KindRegister, token,
		func(status nble.Status, payload any, token any) {
			res := RegisterResult{Status: status, Token: token}
			if rsp, ok := payload.(nble.RegisterRsp); ok && status.OK() {
				if err := h.index.Build(rsp.Params.ServiceIdx, submitted, rsp.Handles); err != nil {
					h.logger.WithError(err).WithField("service_idx", rsp.Params.ServiceIdx).
						Error("Registration response rejected")
					res.Status = nble.StatusArityMismatch
				} else {
					res.Handles = rsp.Handles
					for i, value := range initial {
						h.values.Put(rsp.Handles[i], value)
					}
				}
			}
			if cb != nil {
				cb(res)
			}
		})
	if err != nil {
		return opErr(op, nble.ConnBroadcast, err)
	}
	return opErr(op, nble.ConnBroadcast, h.send(frame, p))
}

// OnRegisterRsp resolves the outstanding registration.
func (h *Host) OnRegisterRsp(rsp nble.RegisterRsp) {
	h.corr.Complete(nble.ConnBroadcast, correlator.KindRegister, rsp.Status, rsp)
}

// SetAttributeValue overwrites a local attribute value on the controller.
// On success the value is recorded as the handle's stored value, making it
// eligible for zero-length notification resends.
func (h *Host) SetAttributeValue(par nble.SetAttributeParams, data []byte, token any, cb AttributeCallback) error {
	const op = "set_attribute"

	frame, err := nble.EncodeSetAttributeReq(par, data)
	if err != nil {
		return opErr(op, nble.ConnBroadcast, err)
	}

	value := make([]byte, len(data))
	copy(value, data)

	p, err := h.corr.Issue(nble.ConnBroadcast, correlator.KindSetAttribute, token,
		func(status nble.Status, payload any, token any) {
			res := AttributeResult{Status: status, ValueHandle: par.ValueHandle, Token: token}
			if rsp, ok := payload.(nble.AttributeRsp); ok {
				res.ValueHandle = rsp.ValueHandle
			}
			if status.OK() {
				h.values.Put(par.ValueHandle, value)
			}
			if cb != nil {
				cb(res)
			}
		})
	if err != nil {
		return opErr(op, nble.ConnBroadcast, err)
	}
	return opErr(op, nble.ConnBroadcast, h.send(frame, p))
}

// OnSetAttributeRsp resolves the outstanding set-attribute request.
func (h *Host) OnSetAttributeRsp(rsp nble.AttributeRsp) {
	h.corr.Complete(nble.ConnBroadcast, correlator.KindSetAttribute, rsp.Status, rsp)
}

// GetAttributeValue fetches a local attribute value from the controller.
func (h *Host) GetAttributeValue(par nble.GetAttributeParams, token any, cb AttributeCallback) error {
	const op = "get_attribute"

	p, err := h.corr.Issue(nble.ConnBroadcast, correlator.KindGetAttribute, token,
		func(status nble.Status, payload any, token any) {
			res := AttributeResult{Status: status, ValueHandle: par.ValueHandle, Token: token}
			if rsp, ok := payload.(nble.AttributeRsp); ok {
				res.ValueHandle = rsp.ValueHandle
				res.Data = rsp.Data
			}
			if cb != nil {
				cb(res)
			}
		})
	if err != nil {
		return opErr(op, nble.ConnBroadcast, err)
	}
	return opErr(op, nble.ConnBroadcast, h.send(nble.EncodeGetAttributeReq(par), p))
}

// OnGetAttributeRsp resolves the outstanding get-attribute request.
func (h *Host) OnGetAttributeRsp(rsp nble.AttributeRsp) {
	h.corr.Complete(nble.ConnBroadcast, correlator.KindGetAttribute, rsp.Status, rsp)
}

// SendServiceChanged sends a Service Changed indication covering the given
// handle range. The response does not echo a connection handle, so these
// are serialized globally like registrations.
func (h *Host) SendServiceChanged(par nble.SvcChangedParams, token any, cb SvcChangedCallback) error {
	const op = "svc_changed"

	if !par.Range.Valid() {
		return opErr(op, par.ConnHandle, fmt.Errorf("invalid handle range %s", par.Range))
	}

	p, err := h.corr.Issue(nble.ConnBroadcast, correlator.KindSvcChanged, token,
		func(status nble.Status, payload any, token any) {
			if cb != nil {
				cb(SvcChangedResult{Status: status, Token: token})
			}
		})
	if err != nil {
		return opErr(op, par.ConnHandle, err)
	}
	return opErr(op, par.ConnHandle, h.send(nble.EncodeSvcChangedReq(par), p))
}

// SendServiceChangedFor is a convenience wrapper scoping the indication to
// a registered service's handle range.
func (h *Host) SendServiceChangedFor(conn uint16, svcIdx uint8, token any, cb SvcChangedCallback) error {
	r, err := h.index.ServiceRange(svcIdx)
	if err != nil {
		return opErr("svc_changed", conn, err)
	}
	return h.SendServiceChanged(nble.SvcChangedParams{ConnHandle: conn, Range: r}, token, cb)
}

// OnSvcChangedRsp resolves the outstanding Service Changed request.
func (h *Host) OnSvcChangedRsp(rsp nble.SvcChangedRsp) {
	h.corr.Complete(nble.ConnBroadcast, correlator.KindSvcChanged, rsp.Status, rsp)
}

// SendNotification pushes a characteristic value to a peer without
// acknowledgment. A zero-length data slice resends the last non-empty
// value written to the handle; if none exists the call fails with
// ErrNoStoredValue. Non-empty data becomes the handle's stored value.
func (h *Host) SendNotification(par nble.NotifIndParams, data []byte, token any, cb NotifIndCallback) error {
	return h.sendNotifInd("send_notification", correlator.KindNotify, false, par, data, token, cb)
}

// SendIndication pushes a characteristic value to a peer with a link-layer
// acknowledgment: a success status in the callback means the peer acked.
// Zero-length data resends the stored value, as with SendNotification.
func (h *Host) SendIndication(par nble.NotifIndParams, data []byte, token any, cb NotifIndCallback) error {
	return h.sendNotifInd("send_indication", correlator.KindIndicate, true, par, data, token, cb)
}

func (h *Host) sendNotifInd(op string, kind correlator.Kind, indication bool,
	par nble.NotifIndParams, data []byte, token any, cb NotifIndCallback) error {

	if len(data) == 0 {
		stored, err := h.values.Get(par.ValueHandle)
		if err != nil {
			return opErr(op, par.ConnHandle, err)
		}
		data = stored
	} else {
		h.values.Put(par.ValueHandle, data)
	}

	var frame nble.Frame
	var err error
	if indication {
		frame, err = nble.EncodeSendIndReq(par, data)
	} else {
		frame, err = nble.EncodeSendNotifReq(par, data)
	}
	if err != nil {
		return opErr(op, par.ConnHandle, err)
	}

	p, err := h.corr.Issue(par.ConnHandle, kind, token,
		func(status nble.Status, payload any, token any) {
			res := NotifIndResult{
				Status:      status,
				ConnHandle:  par.ConnHandle,
				ValueHandle: par.ValueHandle,
				Indication:  indication,
				Token:       token,
			}
			if rsp, ok := payload.(nble.NotifIndRsp); ok {
				res.ConnHandle = rsp.ConnHandle
				res.ValueHandle = rsp.ValueHandle
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

// OnNotifIndRsp resolves the outstanding notification or indication send;
// the response's message ID tells the two apart.
func (h *Host) OnNotifIndRsp(rsp nble.NotifIndRsp) {
	kind := correlator.KindNotify
	if rsp.MsgID == nble.MsgIDGattsSendIndRsp {
		kind = correlator.KindIndicate
	}
	h.corr.Complete(rsp.ConnHandle, kind, rsp.Status, rsp)
}
