// Package emulator implements a stand-in controller for the split-stack
// GATT wire protocol. It answers host requests the way the real firmware
// would: handles are assigned sequentially at registration, attribute
// values are stored and served back, and discovery walks the registered
// tables. A Scenario injects faults for exercising the host's error paths.
package emulator

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Technoculture/zephyr/nble"
	"github.com/Technoculture/zephyr/transport"
)

// Declaration UUIDs used to classify registered attributes during discovery.
const (
	uuidPrimaryService = "2800"
	uuidInclude        = "2802"
	uuidCharacteristic = "2803"
)

type service struct {
	idx     uint8
	attrs   []nble.Attribute
	handles []uint16
}

// Controller emulates the controller side of the link. It installs itself
// as the transport's receiver; every inbound request is answered
// synchronously unless the scenario says otherwise.
type Controller struct {
	tr       transport.Transport
	scenario *Scenario
	logger   *logrus.Logger

	mu         sync.Mutex
	nextHandle uint16
	services   []service
	values     map[uint16][]byte
}

// New binds an emulated controller to a transport.
func New(tr transport.Transport, sc *Scenario, logger *logrus.Logger) *Controller {
	if sc == nil {
		sc = DefaultScenario()
	}
	if logger == nil {
		logger = logrus.New()
	}
	c := &Controller{
		tr:         tr,
		scenario:   sc,
		logger:     logger,
		nextHandle: sc.HandleBase,
		values:     make(map[uint16][]byte),
	}
	tr.SetReceiver(c.handle)
	return c
}

// PushWrite injects a peer write event toward the host.
func (c *Controller) PushWrite(evt nble.WriteEvt) error {
	frame, err := nble.EncodeWriteEvt(evt)
	if err != nil {
		return err
	}
	return c.tr.Send(frame)
}

// PushValue injects a peer notification/indication event toward the host.
func (c *Controller) PushValue(evt nble.ValueEvt) error {
	frame, err := nble.EncodeValueEvt(evt)
	if err != nil {
		return err
	}
	return c.tr.Send(frame)
}

// PushTimeout injects a per-connection GATT timeout event toward the host.
func (c *Controller) PushTimeout(evt nble.TimeoutEvt) error {
	return c.tr.Send(nble.EncodeTimeoutEvt(evt))
}

// Value returns the stored value for a handle, if any.
func (c *Controller) Value(handle uint16) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[handle]
	return v, ok
}

func (c *Controller) reply(frame nble.Frame, err error) {
	if err != nil {
		c.logger.WithError(err).Error("Emulator failed to encode response")
		return
	}
	if err := c.tr.Send(frame); err != nil {
		c.logger.WithError(err).Error("Emulator failed to send response")
	}
}

func (c *Controller) handle(frame nble.Frame) {
	op := opName(frame.ID)
	if c.scenario.drops(op) {
		c.logger.WithField("msg", frame.ID.String()).Debug("Emulator dropping response per scenario")
		return
	}

	switch frame.ID {
	case nble.MsgIDGattsRegisterReq:
		c.handleRegister(frame.Payload)
	case nble.MsgIDGattsSetAttributeReq:
		c.handleSetAttribute(frame.Payload)
	case nble.MsgIDGattsGetAttributeReq:
		c.handleGetAttribute(frame.Payload)
	case nble.MsgIDGattsSvcChangedReq:
		c.handleSvcChanged(frame.Payload)
	case nble.MsgIDGattsSendNotifReq:
		c.handleNotifInd(frame.Payload, false)
	case nble.MsgIDGattsSendIndReq:
		c.handleNotifInd(frame.Payload, true)
	case nble.MsgIDGattcDiscoverReq:
		c.handleDiscover(frame.Payload)
	case nble.MsgIDGattcReadReq:
		c.handleRead(frame.Payload)
	case nble.MsgIDGattcWriteReq:
		c.handleWrite(frame.Payload)
	default:
		c.logger.WithField("msg", frame.ID.String()).Warn("Emulator ignoring unexpected message")
	}
}

func (c *Controller) handleRegister(payload []byte) {
	par, table, err := nble.DecodeRegisterReq(payload)
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad register request")
		return
	}
	attrs, err := nble.DecodeAttrTable(table, int(par.AttrCount))
	if err != nil {
		c.reply(nble.EncodeRegisterRsp(nble.RegisterRsp{
			Status: c.scenario.status("register", nble.Status(1)),
			Params: par,
		}))
		return
	}

	// An empty service has no handles to assign and would poison discovery.
	if len(attrs) == 0 {
		c.reply(nble.EncodeRegisterRsp(nble.RegisterRsp{
			Status: c.scenario.status("register", nble.Status(1)),
			Params: par,
		}))
		return
	}

	if status := c.scenario.status("register", 0); !status.OK() {
		c.reply(nble.EncodeRegisterRsp(nble.RegisterRsp{Status: status, Params: par}))
		return
	}

	c.mu.Lock()
	handles := make([]uint16, len(attrs))
	for i, a := range attrs {
		handles[i] = c.nextHandle
		c.nextHandle++
		if len(a.Value) > 0 {
			c.values[handles[i]] = append([]byte(nil), a.Value...)
		}
	}
	c.services = append(c.services, service{idx: par.ServiceIdx, attrs: attrs, handles: handles})
	c.mu.Unlock()

	// An arity fault answers with the wrong number of handles.
	reported := handles
	if d := c.scenario.ArityDelta; d != 0 {
		n := len(handles) + d
		if n < 0 {
			n = 0
		}
		reported = make([]uint16, n)
		copy(reported, handles)
	}

	c.reply(nble.EncodeRegisterRsp(nble.RegisterRsp{
		Status:  0,
		Params:  par,
		Handles: reported,
	}))
}

func (c *Controller) handleSetAttribute(payload []byte) {
	par, data, err := nble.DecodeSetAttributeReq(payload)
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad set-attribute request")
		return
	}
	status := c.scenario.status("set_attribute", 0)
	if status.OK() {
		c.mu.Lock()
		c.values[par.ValueHandle] = append([]byte(nil), data...)
		c.mu.Unlock()
	}
	c.reply(nble.EncodeSetAttributeRsp(nble.AttributeRsp{
		Status:      status,
		ValueHandle: par.ValueHandle,
	}), nil)
}

func (c *Controller) handleGetAttribute(payload []byte) {
	par, err := nble.DecodeGetAttributeReq(payload)
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad get-attribute request")
		return
	}
	rsp := nble.AttributeRsp{
		Status:      c.scenario.status("get_attribute", 0),
		ValueHandle: par.ValueHandle,
	}
	if rsp.Status.OK() {
		c.mu.Lock()
		data, ok := c.values[par.ValueHandle]
		c.mu.Unlock()
		if !ok {
			rsp.Status = nble.Status(1)
		} else {
			rsp.Data = data
		}
	}
	c.reply(nble.EncodeGetAttributeRsp(rsp))
}

func (c *Controller) handleSvcChanged(payload []byte) {
	if _, err := nble.DecodeSvcChangedReq(payload); err != nil {
		c.logger.WithError(err).Error("Emulator: bad svc-changed request")
		return
	}
	c.reply(nble.EncodeSvcChangedRsp(nble.SvcChangedRsp{
		Status: c.scenario.status("svc_changed", 0),
	}), nil)
}

func (c *Controller) handleNotifInd(payload []byte, indication bool) {
	var par nble.NotifIndParams
	var err error
	op := "notify"
	id := nble.MsgIDGattsSendNotifRsp
	if indication {
		par, _, err = nble.DecodeSendIndReq(payload)
		op = "indicate"
		id = nble.MsgIDGattsSendIndRsp
	} else {
		par, _, err = nble.DecodeSendNotifReq(payload)
	}
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad notif/ind request")
		return
	}
	c.reply(nble.EncodeNotifIndRsp(nble.NotifIndRsp{
		Status:      c.scenario.status(op, 0),
		ConnHandle:  par.ConnHandle,
		ValueHandle: par.ValueHandle,
		MsgID:       id,
	}))
}

func (c *Controller) handleRead(payload []byte) {
	par, err := nble.DecodeReadReq(payload)
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad read request")
		return
	}
	rsp := nble.ReadRsp{
		ConnHandle: par.ConnHandle,
		Status:     c.scenario.status("read", 0),
		Handle:     par.CharHandle,
		Offset:     par.Offset,
	}
	if rsp.Status.OK() {
		c.mu.Lock()
		data, ok := c.values[par.CharHandle]
		c.mu.Unlock()
		if !ok {
			rsp.Status = nble.Status(1)
		} else if int(par.Offset) > len(data) {
			rsp.Status = nble.Status(0x07) // ATT Invalid Offset
		} else {
			rsp.Data = data[par.Offset:]
		}
	}
	c.reply(nble.EncodeReadRsp(rsp))
}

func (c *Controller) handleWrite(payload []byte) {
	par, data, err := nble.DecodeWriteReq(payload)
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad write request")
		return
	}
	status := c.scenario.status("write", 0)
	if status.OK() {
		c.mu.Lock()
		c.values[par.CharHandle] = append([]byte(nil), data...)
		c.mu.Unlock()
	}
	if !par.WithResp {
		// ATT Write Command: no response on the wire.
		return
	}
	c.reply(nble.EncodeWriteRsp(nble.WriteRsp{
		ConnHandle: par.ConnHandle,
		Status:     status,
		CharHandle: par.CharHandle,
		Len:        uint16(len(data)),
	}), nil)
}

func opName(id nble.MsgID) string {
	switch id {
	case nble.MsgIDGattsRegisterReq:
		return "register"
	case nble.MsgIDGattsSetAttributeReq:
		return "set_attribute"
	case nble.MsgIDGattsGetAttributeReq:
		return "get_attribute"
	case nble.MsgIDGattsSvcChangedReq:
		return "svc_changed"
	case nble.MsgIDGattsSendNotifReq:
		return "notify"
	case nble.MsgIDGattsSendIndReq:
		return "indicate"
	case nble.MsgIDGattcDiscoverReq:
		return "discover"
	case nble.MsgIDGattcReadReq:
		return "read"
	case nble.MsgIDGattcWriteReq:
		return "write"
	}
	return id.String()
}
