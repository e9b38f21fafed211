// Package nble declares the message contract spoken between the GATT host
// stack and the BLE controller core process: one message ID per request,
// response, and event, with fixed little-endian payload layouts.
//
// The controller offers no sequence numbers, so the contract itself carries
// no correlation state; pairing responses with requests is the job of the
// gatt package on top of this one.
package nble

import "fmt"

// MsgID identifies a host<->controller message.
type MsgID uint8

const (
	MsgIDInvalid MsgID = iota

	MsgIDGattsRegisterReq
	MsgIDGattsRegisterRsp
	MsgIDGattsSetAttributeReq
	MsgIDGattsSetAttributeRsp
	MsgIDGattsGetAttributeReq
	MsgIDGattsGetAttributeRsp
	MsgIDGattsSvcChangedReq
	MsgIDGattsSvcChangedRsp
	MsgIDGattsSendNotifReq
	MsgIDGattsSendIndReq
	MsgIDGattsSendNotifRsp
	MsgIDGattsSendIndRsp
	MsgIDGattsWriteEvt

	MsgIDGattcDiscoverReq
	MsgIDGattcDiscoverRsp
	MsgIDGattcReadReq
	MsgIDGattcReadRsp
	MsgIDGattcWriteReq
	MsgIDGattcWriteRsp
	MsgIDGattcValueEvt
	MsgIDGattcTimeoutEvt
)

var msgIDNames = map[MsgID]string{
	MsgIDGattsRegisterReq:     "GATTS_REGISTER_REQ",
	MsgIDGattsRegisterRsp:     "GATTS_REGISTER_RSP",
	MsgIDGattsSetAttributeReq: "GATTS_SET_ATTRIBUTE_REQ",
	MsgIDGattsSetAttributeRsp: "GATTS_SET_ATTRIBUTE_RSP",
	MsgIDGattsGetAttributeReq: "GATTS_GET_ATTRIBUTE_REQ",
	MsgIDGattsGetAttributeRsp: "GATTS_GET_ATTRIBUTE_RSP",
	MsgIDGattsSvcChangedReq:   "GATTS_SVC_CHANGED_REQ",
	MsgIDGattsSvcChangedRsp:   "GATTS_SVC_CHANGED_RSP",
	MsgIDGattsSendNotifReq:    "GATTS_SEND_NOTIF_REQ",
	MsgIDGattsSendIndReq:      "GATTS_SEND_IND_REQ",
	MsgIDGattsSendNotifRsp:    "GATTS_SEND_NOTIF_RSP",
	MsgIDGattsSendIndRsp:      "GATTS_SEND_IND_RSP",
	MsgIDGattsWriteEvt:        "GATTS_WRITE_EVT",
	MsgIDGattcDiscoverReq:     "GATTC_DISCOVER_REQ",
	MsgIDGattcDiscoverRsp:     "GATTC_DISCOVER_RSP",
	MsgIDGattcReadReq:         "GATTC_READ_REQ",
	MsgIDGattcReadRsp:         "GATTC_READ_RSP",
	MsgIDGattcWriteReq:        "GATTC_WRITE_REQ",
	MsgIDGattcWriteRsp:        "GATTC_WRITE_RSP",
	MsgIDGattcValueEvt:        "GATTC_VALUE_EVT",
	MsgIDGattcTimeoutEvt:      "GATTC_TIMEOUT_EVT",
}

// String returns the wire name of the message ID.
func (id MsgID) String() string {
	if name, ok := msgIDNames[id]; ok {
		return name
	}
	return fmt.Sprintf("MSG_ID(%d)", uint8(id))
}

// Frame is one message on the wire: an ID plus its encoded payload.
type Frame struct {
	ID      MsgID
	Payload []byte
}

// Status is the controller-reported operation status. Zero is success;
// positive values are controller/ATT error codes passed through opaquely.
// Host-synthesized statuses are negative so they can never collide with a
// controller code.
type Status int32

const (
	StatusSuccess Status = 0

	// StatusTimeout is synthesized by the host when a pending request is
	// failed by the per-connection GATT timeout or the local request bound.
	StatusTimeout Status = -1

	// StatusArityMismatch is synthesized when a register response carries a
	// different number of handle entries than attributes were submitted.
	StatusArityMismatch Status = -2
)

// OK reports whether the status is a success.
func (s Status) OK() bool { return s == StatusSuccess }

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusArityMismatch:
		return "arity mismatch"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// ConnBroadcast is the sentinel connection handle meaning "no connection /
// value change broadcast".
const ConnBroadcast uint16 = 0xFFFF

// IndType distinguishes notification from indication in value events.
type IndType uint8

const (
	IndTypeNone IndType = iota
	IndTypeNotification
	IndTypeIndication
)

// WriteOp is the ATT write operation reported in a write event.
type WriteOp uint8

const (
	WriteOpNone WriteOp = iota
	// WriteOpRequest is a Write Request; a write response is expected.
	WriteOpRequest
	// WriteOpCommand is a Write Command; no response is sent.
	WriteOpCommand
	// WriteOpSignedCommand is a signed Write Command; no response is sent.
	WriteOpSignedCommand
	// WriteOpPrepare is a Prepare Write Request.
	WriteOpPrepare
	// WriteOpExecCancel cancels and clears the prepared write queue.
	WriteOpExecCancel
	// WriteOpExecImmediate executes the prepared write queue immediately.
	WriteOpExecImmediate
)

func (op WriteOp) String() string {
	switch op {
	case WriteOpNone:
		return "none"
	case WriteOpRequest:
		return "write_req"
	case WriteOpCommand:
		return "write_cmd"
	case WriteOpSignedCommand:
		return "signed_write_cmd"
	case WriteOpPrepare:
		return "prepare_write"
	case WriteOpExecCancel:
		return "exec_cancel"
	case WriteOpExecImmediate:
		return "exec_write"
	default:
		return fmt.Sprintf("write_op(%d)", uint8(op))
	}
}

// DiscoverType selects the discovery procedure.
type DiscoverType uint8

const (
	DiscoverPrimary DiscoverType = iota
	DiscoverInclude
	DiscoverCharacteristic
	DiscoverDescriptor
)

func (t DiscoverType) String() string {
	switch t {
	case DiscoverPrimary:
		return "primary"
	case DiscoverInclude:
		return "include"
	case DiscoverCharacteristic:
		return "characteristic"
	case DiscoverDescriptor:
		return "descriptor"
	default:
		return fmt.Sprintf("discover(%d)", uint8(t))
	}
}
