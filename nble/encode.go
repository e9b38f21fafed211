package nble

import "fmt"

// Requests (host to controller).
//
// Length-field widths deliberately differ per operation, mirroring the
// controller interface: the register attribute buffer and notification data
// carry 16-bit lengths, while indication, write, and attribute-value data
// carry 8-bit lengths.

// EncodeRegisterReq encodes a service registration. attrTable is the
// serialized attribute stream produced by EncodeAttrTable.
func EncodeRegisterReq(p RegisterParams, attrTable []byte) (Frame, error) {
	if len(attrTable) > 0xFFFF {
		return Frame{}, fmt.Errorf("%w: attribute table %d bytes", ErrPayloadTooLarge, len(attrTable))
	}
	b := []byte{p.ServiceIdx, p.AttrCount}
	b = putU16(b, uint16(len(attrTable)))
	b = append(b, attrTable...)
	return Frame{ID: MsgIDGattsRegisterReq, Payload: b}, nil
}

// EncodeSetAttributeReq encodes a set-attribute-value request. Data is
// limited to 255 bytes by the 8-bit wire length.
func EncodeSetAttributeReq(p SetAttributeParams, data []byte) (Frame, error) {
	if len(data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: attribute value %d bytes", ErrPayloadTooLarge, len(data))
	}
	b := putU16(nil, p.ValueHandle)
	b = putU16(b, p.Offset)
	b = append(b, byte(len(data)))
	b = append(b, data...)
	return Frame{ID: MsgIDGattsSetAttributeReq, Payload: b}, nil
}

// EncodeGetAttributeReq encodes a get-attribute-value request.
func EncodeGetAttributeReq(p GetAttributeParams) Frame {
	return Frame{ID: MsgIDGattsGetAttributeReq, Payload: putU16(nil, p.ValueHandle)}
}

// EncodeSvcChangedReq encodes a Service Changed indication request.
func EncodeSvcChangedReq(p SvcChangedParams) Frame {
	b := putU16(nil, p.ConnHandle)
	b = putU16(b, p.Range.Start)
	b = putU16(b, p.Range.End)
	return Frame{ID: MsgIDGattsSvcChangedReq, Payload: b}
}

// EncodeSendNotifReq encodes a send-notification request. The data length
// field is 16 bits; zero-length data means "send the stored value".
func EncodeSendNotifReq(p NotifIndParams, data []byte) (Frame, error) {
	if len(data) > 0xFFFF {
		return Frame{}, fmt.Errorf("%w: notification %d bytes", ErrPayloadTooLarge, len(data))
	}
	b := encodeNotifIndParams(p)
	b = putU16(b, uint16(len(data)))
	b = append(b, data...)
	return Frame{ID: MsgIDGattsSendNotifReq, Payload: b}, nil
}

// EncodeSendIndReq encodes a send-indication request. Unlike notifications
// the data length field is 8 bits; zero-length data means "send the stored
// value".
func EncodeSendIndReq(p NotifIndParams, data []byte) (Frame, error) {
	if len(data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: indication %d bytes", ErrPayloadTooLarge, len(data))
	}
	b := encodeNotifIndParams(p)
	b = append(b, byte(len(data)))
	b = append(b, data...)
	return Frame{ID: MsgIDGattsSendIndReq, Payload: b}, nil
}

func encodeNotifIndParams(p NotifIndParams) []byte {
	b := putU16(nil, p.ConnHandle)
	b = putU16(b, p.ValueHandle)
	b = putU16(b, p.Offset)
	return b
}

// EncodeDiscoverReq encodes a ranged discovery request.
func EncodeDiscoverReq(p DiscoverParams) (Frame, error) {
	b := putU16(nil, p.ConnHandle)
	b = append(b, byte(p.Type))
	b = putU16(b, p.Range.Start)
	b = putU16(b, p.Range.End)
	b, err := appendUUID(b, p.UUID)
	if err != nil {
		return Frame{}, err
	}
	return Frame{ID: MsgIDGattcDiscoverReq, Payload: b}, nil
}

// EncodeReadReq encodes a remote characteristic read request.
func EncodeReadReq(p ReadParams) Frame {
	b := putU16(nil, p.ConnHandle)
	b = putU16(b, p.CharHandle)
	b = putU16(b, p.Offset)
	return Frame{ID: MsgIDGattcReadReq, Payload: b}
}

// EncodeWriteReq encodes a remote characteristic write request. Data is
// limited to 255 bytes by the 8-bit wire length; the controller fragments
// values larger than the ATT MTU itself.
func EncodeWriteReq(p WriteParams, data []byte) (Frame, error) {
	if len(data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: write %d bytes", ErrPayloadTooLarge, len(data))
	}
	b := putU16(nil, p.ConnHandle)
	b = putU16(b, p.CharHandle)
	b = putU16(b, p.Offset)
	var withResp byte
	if p.WithResp {
		withResp = 1
	}
	b = append(b, withResp, byte(len(data)))
	b = append(b, data...)
	return Frame{ID: MsgIDGattcWriteReq, Payload: b}, nil
}

// Responses and events (controller to host). The host only decodes these;
// the encoders exist for the controller emulator and loopback tests.

// EncodeRegisterRsp encodes a registration response.
func EncodeRegisterRsp(r RegisterRsp) (Frame, error) {
	if len(r.Handles) > 0xFF {
		return Frame{}, fmt.Errorf("%w: %d handle entries", ErrPayloadTooLarge, len(r.Handles))
	}
	b := putI32(nil, int32(r.Status))
	b = append(b, r.Params.ServiceIdx, r.Params.AttrCount, byte(len(r.Handles)))
	for _, h := range r.Handles {
		b = putU16(b, h)
	}
	return Frame{ID: MsgIDGattsRegisterRsp, Payload: b}, nil
}

// EncodeSetAttributeRsp encodes a set-attribute-value response.
func EncodeSetAttributeRsp(r AttributeRsp) Frame {
	b := putI32(nil, int32(r.Status))
	b = putU16(b, r.ValueHandle)
	return Frame{ID: MsgIDGattsSetAttributeRsp, Payload: b}
}

// EncodeGetAttributeRsp encodes a get-attribute-value response.
func EncodeGetAttributeRsp(r AttributeRsp) (Frame, error) {
	if len(r.Data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: attribute value %d bytes", ErrPayloadTooLarge, len(r.Data))
	}
	b := putI32(nil, int32(r.Status))
	b = putU16(b, r.ValueHandle)
	b = append(b, byte(len(r.Data)))
	b = append(b, r.Data...)
	return Frame{ID: MsgIDGattsGetAttributeRsp, Payload: b}, nil
}

// EncodeSvcChangedRsp encodes a Service Changed response.
func EncodeSvcChangedRsp(r SvcChangedRsp) Frame {
	return Frame{ID: MsgIDGattsSvcChangedRsp, Payload: putI32(nil, int32(r.Status))}
}

// EncodeNotifIndRsp encodes a notification or indication response; the frame
// ID is taken from r.MsgID.
func EncodeNotifIndRsp(r NotifIndRsp) (Frame, error) {
	if r.MsgID != MsgIDGattsSendNotifRsp && r.MsgID != MsgIDGattsSendIndRsp {
		return Frame{}, fmt.Errorf("invalid notif/ind response id %s", r.MsgID)
	}
	b := putI32(nil, int32(r.Status))
	b = putU16(b, r.ConnHandle)
	b = putU16(b, r.ValueHandle)
	return Frame{ID: r.MsgID, Payload: b}, nil
}

// EncodeDiscoverRsp encodes one discovery batch.
func EncodeDiscoverRsp(r DiscoverRsp) (Frame, error) {
	if len(r.Attrs) > 0xFF {
		return Frame{}, fmt.Errorf("%w: %d discovered attributes", ErrPayloadTooLarge, len(r.Attrs))
	}
	b := putU16(nil, r.ConnHandle)
	b = putI32(b, int32(r.Status))
	b = append(b, byte(len(r.Attrs)))
	var err error
	for _, attr := range r.Attrs {
		b, err = appendDiscoveredAttr(b, attr)
		if err != nil {
			return Frame{}, err
		}
	}
	return Frame{ID: MsgIDGattcDiscoverRsp, Payload: b}, nil
}

func appendDiscoveredAttr(b []byte, attr DiscoveredAttr) ([]byte, error) {
	var err error
	switch a := attr.(type) {
	case PrimaryService:
		b = append(b, byte(DiscoverPrimary))
		b = putU16(b, a.Handle)
		b = putU16(b, a.Range.Start)
		b = putU16(b, a.Range.End)
		b, err = appendUUID(b, a.UUID)
	case IncludedService:
		b = append(b, byte(DiscoverInclude))
		b = putU16(b, a.InclHandle)
		b = putU16(b, a.Range.Start)
		b = putU16(b, a.Range.End)
		b, err = appendUUID(b, a.UUID)
	case Characteristic:
		b = append(b, byte(DiscoverCharacteristic))
		b = append(b, a.Properties)
		b = putU16(b, a.DeclHandle)
		b = putU16(b, a.ValueHandle)
		b, err = appendUUID(b, a.UUID)
	case Descriptor:
		b = append(b, byte(DiscoverDescriptor))
		b = putU16(b, a.Handle)
		b, err = appendUUID(b, a.UUID)
	default:
		return nil, fmt.Errorf("unknown discovered attribute %T", attr)
	}
	return b, err
}

// EncodeReadRsp encodes a read response; the data length field is 8 bits.
func EncodeReadRsp(r ReadRsp) (Frame, error) {
	if len(r.Data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: read data %d bytes", ErrPayloadTooLarge, len(r.Data))
	}
	b := putU16(nil, r.ConnHandle)
	b = putI32(b, int32(r.Status))
	b = putU16(b, r.Handle)
	b = putU16(b, r.Offset)
	b = append(b, byte(len(r.Data)))
	b = append(b, r.Data...)
	return Frame{ID: MsgIDGattcReadRsp, Payload: b}, nil
}

// EncodeWriteRsp encodes a write response.
func EncodeWriteRsp(r WriteRsp) Frame {
	b := putU16(nil, r.ConnHandle)
	b = putI32(b, int32(r.Status))
	b = putU16(b, r.CharHandle)
	b = putU16(b, r.Len)
	return Frame{ID: MsgIDGattcWriteRsp, Payload: b}
}

// EncodeWriteEvt encodes an incoming-write event.
func EncodeWriteEvt(e WriteEvt) (Frame, error) {
	if len(e.Data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: write event %d bytes", ErrPayloadTooLarge, len(e.Data))
	}
	b := []byte{e.Attr.ServiceIdx, e.Attr.AttrIdx}
	b = putU16(b, e.ConnHandle)
	b = putU16(b, e.AttrHandle)
	b = putU16(b, e.Offset)
	b = append(b, byte(e.Op), byte(len(e.Data)))
	b = append(b, e.Data...)
	return Frame{ID: MsgIDGattsWriteEvt, Payload: b}, nil
}

// EncodeValueEvt encodes a value notification/indication event.
func EncodeValueEvt(e ValueEvt) (Frame, error) {
	if len(e.Data) > 0xFF {
		return Frame{}, fmt.Errorf("%w: value event %d bytes", ErrPayloadTooLarge, len(e.Data))
	}
	b := putU16(nil, e.ConnHandle)
	b = putI32(b, int32(e.Status))
	b = putU16(b, e.Handle)
	b = append(b, byte(e.Type), byte(len(e.Data)))
	b = append(b, e.Data...)
	return Frame{ID: MsgIDGattcValueEvt, Payload: b}, nil
}

// EncodeTimeoutEvt encodes a per-connection GATT timeout event.
func EncodeTimeoutEvt(e TimeoutEvt) Frame {
	b := putU16(nil, e.ConnHandle)
	b = putU16(b, e.Reason)
	return Frame{ID: MsgIDGattcTimeoutEvt, Payload: b}
}
