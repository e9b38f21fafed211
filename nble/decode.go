package nble

// Decoders for controller-to-host messages, plus request decoders used by
// the controller emulator. Every decoder validates its length fields and
// rejects trailing garbage.

// DecodeRegisterRsp decodes a registration response.
func DecodeRegisterRsp(payload []byte) (RegisterRsp, error) {
	r := reader{b: payload}
	rsp := RegisterRsp{Status: r.status()}
	rsp.Params.ServiceIdx = r.u8("service_idx")
	rsp.Params.AttrCount = r.u8("attr_count")
	count := int(r.u8("entry_count"))
	for i := 0; i < count; i++ {
		rsp.Handles = append(rsp.Handles, r.u16("handle"))
	}
	return rsp, r.done("register rsp")
}

// DecodeSetAttributeRsp decodes a set-attribute-value response.
func DecodeSetAttributeRsp(payload []byte) (AttributeRsp, error) {
	r := reader{b: payload}
	rsp := AttributeRsp{Status: r.status(), ValueHandle: r.u16("value_handle")}
	return rsp, r.done("set attribute rsp")
}

// DecodeGetAttributeRsp decodes a get-attribute-value response.
func DecodeGetAttributeRsp(payload []byte) (AttributeRsp, error) {
	r := reader{b: payload}
	rsp := AttributeRsp{Status: r.status(), ValueHandle: r.u16("value_handle")}
	n := int(r.u8("len"))
	rsp.Data = r.bytes(n, "data")
	return rsp, r.done("get attribute rsp")
}

// DecodeSvcChangedRsp decodes a Service Changed response.
func DecodeSvcChangedRsp(payload []byte) (SvcChangedRsp, error) {
	r := reader{b: payload}
	rsp := SvcChangedRsp{Status: r.status()}
	return rsp, r.done("svc changed rsp")
}

// DecodeNotifIndRsp decodes a notification or indication response; id tells
// the two apart and is recorded in the result.
func DecodeNotifIndRsp(id MsgID, payload []byte) (NotifIndRsp, error) {
	r := reader{b: payload}
	rsp := NotifIndRsp{
		Status:      r.status(),
		ConnHandle:  r.u16("conn_handle"),
		ValueHandle: r.u16("handle"),
		MsgID:       id,
	}
	return rsp, r.done("notif/ind rsp")
}

// DecodeDiscoverRsp decodes one discovery batch.
func DecodeDiscoverRsp(payload []byte) (DiscoverRsp, error) {
	r := reader{b: payload}
	rsp := DiscoverRsp{ConnHandle: r.u16("conn_handle"), Status: r.status()}
	count := int(r.u8("attr_count"))
	for i := 0; i < count && r.err == nil; i++ {
		attr := decodeDiscoveredAttr(&r)
		if r.err == nil {
			rsp.Attrs = append(rsp.Attrs, attr)
		}
	}
	return rsp, r.done("discover rsp")
}

func decodeDiscoveredAttr(r *reader) DiscoveredAttr {
	switch DiscoverType(r.u8("attr_type")) {
	case DiscoverPrimary:
		return PrimaryService{
			Handle: r.u16("handle"),
			Range:  r.handleRange("handle_range"),
			UUID:   r.uuid("uuid"),
		}
	case DiscoverInclude:
		return IncludedService{
			InclHandle: r.u16("incl_handle"),
			Range:      r.handleRange("handle_range"),
			UUID:       r.uuid("uuid"),
		}
	case DiscoverCharacteristic:
		return Characteristic{
			Properties:  r.u8("prop"),
			DeclHandle:  r.u16("decl_handle"),
			ValueHandle: r.u16("value_handle"),
			UUID:        r.uuid("uuid"),
		}
	case DiscoverDescriptor:
		return Descriptor{
			Handle: r.u16("handle"),
			UUID:   r.uuid("uuid"),
		}
	default:
		r.fail("attr_type")
		return nil
	}
}

// DecodeReadRsp decodes a read response.
func DecodeReadRsp(payload []byte) (ReadRsp, error) {
	r := reader{b: payload}
	rsp := ReadRsp{
		ConnHandle: r.u16("conn_handle"),
		Status:     r.status(),
		Handle:     r.u16("handle"),
		Offset:     r.u16("offset"),
	}
	n := int(r.u8("len"))
	rsp.Data = r.bytes(n, "data")
	return rsp, r.done("read rsp")
}

// DecodeWriteRsp decodes a write response.
func DecodeWriteRsp(payload []byte) (WriteRsp, error) {
	r := reader{b: payload}
	rsp := WriteRsp{
		ConnHandle: r.u16("conn_handle"),
		Status:     r.status(),
		CharHandle: r.u16("char_handle"),
		Len:        r.u16("len"),
	}
	return rsp, r.done("write rsp")
}

// DecodeWriteEvt decodes an incoming-write event.
func DecodeWriteEvt(payload []byte) (WriteEvt, error) {
	r := reader{b: payload}
	evt := WriteEvt{
		Attr:       AttrMapping{ServiceIdx: r.u8("svc_idx"), AttrIdx: r.u8("attr_idx")},
		ConnHandle: r.u16("conn_handle"),
		AttrHandle: r.u16("attr_handle"),
		Offset:     r.u16("offset"),
		Op:         WriteOp(r.u8("op")),
	}
	n := int(r.u8("len"))
	evt.Data = r.bytes(n, "data")
	return evt, r.done("write evt")
}

// DecodeValueEvt decodes a value notification/indication event.
func DecodeValueEvt(payload []byte) (ValueEvt, error) {
	r := reader{b: payload}
	evt := ValueEvt{
		ConnHandle: r.u16("conn_handle"),
		Status:     r.status(),
		Handle:     r.u16("handle"),
		Type:       IndType(r.u8("type")),
	}
	n := int(r.u8("len"))
	evt.Data = r.bytes(n, "data")
	return evt, r.done("value evt")
}

// DecodeTimeoutEvt decodes a per-connection GATT timeout event.
func DecodeTimeoutEvt(payload []byte) (TimeoutEvt, error) {
	r := reader{b: payload}
	evt := TimeoutEvt{ConnHandle: r.u16("conn_handle"), Reason: r.u16("reason")}
	return evt, r.done("timeout evt")
}

// Request decoders, used by the controller emulator.

// DecodeRegisterReq decodes a registration request, returning the serialized
// attribute table alongside the parameters.
func DecodeRegisterReq(payload []byte) (RegisterParams, []byte, error) {
	r := reader{b: payload}
	p := RegisterParams{ServiceIdx: r.u8("service_idx"), AttrCount: r.u8("attr_count")}
	n := int(r.u16("buf_len"))
	buf := r.bytes(n, "attr_table")
	return p, buf, r.done("register req")
}

// DecodeSetAttributeReq decodes a set-attribute-value request.
func DecodeSetAttributeReq(payload []byte) (SetAttributeParams, []byte, error) {
	r := reader{b: payload}
	p := SetAttributeParams{ValueHandle: r.u16("value_handle"), Offset: r.u16("offset")}
	n := int(r.u8("len"))
	data := r.bytes(n, "data")
	return p, data, r.done("set attribute req")
}

// DecodeGetAttributeReq decodes a get-attribute-value request.
func DecodeGetAttributeReq(payload []byte) (GetAttributeParams, error) {
	r := reader{b: payload}
	p := GetAttributeParams{ValueHandle: r.u16("value_handle")}
	return p, r.done("get attribute req")
}

// DecodeSvcChangedReq decodes a Service Changed request.
func DecodeSvcChangedReq(payload []byte) (SvcChangedParams, error) {
	r := reader{b: payload}
	p := SvcChangedParams{ConnHandle: r.u16("conn_handle"), Range: r.handleRange("handle_range")}
	return p, r.done("svc changed req")
}

// DecodeSendNotifReq decodes a send-notification request (16-bit length).
func DecodeSendNotifReq(payload []byte) (NotifIndParams, []byte, error) {
	r := reader{b: payload}
	p := decodeNotifIndParams(&r)
	n := int(r.u16("len"))
	data := r.bytes(n, "data")
	return p, data, r.done("send notif req")
}

// DecodeSendIndReq decodes a send-indication request (8-bit length).
func DecodeSendIndReq(payload []byte) (NotifIndParams, []byte, error) {
	r := reader{b: payload}
	p := decodeNotifIndParams(&r)
	n := int(r.u8("len"))
	data := r.bytes(n, "data")
	return p, data, r.done("send ind req")
}

func decodeNotifIndParams(r *reader) NotifIndParams {
	return NotifIndParams{
		ConnHandle:  r.u16("conn_handle"),
		ValueHandle: r.u16("val_handle"),
		Offset:      r.u16("offset"),
	}
}

// DecodeDiscoverReq decodes a discovery request.
func DecodeDiscoverReq(payload []byte) (DiscoverParams, error) {
	r := reader{b: payload}
	p := DiscoverParams{
		ConnHandle: r.u16("conn_handle"),
		Type:       DiscoverType(r.u8("type")),
		Range:      r.handleRange("handle_range"),
	}
	p.UUID = r.uuid("uuid")
	return p, r.done("discover req")
}

// DecodeReadReq decodes a read request.
func DecodeReadReq(payload []byte) (ReadParams, error) {
	r := reader{b: payload}
	p := ReadParams{
		ConnHandle: r.u16("conn_handle"),
		CharHandle: r.u16("char_handle"),
		Offset:     r.u16("offset"),
	}
	return p, r.done("read req")
}

// DecodeWriteReq decodes a write request.
func DecodeWriteReq(payload []byte) (WriteParams, []byte, error) {
	r := reader{b: payload}
	p := WriteParams{
		ConnHandle: r.u16("conn_handle"),
		CharHandle: r.u16("char_handle"),
		Offset:     r.u16("offset"),
		WithResp:   r.u8("with_resp") != 0,
	}
	n := int(r.u8("len"))
	data := r.bytes(n, "data")
	return p, data, r.done("write req")
}
