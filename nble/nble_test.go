package nble

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	r, err := Range(0x0001, 0xFFFF)
	require.NoError(t, err)
	assert.True(t, r.Valid())
	assert.True(t, r.Contains(0x0001))
	assert.True(t, r.Contains(0xFFFF))
	assert.False(t, r.Contains(0x0000))

	_, err = Range(0x0010, 0x0001)
	assert.Error(t, err)
}

func TestRegisterRspRoundTrip(t *testing.T) {
	rsp := RegisterRsp{
		Status:  StatusSuccess,
		Params:  RegisterParams{ServiceIdx: 2, AttrCount: 3},
		Handles: []uint16{10, 11, 12},
	}

	frame, err := EncodeRegisterRsp(rsp)
	require.NoError(t, err)
	assert.Equal(t, MsgIDGattsRegisterRsp, frame.ID)

	decoded, err := DecodeRegisterRsp(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, rsp, decoded)
}

func TestRegisterRspTruncated(t *testing.T) {
	frame, err := EncodeRegisterRsp(RegisterRsp{Handles: []uint16{10, 11}})
	require.NoError(t, err)

	_, err = DecodeRegisterRsp(frame.Payload[:len(frame.Payload)-1])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	frame := EncodeTimeoutEvt(TimeoutEvt{ConnHandle: 5, Reason: 1})
	payload := append(frame.Payload, 0xAA)

	_, err := DecodeTimeoutEvt(payload)
	assert.Error(t, err)
}

// The interface deliberately uses different length-field widths per
// operation: notifications carry 16-bit lengths while indications and
// writes are limited to 8 bits.
func TestLengthFieldAsymmetry(t *testing.T) {
	par := NotifIndParams{ConnHandle: 1, ValueHandle: 11}
	big := bytes.Repeat([]byte{0xAB}, 300)

	frame, err := EncodeSendNotifReq(par, big)
	require.NoError(t, err)
	_, data, err := DecodeSendNotifReq(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, big, data)

	_, err = EncodeSendIndReq(par, big)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = EncodeWriteReq(WriteParams{ConnHandle: 1, CharHandle: 11}, big)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = EncodeSetAttributeReq(SetAttributeParams{ValueHandle: 11}, big)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWriteReqRoundTrip(t *testing.T) {
	p := WriteParams{ConnHandle: 5, CharHandle: 11, Offset: 2, WithResp: true}
	frame, err := EncodeWriteReq(p, []byte{1, 2, 3})
	require.NoError(t, err)

	decoded, data, err := DecodeWriteReq(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestDiscoverRspRoundTrip(t *testing.T) {
	rsp := DiscoverRsp{
		ConnHandle: 3,
		Status:     StatusSuccess,
		Attrs: []DiscoveredAttr{
			PrimaryService{UUID: "180f", Handle: 1, Range: HandleRange{Start: 1, End: 5}},
			IncludedService{InclHandle: 2, UUID: "180a", Range: HandleRange{Start: 20, End: 25}},
			Characteristic{Properties: 0x12, DeclHandle: 3, ValueHandle: 4, UUID: "2a19"},
			Descriptor{Handle: 5, UUID: "2902"},
		},
	}

	frame, err := EncodeDiscoverRsp(rsp)
	require.NoError(t, err)

	decoded, err := DecodeDiscoverRsp(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, rsp, decoded)
}

func TestDiscoverReqVendorUUID(t *testing.T) {
	p := DiscoverParams{
		ConnHandle: 7,
		Type:       DiscoverCharacteristic,
		UUID:       NormalizeUUID("6E400001-B5A3-F393-E0A9-E50E24DCCA9E"),
		Range:      HandleRange{Start: 1, End: 0xFFFF},
	}

	frame, err := EncodeDiscoverReq(p)
	require.NoError(t, err)

	decoded, err := DecodeDiscoverReq(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestNotifIndRspIDs(t *testing.T) {
	for _, id := range []MsgID{MsgIDGattsSendNotifRsp, MsgIDGattsSendIndRsp} {
		frame, err := EncodeNotifIndRsp(NotifIndRsp{
			Status:      StatusSuccess,
			ConnHandle:  ConnBroadcast,
			ValueHandle: 11,
			MsgID:       id,
		})
		require.NoError(t, err)
		assert.Equal(t, id, frame.ID)

		rsp, err := DecodeNotifIndRsp(frame.ID, frame.Payload)
		require.NoError(t, err)
		assert.Equal(t, id, rsp.MsgID)
		assert.Equal(t, ConnBroadcast, rsp.ConnHandle)
	}

	_, err := EncodeNotifIndRsp(NotifIndRsp{MsgID: MsgIDGattsRegisterRsp})
	assert.Error(t, err)
}

func TestAttrTableRoundTrip(t *testing.T) {
	attrs := []Attribute{
		{UUID: "2800", Perm: 0x01, Value: []byte{0x0f, 0x18}},
		{UUID: "2803", Perm: 0x01},
		{UUID: "2a19", Perm: 0x03, MaxLen: 1, Value: []byte{100}},
	}

	buf, err := EncodeAttrTable(attrs)
	require.NoError(t, err)

	decoded, err := DecodeAttrTable(buf, len(attrs))
	require.NoError(t, err)
	assert.Equal(t, attrs, decoded)
}

func TestAttrTableErrors(t *testing.T) {
	_, err := EncodeAttrTable([]Attribute{{}})
	assert.Error(t, err, "missing UUID must be rejected")

	buf, err := EncodeAttrTable([]Attribute{{UUID: "2a19", Value: []byte{1}}})
	require.NoError(t, err)
	_, err = DecodeAttrTable(buf[:4], 1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "timeout", StatusTimeout.String())
	assert.True(t, StatusSuccess.OK())
	assert.False(t, Status(0x0A).OK())
}
