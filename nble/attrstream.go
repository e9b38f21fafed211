package nble

import "fmt"

// Attribute is one entry of a service's attribute table as submitted to the
// controller at registration time.
type Attribute struct {
	UUID   string // normalized; required
	Perm   uint16
	MaxLen uint16
	Value  []byte // initial user data, optional
}

// Attribute stream layout: attr_count fixed 8-byte records
// {uuid_offset u16, user_data_offset u16, max_len u16, perm u16} followed by
// a blob region. Offsets are from the beginning of the buffer; 0 means the
// field is absent. UUIDs are stored in wire form (self-describing), user
// data as an 8-bit length plus bytes.
const attrRecordSize = 8

// EncodeAttrTable serializes a service's attributes into the compressed
// stream submitted with a register request.
func EncodeAttrTable(attrs []Attribute) ([]byte, error) {
	if len(attrs) > 0xFF {
		return nil, fmt.Errorf("%w: %d attributes", ErrPayloadTooLarge, len(attrs))
	}

	records := make([]byte, 0, len(attrs)*attrRecordSize)
	blob := []byte{}
	blobBase := len(attrs) * attrRecordSize

	for i, a := range attrs {
		if a.UUID == "" {
			return nil, fmt.Errorf("attribute %d: missing UUID", i)
		}
		uuidOff := blobBase + len(blob)
		var err error
		blob, err = appendUUID(blob, a.UUID)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}

		userDataOff := 0
		if len(a.Value) > 0 {
			if len(a.Value) > 0xFF {
				return nil, fmt.Errorf("attribute %d: %w: value %d bytes", i, ErrPayloadTooLarge, len(a.Value))
			}
			userDataOff = blobBase + len(blob)
			blob = append(blob, byte(len(a.Value)))
			blob = append(blob, a.Value...)
		}

		if uuidOff > 0xFFFF || userDataOff > 0xFFFF {
			return nil, fmt.Errorf("%w: attribute table blob", ErrPayloadTooLarge)
		}
		records = putU16(records, uint16(uuidOff))
		records = putU16(records, uint16(userDataOff))
		records = putU16(records, a.MaxLen)
		records = putU16(records, a.Perm)
	}

	return append(records, blob...), nil
}

// DecodeAttrTable parses an attribute stream holding count attributes.
func DecodeAttrTable(buf []byte, count int) ([]Attribute, error) {
	if len(buf) < count*attrRecordSize {
		return nil, errTruncated("attribute records")
	}

	attrs := make([]Attribute, 0, count)
	for i := 0; i < count; i++ {
		rec := buf[i*attrRecordSize : (i+1)*attrRecordSize]
		uuidOff := int(uint16(rec[0]) | uint16(rec[1])<<8)
		userDataOff := int(uint16(rec[2]) | uint16(rec[3])<<8)
		a := Attribute{
			MaxLen: uint16(rec[4]) | uint16(rec[5])<<8,
			Perm:   uint16(rec[6]) | uint16(rec[7])<<8,
		}

		if uuidOff == 0 {
			return nil, fmt.Errorf("attribute %d: missing UUID offset", i)
		}
		if uuidOff >= len(buf) {
			return nil, errTruncated("attribute uuid")
		}
		u, _, err := consumeUUID(buf[uuidOff:])
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		a.UUID = u

		if userDataOff != 0 {
			if userDataOff >= len(buf) {
				return nil, errTruncated("attribute user data")
			}
			n := int(buf[userDataOff])
			if userDataOff+1+n > len(buf) {
				return nil, errTruncated("attribute user data")
			}
			a.Value = make([]byte, n)
			copy(a.Value, buf[userDataOff+1:userDataOff+1+n])
		}

		attrs = append(attrs, a)
	}
	return attrs, nil
}
