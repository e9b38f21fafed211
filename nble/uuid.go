package nble

import (
	"fmt"

	"github.com/Technoculture/zephyr/internal/bledb"
)

// UUID wire form: a single form byte (0 = absent, 2 = 16-bit, 16 = 128-bit)
// followed by that many little-endian bytes. 16-bit UUIDs travel as a
// uint16; 128-bit UUIDs travel reversed, as on the ATT wire.
const (
	uuidFormNone = 0
	uuidForm16   = 2
	uuidForm128  = 16
)

// NormalizeUUID is re-exported from bledb so callers of this package do not
// need to import the registry directly.
func NormalizeUUID(s string) string {
	return bledb.NormalizeUUID(s)
}

// UUIDFromValue interprets an attribute value holding a UUID in ATT wire
// order, as found in service and characteristic declarations. Returns ""
// when the value is not a UUID-shaped payload.
func UUIDFromValue(b []byte) string {
	switch len(b) {
	case 2:
		return fmt.Sprintf("%04x", uint16(b[0])|uint16(b[1])<<8)
	case 16:
		var raw [16]byte
		for i := 0; i < 16; i++ {
			raw[i] = b[15-i]
		}
		return bledb.NormalizeUUID(fmt.Sprintf("%x", raw))
	}
	return ""
}

func appendUUID(dst []byte, normalized string) ([]byte, error) {
	switch len(normalized) {
	case 0:
		return append(dst, uuidFormNone), nil
	case 4:
		var v uint16
		if _, err := fmt.Sscanf(normalized, "%04x", &v); err != nil {
			return nil, fmt.Errorf("invalid 16-bit UUID %q", normalized)
		}
		dst = append(dst, uuidForm16)
		return append(dst, byte(v), byte(v>>8)), nil
	case 32:
		u, err := bledb.Expand(normalized)
		if err != nil {
			return nil, err
		}
		dst = append(dst, uuidForm128)
		// ATT wire order is little-endian.
		for i := 15; i >= 0; i-- {
			dst = append(dst, u[i])
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("invalid normalized UUID %q", normalized)
	}
}

func consumeUUID(b []byte) (uuid string, rest []byte, err error) {
	if len(b) < 1 {
		return "", nil, errTruncated("uuid form")
	}
	form, b := b[0], b[1:]
	switch form {
	case uuidFormNone:
		return "", b, nil
	case uuidForm16:
		if len(b) < 2 {
			return "", nil, errTruncated("16-bit uuid")
		}
		v := uint16(b[0]) | uint16(b[1])<<8
		return fmt.Sprintf("%04x", v), b[2:], nil
	case uuidForm128:
		if len(b) < 16 {
			return "", nil, errTruncated("128-bit uuid")
		}
		var raw [16]byte
		for i := 0; i < 16; i++ {
			raw[i] = b[15-i]
		}
		b = b[16:]
		normalized := bledb.NormalizeUUID(fmt.Sprintf("%x", raw))
		if normalized == "" {
			return "", nil, fmt.Errorf("undecodable 128-bit uuid % x", raw)
		}
		return normalized, b, nil
	default:
		return "", nil, fmt.Errorf("unknown uuid form %d", form)
	}
}
