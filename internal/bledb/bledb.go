// Package bledb is a small registry of Bluetooth SIG assigned numbers and
// UUID normalization helpers shared by the wire codecs and the CLI.
package bledb

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// bluetoothBaseSuffix is the tail of the Bluetooth SIG base UUID
// 0000xxxx-0000-1000-8000-00805f9b34fb. Short UUIDs are embedded in the
// first field.
const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// NormalizeUUID converts a UUID string into canonical internal form:
// lowercase, no dashes, no 0x prefix. A 128-bit UUID in the Bluetooth SIG
// base form collapses to its 16-bit short form ("00002902-...-00805f9b34fb"
// becomes "2902"). Returns "" if the input is not a valid 16-bit or 128-bit
// UUID.
func NormalizeUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")

	// Short form: exactly 4 hex digits.
	if len(s) == 4 {
		var v uint16
		if _, err := fmt.Sscanf(s, "%04x", &v); err != nil {
			return ""
		}
		return s
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return ""
	}
	canonical := u.String()
	if strings.HasSuffix(canonical, bluetoothBaseSuffix) && strings.HasPrefix(canonical, "0000") {
		return canonical[4:8]
	}
	return strings.ReplaceAll(canonical, "-", "")
}

// Expand returns the full 128-bit form of a normalized UUID. Short UUIDs are
// embedded into the Bluetooth SIG base UUID.
func Expand(normalized string) (uuid.UUID, error) {
	switch len(normalized) {
	case 4:
		return uuid.Parse("0000" + normalized + bluetoothBaseSuffix)
	case 32:
		return uuid.Parse(normalized)
	default:
		return uuid.UUID{}, fmt.Errorf("invalid normalized UUID %q", normalized)
	}
}

// Lookup returns the assigned-number name for a normalized UUID, or "" when
// the UUID is unknown. The table covers the entries this module's tooling
// cares about; it is not a full SIG dump.
func Lookup(normalized string) string {
	return assignedNames[normalized]
}

var assignedNames = map[string]string{
	// Services
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"1812": "Human Interface Device",

	// Declarations
	"2800": "Primary Service",
	"2801": "Secondary Service",
	"2802": "Include",
	"2803": "Characteristic",

	// Descriptors
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Description",
	"2902": "Client Characteristic Configuration",
	"2904": "Characteristic Presentation Format",

	// Characteristics
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a05": "Service Changed",
	"2a19": "Battery Level",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
}
