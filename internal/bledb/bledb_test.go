package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "short form passes through",
			input:    "2a19",
			expected: "2a19",
		},
		{
			name:     "short form is lowercased",
			input:    "2A19",
			expected: "2a19",
		},
		{
			name:     "0x prefix is stripped",
			input:    "0x2902",
			expected: "2902",
		},
		{
			name:     "SIG base UUID collapses to short form",
			input:    "00002902-0000-1000-8000-00805F9B34FB",
			expected: "2902",
		},
		{
			name:     "vendor UUID keeps full form",
			input:    "6E400001-B5A3-F393-E0A9-E50E24DCCA9E",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "garbage rejected",
			input:    "not-a-uuid",
			expected: "",
		},
		{
			name:     "short form with non-hex rejected",
			input:    "2z19",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestExpand(t *testing.T) {
	u, err := Expand("2a05")
	require.NoError(t, err)
	assert.Equal(t, "00002a05-0000-1000-8000-00805f9b34fb", u.String())

	u, err = Expand("6e400001b5a3f393e0a9e50e24dcca9e")
	require.NoError(t, err)
	assert.Equal(t, "6e400001-b5a3-f393-e0a9-e50e24dcca9e", u.String())

	_, err = Expand("zz")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	assert.Equal(t, "Battery Level", Lookup("2a19"))
	assert.Equal(t, "", Lookup("ffff"))
}
