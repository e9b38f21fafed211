package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Technoculture/zephyr/nble"
)

func TestParseHex(t *testing.T) {
	data, err := parseHex("0x0102 03\n04")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = parseHex("zz")
	assert.Error(t, err)
}

func frameHex(f nble.Frame) string {
	return fmt.Sprintf("%02x%02x%02x%x",
		byte(f.ID), byte(len(f.Payload)), byte(len(f.Payload)>>8), f.Payload)
}

func TestRunDecodeAnnotatesFrames(t *testing.T) {
	read := nble.EncodeReadReq(nble.ReadParams{ConnHandle: 1, CharHandle: 0x2A, Offset: 0})
	timeout := nble.EncodeTimeoutEvt(nble.TimeoutEvt{ConnHandle: 1, Reason: 0x22})

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"decode", "--no-color", frameHex(read) + frameHex(timeout)})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "GATTC_READ_REQ")
	assert.Contains(t, out.String(), "handle=0x002a")
	assert.Contains(t, out.String(), "GATTC_TIMEOUT_EVT")
	assert.Contains(t, out.String(), "reason=0x0022")
}

func TestRunDecodeTruncatedInput(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"decode", "--no-color", "01ff"})
	assert.Error(t, rootCmd.Execute())
}

func TestDescribeFrameUUIDNames(t *testing.T) {
	frame, err := nble.EncodeDiscoverReq(nble.DiscoverParams{
		ConnHandle: 1,
		Type:       nble.DiscoverPrimary,
		UUID:       "180d",
		Range:      nble.HandleRange{Start: 1, End: 0xFFFF},
	})
	require.NoError(t, err)

	lines := describeFrame(frame)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "180d (Heart Rate)")
	assert.Contains(t, lines[0], "type=primary")
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
