package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Technoculture/zephyr/internal/bledb"
	"github.com/Technoculture/zephyr/nble"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode captured wire frames into an annotated dump",
	Long: `Decodes a hex dump of host<->controller traffic into annotated frames.

The input is a byte stream of concatenated frames, each a one-byte message
ID followed by a little-endian 16-bit payload length and the payload. Hex
digits may be passed as arguments or piped on stdin; whitespace and 0x
prefixes are ignored.

Example:
  nble decode 01020500000500
  xxd -p capture.bin | nble decode`,
	RunE: runDecode,
}

var decodeNoColor bool

func init() {
	decodeCmd.Flags().BoolVar(&decodeNoColor, "no-color", false, "Disable colored output")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	var input string
	if len(args) > 0 {
		input = strings.Join(args, "")
	} else {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(raw)
	}

	data, err := parseHex(input)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("no input frames")
	}

	useColor := !decodeNoColor && term.IsTerminal(int(os.Stdout.Fd()))
	out := cmd.OutOrStdout()

	for len(data) > 0 {
		if len(data) < 3 {
			return fmt.Errorf("truncated frame header: %d trailing bytes", len(data))
		}
		id := nble.MsgID(data[0])
		size := int(data[1]) | int(data[2])<<8
		data = data[3:]
		if len(data) < size {
			return fmt.Errorf("truncated frame %s: need %d payload bytes, have %d", id, size, len(data))
		}
		frame := nble.Frame{ID: id, Payload: data[:size]}
		data = data[size:]

		printFrame(out, frame, useColor)
	}
	return nil
}

func parseHex(s string) ([]byte, error) {
	var b strings.Builder
	for _, field := range strings.Fields(s) {
		b.WriteString(strings.TrimPrefix(strings.ToLower(field), "0x"))
	}
	data, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func printFrame(out io.Writer, f nble.Frame, useColor bool) {
	header := color.New(color.FgYellow, color.Bold)
	field := color.New(color.FgCyan)
	bad := color.New(color.FgRed)
	if !useColor {
		header.DisableColor()
		field.DisableColor()
		bad.DisableColor()
	}

	header.Fprintf(out, "%s", f.ID)
	fmt.Fprintf(out, "  len=%d", len(f.Payload))
	if len(f.Payload) > 0 {
		fmt.Fprintf(out, "  %x", f.Payload)
	}
	fmt.Fprintln(out)

	for _, line := range describeFrame(f) {
		if strings.HasPrefix(line, "undecodable") {
			bad.Fprintf(out, "    %s\n", line)
			continue
		}
		field.Fprintf(out, "    %s\n", line)
	}
}

// describeFrame renders the decoded payload one field line per entry. An
// undecodable payload yields a single "undecodable: ..." line.
func describeFrame(f nble.Frame) []string {
	switch f.ID {
	case nble.MsgIDGattsRegisterReq:
		p, table, err := nble.DecodeRegisterReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		lines := []string{fmt.Sprintf("service_idx=%d attr_count=%d", p.ServiceIdx, p.AttrCount)}
		attrs, err := nble.DecodeAttrTable(table, int(p.AttrCount))
		if err != nil {
			return append(lines, undecodable(err)...)
		}
		for i, a := range attrs {
			lines = append(lines, fmt.Sprintf("attr[%d] uuid=%s perm=0x%04x max_len=%d value=%x",
				i, uuidLabel(a.UUID), a.Perm, a.MaxLen, a.Value))
		}
		return lines

	case nble.MsgIDGattsRegisterRsp:
		r, err := nble.DecodeRegisterRsp(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("status=%s service_idx=%d handles=%v",
			r.Status, r.Params.ServiceIdx, r.Handles)}

	case nble.MsgIDGattsSetAttributeReq:
		p, data, err := nble.DecodeSetAttributeReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("handle=0x%04x offset=%d data=%x", p.ValueHandle, p.Offset, data)}

	case nble.MsgIDGattsGetAttributeReq:
		p, err := nble.DecodeGetAttributeReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("handle=0x%04x", p.ValueHandle)}

	case nble.MsgIDGattsSetAttributeRsp, nble.MsgIDGattsGetAttributeRsp:
		var r nble.AttributeRsp
		var err error
		if f.ID == nble.MsgIDGattsSetAttributeRsp {
			r, err = nble.DecodeSetAttributeRsp(f.Payload)
		} else {
			r, err = nble.DecodeGetAttributeRsp(f.Payload)
		}
		if err != nil {
			return undecodable(err)
		}
		line := fmt.Sprintf("status=%s handle=0x%04x", r.Status, r.ValueHandle)
		if len(r.Data) > 0 {
			line += fmt.Sprintf(" data=%x", r.Data)
		}
		return []string{line}

	case nble.MsgIDGattsSvcChangedReq:
		p, err := nble.DecodeSvcChangedReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x range=%s", p.ConnHandle, p.Range)}

	case nble.MsgIDGattsSvcChangedRsp:
		r, err := nble.DecodeSvcChangedRsp(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("status=%s", r.Status)}

	case nble.MsgIDGattsSendNotifReq, nble.MsgIDGattsSendIndReq:
		var p nble.NotifIndParams
		var data []byte
		var err error
		if f.ID == nble.MsgIDGattsSendNotifReq {
			p, data, err = nble.DecodeSendNotifReq(f.Payload)
		} else {
			p, data, err = nble.DecodeSendIndReq(f.Payload)
		}
		if err != nil {
			return undecodable(err)
		}
		line := fmt.Sprintf("conn=%s handle=0x%04x offset=%d", connLabel(p.ConnHandle), p.ValueHandle, p.Offset)
		if len(data) == 0 {
			line += " data=<stored value>"
		} else {
			line += fmt.Sprintf(" data=%x", data)
		}
		return []string{line}

	case nble.MsgIDGattsSendNotifRsp, nble.MsgIDGattsSendIndRsp:
		r, err := nble.DecodeNotifIndRsp(f.ID, f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("status=%s conn=%s handle=0x%04x",
			r.Status, connLabel(r.ConnHandle), r.ValueHandle)}

	case nble.MsgIDGattsWriteEvt:
		e, err := nble.DecodeWriteEvt(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x service_idx=%d attr_idx=%d handle=0x%04x offset=%d op=%s data=%x",
			e.ConnHandle, e.Attr.ServiceIdx, e.Attr.AttrIdx, e.AttrHandle, e.Offset, e.Op, e.Data)}

	case nble.MsgIDGattcDiscoverReq:
		p, err := nble.DecodeDiscoverReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x type=%s range=%s uuid=%s",
			p.ConnHandle, p.Type, p.Range, uuidLabel(p.UUID))}

	case nble.MsgIDGattcDiscoverRsp:
		r, err := nble.DecodeDiscoverRsp(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		lines := []string{fmt.Sprintf("conn=0x%04x status=%s attrs=%d",
			r.ConnHandle, r.Status, len(r.Attrs))}
		for _, attr := range r.Attrs {
			lines = append(lines, describeDiscoveredAttr(attr))
		}
		return lines

	case nble.MsgIDGattcReadReq:
		p, err := nble.DecodeReadReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x handle=0x%04x offset=%d",
			p.ConnHandle, p.CharHandle, p.Offset)}

	case nble.MsgIDGattcReadRsp:
		r, err := nble.DecodeReadRsp(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x status=%s handle=0x%04x offset=%d data=%x",
			r.ConnHandle, r.Status, r.Handle, r.Offset, r.Data)}

	case nble.MsgIDGattcWriteReq:
		p, data, err := nble.DecodeWriteReq(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x handle=0x%04x offset=%d with_resp=%t data=%x",
			p.ConnHandle, p.CharHandle, p.Offset, p.WithResp, data)}

	case nble.MsgIDGattcWriteRsp:
		r, err := nble.DecodeWriteRsp(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x status=%s handle=0x%04x len=%d",
			r.ConnHandle, r.Status, r.CharHandle, r.Len)}

	case nble.MsgIDGattcValueEvt:
		e, err := nble.DecodeValueEvt(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x status=%s handle=0x%04x type=%d data=%x",
			e.ConnHandle, e.Status, e.Handle, e.Type, e.Data)}

	case nble.MsgIDGattcTimeoutEvt:
		e, err := nble.DecodeTimeoutEvt(f.Payload)
		if err != nil {
			return undecodable(err)
		}
		return []string{fmt.Sprintf("conn=0x%04x reason=0x%04x", e.ConnHandle, e.Reason)}
	}
	return []string{"unknown message"}
}

func undecodable(err error) []string {
	return []string{fmt.Sprintf("undecodable: %v", err)}
}

func describeDiscoveredAttr(attr nble.DiscoveredAttr) string {
	switch a := attr.(type) {
	case nble.PrimaryService:
		return fmt.Sprintf("primary handle=0x%04x range=%s uuid=%s", a.Handle, a.Range, uuidLabel(a.UUID))
	case nble.IncludedService:
		return fmt.Sprintf("include handle=0x%04x range=%s uuid=%s", a.InclHandle, a.Range, uuidLabel(a.UUID))
	case nble.Characteristic:
		return fmt.Sprintf("characteristic decl=0x%04x value=0x%04x props=0x%02x uuid=%s",
			a.DeclHandle, a.ValueHandle, a.Properties, uuidLabel(a.UUID))
	case nble.Descriptor:
		return fmt.Sprintf("descriptor handle=0x%04x uuid=%s", a.Handle, uuidLabel(a.UUID))
	}
	return fmt.Sprintf("unknown attribute %T", attr)
}

// uuidLabel annotates a normalized UUID with its SIG assigned name, if any.
func uuidLabel(u string) string {
	if u == "" {
		return "<any>"
	}
	if name := bledb.Lookup(u); name != "" {
		return fmt.Sprintf("%s (%s)", u, name)
	}
	return u
}

func connLabel(conn uint16) string {
	if conn == nble.ConnBroadcast {
		return "<broadcast>"
	}
	return fmt.Sprintf("0x%04x", conn)
}
