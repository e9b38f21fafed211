package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Technoculture/zephyr/gatt"
	"github.com/Technoculture/zephyr/internal/emulator"
	"github.com/Technoculture/zephyr/nble"
	"github.com/Technoculture/zephyr/transport"
)

// loopbackCmd represents the loopback command
var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Run a host/controller round trip in process",
	Long: `Wires a GATT host to the emulated controller over an in-process
loopback and runs one exchange of everything: service registration, handle
resolution, attribute value round trip, discovery, a notification, and a
remote read. Prints each step's outcome and a trace of the frames that
crossed the link.

Useful as a smoke check that the wire contract, the correlation engine,
and the emulator agree with each other.`,
	RunE: runLoopback,
}

func runLoopback(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()

	hostEnd, ctrlEnd := transport.NewLoopbackPair()
	emulator.New(ctrlEnd, nil, logger)
	host := gatt.NewHost(hostEnd, nil, logger)
	defer host.Close()

	// Heart Rate service: declaration, characteristic declaration, value,
	// and its client configuration descriptor.
	attrs := []nble.Attribute{
		{UUID: "2800", Perm: 0x01, Value: []byte{0x0d, 0x18}},
		{UUID: "2803", Perm: 0x01, Value: []byte{0x10}},
		{UUID: "2a37", Perm: 0x02, MaxLen: 4},
		{UUID: "2902", Perm: 0x03, MaxLen: 2},
	}

	var reg gatt.RegisterResult
	if err := host.RegisterService(0, attrs, nil, func(r gatt.RegisterResult) { reg = r }); err != nil {
		return err
	}
	if !reg.Status.OK() {
		return fmt.Errorf("registration failed: %s", reg.Status)
	}
	fmt.Fprintf(out, "registered heart rate service, handles %v\n", reg.Handles)

	valueHandle, err := host.ResolveHandle(0, 2)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "measurement value handle 0x%04x\n", valueHandle)

	var set gatt.AttributeResult
	err = host.SetAttributeValue(nble.SetAttributeParams{ValueHandle: valueHandle},
		[]byte{0x06, 0x48}, nil, func(r gatt.AttributeResult) { set = r })
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "set attribute value: %s\n", set.Status)

	sess, err := host.Discover(nble.DiscoverParams{
		ConnHandle: 1,
		Type:       nble.DiscoverCharacteristic,
		Range:      nble.HandleRange{Start: 1, End: 0xFFFF},
	}, nil, nil)
	if err != nil {
		return err
	}
	found, err := sess.Wait()
	if err != nil {
		return err
	}
	for _, attr := range found {
		if c, ok := attr.(nble.Characteristic); ok {
			fmt.Fprintf(out, "discovered characteristic %s value=0x%04x props=0x%02x\n",
				c.UUID, c.ValueHandle, c.Properties)
		}
	}

	var notif gatt.NotifIndResult
	err = host.SendNotification(nble.NotifIndParams{ConnHandle: 1, ValueHandle: valueHandle},
		nil, nil, func(r gatt.NotifIndResult) { notif = r })
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "notification with stored value: %s\n", notif.Status)

	var read gatt.ReadResult
	err = host.Read(nble.ReadParams{ConnHandle: 1, CharHandle: valueHandle}, nil,
		func(r gatt.ReadResult) { read = r })
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "remote read: %s data=%x\n", read.Status, read.Data)

	metrics := host.Metrics()
	fmt.Fprintf(out, "\nrequests issued=%d completed=%d unmatched=%d timeouts=%d\n",
		metrics.Issued, metrics.Completed, metrics.Unmatched, metrics.Timeouts)

	fmt.Fprintln(out, "\nframe trace:")
	printTrace(out, host.Trace())
	return nil
}

func printTrace(out io.Writer, entries []gatt.TraceEntry) {
	for _, e := range entries {
		fmt.Fprintf(out, "  %s %s len=%d\n", e.Dir, e.Frame.ID, len(e.Frame.Payload))
	}
}
