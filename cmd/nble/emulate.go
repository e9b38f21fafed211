package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Technoculture/zephyr/internal/emulator"
	"github.com/Technoculture/zephyr/transport"
)

// emulateCmd represents the emulate command
var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Emulate the controller side over a PTY",
	Long: `Allocates a pseudo-terminal and answers GATT wire traffic on it the
way the controller firmware would: registrations get sequential handles,
attribute values are stored and served back, and discovery walks the
registered tables.

The slave device path is printed on startup; point a host process at it as
if it were the controller UART. A scenario file injects faults:

  nble emulate --scenario faults.yaml

where faults.yaml can force error statuses, drop responses, or skew
registration arity. Runs until interrupted.`,
	RunE: runEmulate,
}

var emulateScenario string

func init() {
	emulateCmd.Flags().StringVar(&emulateScenario, "scenario", "", "YAML scenario file for fault injection")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	sc := emulator.DefaultScenario()
	if emulateScenario != "" {
		if sc, err = emulator.LoadScenario(emulateScenario); err != nil {
			return err
		}
		logger.WithField("scenario", emulateScenario).Info("Loaded fault scenario")
	}

	link, err := transport.OpenPTY(nil, logger)
	if err != nil {
		return err
	}
	defer link.Close()

	emulator.New(link, sc, logger)
	link.Start()

	fmt.Fprintf(cmd.OutOrStdout(), "Emulated controller on %s\n", link.Path())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received interrupt signal, shutting down...")
	case <-link.Done():
		logger.Info("Transport closed, shutting down...")
	}
	return nil
}
