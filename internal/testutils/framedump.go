// Package testutils provides test assertion helpers for wire frame
// sequences.
package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"

	"github.com/Technoculture/zephyr/nble"
)

// TestingT is an interface that matches the methods we need from testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
}

type FrameAssertOptions struct {
	// IgnorePayloads compares message IDs and lengths only.
	IgnorePayloads bool `default:"false"`
	// TrimSpace trims the expected text so callers can use raw string
	// literals with surrounding newlines.
	TrimSpace    bool `default:"true"`
	EnableColors bool `default:"false"`
}

// FrameOption is a functional option for configuring FrameAsserter
type FrameOption func(*FrameAssertOptions)

// FrameAsserter compares captured frame sequences against an expected
// textual dump, reporting mismatches as a unified diff.
type FrameAsserter struct {
	t       TestingT
	options FrameAssertOptions
}

// NewFrameAsserter creates a new FrameAsserter with default options
func NewFrameAsserter(t *testing.T) *FrameAsserter {
	return NewFrameAsserterWithInterface(t)
}

// NewFrameAsserterWithInterface creates a new FrameAsserter with default
// options using the TestingT interface
func NewFrameAsserterWithInterface(t TestingT) *FrameAsserter {
	opts := FrameAssertOptions{}
	defaults.SetDefaults(&opts)
	return &FrameAsserter{
		t:       t,
		options: opts,
	}
}

// WithOptions applies functional options to the FrameAsserter
func (fa *FrameAsserter) WithOptions(opts ...FrameOption) *FrameAsserter {
	for _, opt := range opts {
		opt(&fa.options)
	}
	return fa
}

// DumpFrames renders a frame sequence one line per frame, in the format
// the asserter compares against:
//
//	GATTS_REGISTER_REQ len=5 payload=0204...
func (fa *FrameAsserter) DumpFrames(frames []nble.Frame) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "%s len=%d", f.ID, len(f.Payload))
		if !fa.options.IgnorePayloads && len(f.Payload) > 0 {
			fmt.Fprintf(&b, " payload=%x", f.Payload)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Assert compares a captured frame sequence against an expected dump.
func (fa *FrameAsserter) Assert(actual []nble.Frame, expected string) {
	actualDump := fa.DumpFrames(actual)
	if fa.options.TrimSpace {
		actualDump = strings.TrimSpace(actualDump)
		expected = strings.TrimSpace(expected)
	}
	if actualDump == expected {
		return
	}

	edits := myers.ComputeEdits("", expected+"\n", actualDump+"\n")
	unified := gotextdiff.ToUnified("expected", "actual", expected+"\n", edits)
	fa.t.Errorf("Frame sequence mismatch:\n%s", fa.colorize(fmt.Sprint(unified)))
}

// colorize applies colors to unified diff output
func (fa *FrameAsserter) colorize(diff string) string {
	if !fa.options.EnableColors {
		return diff
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	var colorized []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "@@"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "-"):
			colorized = append(colorized, red.Sprint(line))
		case strings.HasPrefix(line, "+"):
			colorized = append(colorized, green.Sprint(line))
		default:
			colorized = append(colorized, line)
		}
	}
	return strings.Join(colorized, "\n")
}

// Functional option constructors

// WithIgnorePayloads sets whether payload bytes participate in the
// comparison
func WithIgnorePayloads(ignore bool) FrameOption {
	return func(opts *FrameAssertOptions) {
		opts.IgnorePayloads = ignore
	}
}

// WithTrimSpace sets whether surrounding whitespace is trimmed before
// comparing
func WithTrimSpace(trim bool) FrameOption {
	return func(opts *FrameAssertOptions) {
		opts.TrimSpace = trim
	}
}

// WithEnableColors sets whether to enable colored diff output
func WithEnableColors(enable bool) FrameOption {
	return func(opts *FrameAssertOptions) {
		opts.EnableColors = enable
	}
}
