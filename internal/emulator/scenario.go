package emulator

import (
	"fmt"
	"os"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/Technoculture/zephyr/nble"
)

// Scenario shapes the emulator's behavior, mainly for fault injection.
// Operations are named by their wire verb: register, set_attribute,
// get_attribute, svc_changed, notify, indicate, discover, read, write.
type Scenario struct {
	// HandleBase is the first handle assigned at registration.
	HandleBase uint16 `yaml:"handle_base" default:"1"`

	// BatchSize caps discovery results per response frame; zero means a
	// single batch.
	BatchSize int `yaml:"batch_size" default:"3"`

	// ArityDelta skews the number of handles in register responses. A
	// non-zero value makes every registration arity-mismatched.
	ArityDelta int `yaml:"arity_delta"`

	// FailStatus forces an error status on the named operations.
	FailStatus map[string]int32 `yaml:"fail_status"`

	// Drop swallows responses to the named operations, leaving the host's
	// request timer to fire.
	Drop []string `yaml:"drop"`
}

// DefaultScenario returns a well-behaved controller scenario.
func DefaultScenario() *Scenario {
	sc := &Scenario{}
	defaults.SetDefaults(sc)
	return sc
}

// LoadScenario reads a scenario from a YAML file, filling unset fields
// with defaults.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	sc := DefaultScenario()
	if err := yaml.Unmarshal(raw, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return sc, nil
}

// status returns the forced status for op, or fallback when none is set.
func (s *Scenario) status(op string, fallback nble.Status) nble.Status {
	if v, ok := s.FailStatus[op]; ok {
		return nble.Status(v)
	}
	return fallback
}

func (s *Scenario) drops(op string) bool {
	for _, d := range s.Drop {
		if d == op {
			return true
		}
	}
	return false
}
