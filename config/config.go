// Package config provides configuration structures for the redirector.
package config

import (
	"fmt"

	"go.mdsemu.io/redirector/pkg/models"
)

type Config struct {
	// EmulatorIP and EmulatorPort are the redirect target: where connection
	// attempts to the metadata server end up after rewriting.
	EmulatorIP   string `json:"emulatorIP" yaml:"emulatorIP" mapstructure:"emulatorIP"`
	EmulatorPort uint16 `json:"emulatorPort" yaml:"emulatorPort" mapstructure:"emulatorPort"`

	// Mode selects the engine variant: "discovery" latches the emulator PID
	// through the discovery handshake and exempts the emulator's own
	// traffic; "simple" redirects every matching attempt unconditionally.
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// CgroupPath is the cgroup2 mount the connect4 program is attached to.
	CgroupPath string `json:"cgroupPath" yaml:"cgroupPath" mapstructure:"cgroupPath"`

	// BpfObjPath is the compiled redirect eBPF object file.
	BpfObjPath string `json:"bpfObjPath" yaml:"bpfObjPath" mapstructure:"bpfObjPath"`

	// PinPath is the bpffs directory the config map is pinned under, so
	// status can read the live record from another process.
	PinPath string `json:"pinPath" yaml:"pinPath" mapstructure:"pinPath"`

	Debug      bool   `json:"debug" yaml:"debug" mapstructure:"debug"`
	ConfigPath string `json:"configPath" yaml:"configPath" mapstructure:"configPath"`
}

// EngineMode validates and returns the configured engine mode.
func (c *Config) EngineMode() (models.Mode, error) {
	mode := models.Mode(c.Mode)
	if !mode.Valid() {
		return "", fmt.Errorf("invalid mode %q, must be %q or %q", c.Mode, models.ModeDiscovery, models.ModeSimple)
	}
	return mode, nil
}
