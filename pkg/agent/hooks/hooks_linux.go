//go:build linux

package hooks

import (
	"go.mdsemu.io/redirector/pkg/agent"
	"go.mdsemu.io/redirector/pkg/agent/hooks/linux"
	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.uber.org/zap"
)

func New(logger *zap.Logger) agent.Hooks {
	return linux.NewHooks(logger)
}

// ReadPinnedConfig reads the live config record through the pinned map, for
// processes other than the one that loaded the hook.
func ReadPinnedConfig(pinPath string) (structs.RedirectConfig, error) {
	return linux.ReadPinnedConfig(pinPath)
}
