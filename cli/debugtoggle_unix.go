//go:build !windows

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.mdsemu.io/redirector/pkg/agent"
	"go.mdsemu.io/redirector/utils"
)

// watchDebugToggle flips the policy's debug flag on SIGUSR1 until the context
// is cancelled, so diagnostics can be turned on against a live attach without
// restarting it (which would lose a latched PID).
func watchDebugToggle(ctx context.Context, svc *Services, h agent.Hooks, enabled bool) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			enabled = !enabled
			if err := h.SetDebug(enabled); err != nil {
				utils.LogError(svc.Logger, err, "failed to toggle the debug flag")
				enabled = !enabled
			}
		}
	}
}
