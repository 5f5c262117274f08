//go:build windows

package cli

import (
	"context"

	"go.mdsemu.io/redirector/pkg/agent"
)

// SIGUSR1 does not exist on Windows; the debug flag stays as provisioned.
func watchDebugToggle(ctx context.Context, _ *Services, _ agent.Hooks, _ bool) {
	<-ctx.Done()
}
