package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/pkg/agent/hooks"
	"go.mdsemu.io/redirector/pkg/models"
	"go.mdsemu.io/redirector/utils"
)

func init() {
	Register("status", Status)
}

// Status prints the live config record through the pinned map.
func Status(_ context.Context, svc *Services, conf *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the live redirect policy state",
		RunE: func(_ *cobra.Command, _ []string) error {
			rec, err := hooks.ReadPinnedConfig(conf.PinPath)
			if err != nil {
				utils.LogError(svc.Logger, err, "failed to read the redirect policy state, is the attach command running?")
				return err
			}

			pid := "pending discovery"
			if rec.EmulatorPid != 0 {
				pid = fmt.Sprintf("%d", rec.EmulatorPid)
			}
			fmt.Printf("emulator:     %s:%d\n", models.UintToIPv4(rec.EmulatorIP), rec.EmulatorPort)
			fmt.Printf("emulator pid: %s\n", pid)
			fmt.Printf("debug:        %t\n", rec.Debug != 0)
			return nil
		},
	}
}
