//go:build linux

package cli

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/pkg/netfallback"
	"go.mdsemu.io/redirector/utils"
	"go.uber.org/zap"
)

func init() {
	Register("init-network", InitNetwork)
}

// InitNetwork is the fallback for hosts that cannot run the cgroup connect4
// hook: iptables DNAT rules plus the metadata address on the loopback
// interface. The rules stay in place until the command is interrupted.
func InitNetwork(ctx context.Context, svc *Services, conf *config.Config) *cobra.Command {
	var withLoopback bool

	cmd := &cobra.Command{
		Use:   "init-network",
		Short: "Redirect metadata traffic with iptables instead of the eBPF hook",
		Long: `Redirect metadata-server traffic to the emulator with iptables DNAT rules,
for hosts without cgroup2 or eBPF support. The emulator address can be
overridden with the EMULATOR_IP and EMULATOR_PORT environment variables.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := svc.Logger

			emulatorIP := conf.EmulatorIP
			emulatorPort := conf.EmulatorPort
			if v := os.Getenv("EMULATOR_IP"); v != "" {
				emulatorIP = v
			}
			if v := os.Getenv("EMULATOR_PORT"); v != "" {
				port, err := strconv.ParseUint(v, 10, 16)
				if err != nil {
					utils.LogError(logger, err, "invalid EMULATOR_PORT", zap.String("value", v))
					return err
				}
				emulatorPort = uint16(port)
			}

			teardownRules, err := netfallback.EnsureRedirectRules(emulatorIP, emulatorPort)
			if err != nil {
				utils.LogError(logger, err, "failed to install the iptables redirect rules")
				return err
			}
			defer func() {
				utils.LogError(logger, teardownRules(), "failed to remove the iptables redirect rules")
			}()

			if withLoopback {
				teardownAddr, err := netfallback.AttachLoopbackAddress()
				if err != nil {
					utils.LogError(logger, err, "failed to attach the metadata address to the loopback interface")
					return err
				}
				defer func() {
					utils.LogError(logger, teardownAddr(), "failed to detach the metadata address from the loopback interface")
				}()
			}

			logger.Info("network fallback armed",
				zap.String("emulator", emulatorIP),
				zap.Uint16("port", emulatorPort),
				zap.Bool("loopback", withLoopback),
			)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withLoopback, "loopback", false, "Also attach the metadata address to the loopback interface")
	return cmd
}
