package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/pkg/agent"
	"go.mdsemu.io/redirector/pkg/agent/hooks"
	"go.mdsemu.io/redirector/pkg/models"
	"go.mdsemu.io/redirector/utils"
	"go.uber.org/zap"
)

func init() {
	Register("attach", Attach)
}

// Attach arms the redirect policy and keeps it armed until the context is
// cancelled.
func Attach(ctx context.Context, svc *Services, conf *config.Config) *cobra.Command {
	var registerSelf bool

	cmd := &cobra.Command{
		Use:     "attach",
		Short:   "Load the redirect eBPF program and attach it to the cgroup connect4 hook",
		Example: `redirector attach --emulatorIP 10.0.0.5 --emulatorPort 8080 --mode discovery`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := svc.Logger

			mode, err := conf.EngineMode()
			if err != nil {
				return err
			}
			if registerSelf && mode != models.ModeDiscovery {
				return errors.New("--register-self requires discovery mode")
			}

			emulatorIP, err := models.IPv4ToUint(conf.EmulatorIP)
			if err != nil {
				utils.LogError(logger, err, "invalid emulator IP", zap.String("ip", conf.EmulatorIP))
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			hookCtx := context.WithValue(gctx, models.ErrGroupKey, g)

			h := hooks.New(logger)
			opts := agent.HookCfg{
				Mode:         mode,
				EmulatorIP:   emulatorIP,
				EmulatorPort: conf.EmulatorPort,
				Debug:        conf.Debug,
				CgroupPath:   conf.CgroupPath,
				BpfObjPath:   conf.BpfObjPath,
				PinPath:      conf.PinPath,
			}
			if err := h.Load(hookCtx, opts); err != nil {
				utils.LogError(logger, err, "failed to load the redirect hooks")
				return err
			}

			if registerSelf {
				if err := h.RegisterSelf(hookCtx); err != nil {
					utils.LogError(logger, err, "failed to register this process as the emulator")
					return err
				}
				logger.Info("registered this process as the emulator")
			}

			g.Go(func() error {
				defer utils.Recover(logger)
				watchDebugToggle(hookCtx, svc, h, conf.Debug)
				return nil
			})

			logger.Info("redirect policy armed",
				zap.String("mode", string(mode)),
				zap.String("emulator", conf.EmulatorIP),
				zap.Uint16("port", conf.EmulatorPort),
			)

			<-ctx.Done()
			<-h.GetUnloadDone()
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&registerSelf, "register-self", false, "Latch this process's PID as the emulator (discovery mode only)")
	return cmd
}
