package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/utils"
	"go.mdsemu.io/redirector/utils/log"
	"go.uber.org/zap"
)

var rootExamples = `
  Attach the redirect policy and keep it armed until interrupted:
	redirector attach --emulatorIP 10.0.0.5 --emulatorPort 8080

  Inspect the live policy state:
	redirector status

  Replay synthetic connect attempts through the decision engine:
	redirector diagnose
`

func SetFlags(logger *zap.Logger, cmd *cobra.Command, conf *config.Config) error {
	cmd.PersistentFlags().Bool("debug", conf.Debug, "Run in debug mode")
	cmd.PersistentFlags().String("configPath", conf.ConfigPath, "Path to the redirector configuration file")
	cmd.PersistentFlags().String("emulatorIP", conf.EmulatorIP, "IPv4 address of the emulator the metadata traffic is redirected to")
	cmd.PersistentFlags().Uint16("emulatorPort", conf.EmulatorPort, "TCP port of the emulator")
	cmd.PersistentFlags().String("mode", conf.Mode, "Engine variant: discovery or simple")
	cmd.PersistentFlags().String("cgroupPath", conf.CgroupPath, "cgroup2 mount the connect4 hook is attached to")
	cmd.PersistentFlags().String("bpfObjPath", conf.BpfObjPath, "Path to the compiled redirect eBPF object file")
	cmd.PersistentFlags().String("pinPath", conf.PinPath, "bpffs directory the config map is pinned under")

	err := viper.BindPFlags(cmd.PersistentFlags())
	if err != nil {
		logger.Error("failed to bind flags to config", zap.Error(err))
		return err
	}
	return nil
}

func checkPersistent(svc *Services, conf *config.Config) error {
	logger := svc.Logger

	if path := viper.GetString("configPath"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			logger.Error("failed to read the config file", zap.String("path", path), zap.Error(err))
			return err
		}
	}

	if err := viper.Unmarshal(conf); err != nil {
		logger.Error("failed to unmarshal the config", zap.Error(err))
		return err
	}

	if _, err := conf.EngineMode(); err != nil {
		logger.Error("invalid engine mode", zap.Error(err))
		return err
	}

	if conf.Debug {
		debugLogger, err := log.ChangeLogLevel(zap.DebugLevel)
		if err != nil {
			utils.LogError(logger, err, "failed to change log level to debug")
			return err
		}
		svc.Logger = debugLogger
	}

	svc.Logger.Debug("initialized with configuration", zap.Any("conf", conf))
	return nil
}

// Root builds the root command and wires every registered subcommand under it.
func Root(ctx context.Context, logger *zap.Logger) *cobra.Command {
	conf := config.New()
	svc := &Services{Logger: logger}

	var rootCmd = &cobra.Command{
		Use:     "redirector",
		Short:   "Transparent redirection of metadata-server traffic to a local emulator",
		Example: rootExamples,
		Version: utils.Version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return checkPersistent(svc, conf)
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(`{{with .Version}}{{printf "redirector %s" .}}{{end}}{{"\n"}}`)

	if err := SetFlags(logger, rootCmd, conf); err != nil {
		logger.Error("failed to set flags on the root command", zap.Error(err))
		return nil
	}

	for _, f := range Registered {
		if cmd := f(ctx, svc, conf); cmd != nil {
			rootCmd.AddCommand(cmd)
		}
	}
	return rootCmd
}
