package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/utils"
	"go.uber.org/zap"
)

func init() {
	Register("generate-config", GenerateConfig)
}

// GenerateConfig writes the default configuration file.
func GenerateConfig(_ context.Context, svc *Services, _ *config.Config) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:     "generate-config",
		Short:   "Generate a redirector configuration file with default values",
		Example: `redirector generate-config -p /etc/redirector`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := svc.Logger

			data := []byte(strings.TrimLeft(config.GetDefaultConfig(), "\n"))

			file := filepath.Join(path, "redirector.yaml")
			if err := os.WriteFile(file, data, 0644); err != nil {
				utils.LogError(logger, err, "failed to write the config file", zap.String("path", file))
				return err
			}
			logger.Info("config file generated", zap.String("path", file))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", ".", "Directory the config file is written to")
	return cmd
}
