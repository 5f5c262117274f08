package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.mdsemu.io/redirector/cli"
	"go.mdsemu.io/redirector/utils"
	"go.mdsemu.io/redirector/utils/log"
)

// version is injected during build by ldflags.
var version string

func main() {
	if version == "" {
		version = "dev"
	}
	utils.Version = version

	logger, err := log.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize the logger:", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.Root(ctx, logger)
	if rootCmd == nil {
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
