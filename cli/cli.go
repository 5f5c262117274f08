// Package cli implements the redirector command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.mdsemu.io/redirector/config"
	"go.uber.org/zap"
)

// Services holds what commands need at run time. Logger is replaced when the
// debug flag raises the log level, so commands must read it at RunE time.
type Services struct {
	Logger *zap.Logger
}

type HookFunc func(context.Context, *Services, *config.Config) *cobra.Command

// Registered holds the registered command hooks
var Registered map[string]HookFunc

func Register(name string, f HookFunc) {
	if Registered == nil {
		Registered = make(map[string]HookFunc)
	}
	Registered[name] = f
}
