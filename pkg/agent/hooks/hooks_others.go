//go:build !linux

package hooks

import (
	"context"
	"errors"

	"go.mdsemu.io/redirector/pkg/agent"
	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.uber.org/zap"
)

var errUnsupported = errors.New("cgroup connect hooks are only supported on linux")

func New(_ *zap.Logger) agent.Hooks {
	return unsupported{}
}

func ReadPinnedConfig(string) (structs.RedirectConfig, error) {
	return structs.RedirectConfig{}, errUnsupported
}

type unsupported struct{}

func (unsupported) Load(context.Context, agent.HookCfg) error { return errUnsupported }

func (unsupported) RegisterSelf(context.Context) error { return errUnsupported }

func (unsupported) ReadConfig() (structs.RedirectConfig, error) {
	return structs.RedirectConfig{}, errUnsupported
}

func (unsupported) SetDebug(bool) error { return errUnsupported }

func (unsupported) GetUnloadDone() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
