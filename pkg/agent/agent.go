// Package agent defines the contract between the CLI and the platform hook
// loaders.
package agent

import (
	"context"

	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.mdsemu.io/redirector/pkg/models"
)

// HookCfg carries everything the loader needs to arm the redirect policy.
type HookCfg struct {
	Mode         models.Mode
	EmulatorIP   uint32
	EmulatorPort uint16
	Debug        bool
	CgroupPath   string
	BpfObjPath   string
	PinPath      string
}

// Hooks is the loader's contract towards the CLI. Load arms the policy and
// registers teardown on the context's errgroup; the hook detaches when the
// context is cancelled.
type Hooks interface {
	Load(ctx context.Context, opts HookCfg) error

	// RegisterSelf performs the discovery handshake: it dials the reserved
	// discovery address so the kernel program latches the calling process's
	// PID. The dial must fail, because the hook blocks it. Only meaningful
	// in discovery mode, and only from the emulator process itself.
	RegisterSelf(ctx context.Context) error

	// ReadConfig returns the live config record, including any PID latched
	// since Load.
	ReadConfig() (structs.RedirectConfig, error)

	// SetDebug flips the record's debug flag without disturbing the rest of
	// the record, in particular a latched PID.
	SetDebug(enabled bool) error

	GetUnloadDone() <-chan struct{}
}
