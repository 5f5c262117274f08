//go:build linux

// Package linux implements the cgroup connect4 hook loader on top of cilium/ebpf.
package linux

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"

	"go.mdsemu.io/redirector/pkg/agent"
	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.mdsemu.io/redirector/pkg/models"
	"go.mdsemu.io/redirector/utils"
	"go.uber.org/zap"
)

//go:generate sh -c "clang -O2 -g -target bpf -c ../../../../ebpf/redirect.c -o redirect_bpfel.o"

const (
	configMapName     = "map_config"
	discoveryProgName = "redirect_connect4"
	simpleProgName    = "redirect_connect4_simple"
)

const configMapKey = uint32(0)

func NewHooks(logger *zap.Logger) *Hooks {
	return &Hooks{
		logger:     logger,
		unloadDone: make(chan struct{}),
	}
}

type Hooks struct {
	logger *zap.Logger

	m sync.Mutex // protects the fields below across Load/unLoad

	configMap *ebpf.Map
	coll      *ebpf.Collection
	connect4  link.Link

	unloadDone      chan struct{}
	unloadDoneMutex sync.Mutex
}

func (h *Hooks) Load(ctx context.Context, opts agent.HookCfg) error {
	h.unloadDoneMutex.Lock()
	h.unloadDone = make(chan struct{})
	h.unloadDoneMutex.Unlock()

	if err := h.load(opts); err != nil {
		return err
	}

	g, ok := ctx.Value(models.ErrGroupKey).(*errgroup.Group)
	if !ok {
		return errors.New("failed to get the error group from the context")
	}

	g.Go(func() error {
		defer utils.Recover(h.logger)
		<-ctx.Done()
		h.unLoad()

		h.unloadDoneMutex.Lock()
		close(h.unloadDone)
		h.unloadDoneMutex.Unlock()
		return nil
	})

	return nil
}

func (h *Hooks) load(opts agent.HookCfg) error {
	// Allow the current process to lock memory for eBPF resources.
	if err := rlimit.RemoveMemlock(); err != nil {
		utils.LogError(h.logger, err, "failed to lock memory for eBPF resources")
		return err
	}

	spec, err := ebpf.LoadCollectionSpec(opts.BpfObjPath)
	if err != nil {
		utils.LogError(h.logger, err, "failed to load the redirect eBPF collection spec", zap.String("path", opts.BpfObjPath))
		return err
	}

	mapSpec, ok := spec.Maps[configMapName]
	if !ok {
		return fmt.Errorf("config map %q not found in %s", configMapName, opts.BpfObjPath)
	}
	// Pin the config map so the status command can read the live record
	// from another process.
	mapSpec.Pinning = ebpf.PinByName

	coll, err := ebpf.NewCollectionWithOptions(spec, ebpf.CollectionOptions{
		Maps: ebpf.MapOptions{PinPath: opts.PinPath},
	})
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			h.logger.Debug("verifier log: ", zap.String("err", strings.Join(ve.Log, "\n")))
		}
		utils.LogError(h.logger, err, "failed to load the redirect eBPF objects")
		return err
	}

	progName := discoveryProgName
	if opts.Mode == models.ModeSimple {
		progName = simpleProgName
	}
	prog, ok := coll.Programs[progName]
	if !ok {
		coll.Close()
		return fmt.Errorf("program %q not found in %s", progName, opts.BpfObjPath)
	}

	conf := structs.RedirectConfig{
		EmulatorPid:  0, // Discovered later through the handshake.
		EmulatorIP:   opts.EmulatorIP,
		EmulatorPort: opts.EmulatorPort,
	}
	if opts.Debug {
		conf.Debug = 1
	}
	key := configMapKey
	if err := coll.Maps[configMapName].Update(&key, &conf, ebpf.UpdateAny); err != nil {
		coll.Close()
		utils.LogError(h.logger, err, "failed to provision the redirect config map")
		return err
	}

	c4, err := link.AttachCgroup(link.CgroupOptions{
		Path:    opts.CgroupPath,
		Attach:  ebpf.AttachCGroupInet4Connect,
		Program: prog,
	})
	if err != nil {
		coll.Close()
		utils.LogError(h.logger, err, "failed to attach the connect4 cgroup hook", zap.String("cgroup", opts.CgroupPath))
		return err
	}

	h.m.Lock()
	h.coll = coll
	h.configMap = coll.Maps[configMapName]
	h.connect4 = c4
	h.m.Unlock()

	h.logger.Debug("redirect policy armed",
		zap.String("mode", string(opts.Mode)),
		zap.String("emulator", fmt.Sprintf("%s:%d", models.UintToIPv4(opts.EmulatorIP), opts.EmulatorPort)),
	)
	return nil
}

func (h *Hooks) unLoad() {
	h.m.Lock()
	defer h.m.Unlock()

	if h.connect4 != nil {
		if err := h.connect4.Close(); err != nil {
			utils.LogError(h.logger, err, "failed to close the connect4 hook")
		}
		h.connect4 = nil
	}
	if h.configMap != nil {
		if err := h.configMap.Unpin(); err != nil {
			utils.LogError(h.logger, err, "failed to unpin the redirect config map")
		}
	}
	if h.coll != nil {
		h.coll.Close()
		h.coll = nil
		h.configMap = nil
	}
	h.logger.Info("eBPF resources released successfully...")
}

func (h *Hooks) GetUnloadDone() <-chan struct{} {
	h.unloadDoneMutex.Lock()
	defer h.unloadDoneMutex.Unlock()
	return h.unloadDone
}

// ReadPinnedConfig reads the live config record through the pinned map, for
// processes other than the one that loaded the hook.
func ReadPinnedConfig(pinPath string) (structs.RedirectConfig, error) {
	m, err := ebpf.LoadPinnedMap(filepath.Join(pinPath, configMapName), nil)
	if err != nil {
		return structs.RedirectConfig{}, fmt.Errorf("failed to open pinned config map: %w", err)
	}
	defer m.Close()

	var conf structs.RedirectConfig
	key := configMapKey
	if err := m.Lookup(&key, &conf); err != nil {
		return structs.RedirectConfig{}, fmt.Errorf("failed to look up the config record: %w", err)
	}
	return conf, nil
}
