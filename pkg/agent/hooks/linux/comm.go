//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cilium/ebpf"

	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.mdsemu.io/redirector/pkg/models"
	"go.uber.org/zap"
)

// RegisterSelf dials the reserved discovery address once so the kernel
// program latches the calling process's PID. The address is non-routable and
// the hook blocks the attempt, so the dial succeeding means the hook is not
// armed.
func (h *Hooks) RegisterSelf(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", models.UintToIPv4(models.DiscoveryIP), models.DiscoveryPort)
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err == nil {
		conn.Close()
		return errors.New("pid discovery connection was supposed to return an error")
	}

	conf, err := h.ReadConfig()
	if err != nil {
		return err
	}
	if conf.EmulatorPid == 0 {
		return errors.New("pid discovery handshake did not latch a PID")
	}
	h.logger.Debug("registered emulator PID with the redirect policy")
	return nil
}

// SetDebug flips the record's debug flag. The kernel program's only write is
// the one-shot PID latch, so the read-modify-write below is done under the
// hooks mutex and re-reads the record right before updating to keep the
// window for losing a concurrent latch as small as the map API allows.
func (h *Hooks) SetDebug(enabled bool) error {
	h.m.Lock()
	defer h.m.Unlock()
	if h.configMap == nil {
		return errors.New("redirect hooks are not loaded")
	}

	key := configMapKey
	var conf structs.RedirectConfig
	if err := h.configMap.Lookup(&key, &conf); err != nil {
		return fmt.Errorf("failed to look up the config record: %w", err)
	}

	conf.Debug = 0
	if enabled {
		conf.Debug = 1
	}
	if err := h.configMap.Update(&key, &conf, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("failed to update the config record: %w", err)
	}
	h.logger.Info("debug flag updated", zap.Bool("debug", enabled))
	return nil
}

// ReadConfig returns the live config record, including any PID latched since
// Load.
func (h *Hooks) ReadConfig() (structs.RedirectConfig, error) {
	h.m.Lock()
	defer h.m.Unlock()
	if h.configMap == nil {
		return structs.RedirectConfig{}, errors.New("redirect hooks are not loaded")
	}

	var conf structs.RedirectConfig
	key := configMapKey
	if err := h.configMap.Lookup(&key, &conf); err != nil {
		return structs.RedirectConfig{}, fmt.Errorf("failed to look up the config record: %w", err)
	}
	return conf, nil
}
