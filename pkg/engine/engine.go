// Package engine implements the redirect decision logic for outbound IPv4 TCP
// connect attempts. It is the userspace model of the cgroup/connect4 program
// in ebpf/redirect.c: both apply the same policy, and this package is the one
// that tests and the diagnose command run against.
package engine

import (
	"go.mdsemu.io/redirector/pkg/models"
	"go.uber.org/zap"
)

type Engine struct {
	logger *zap.Logger
	mode   models.Mode
	store  Store
}

func New(logger *zap.Logger, mode models.Mode, store Store) *Engine {
	return &Engine{
		logger: logger,
		mode:   mode,
		store:  store,
	}
}

func (e *Engine) Mode() models.Mode {
	return e.mode
}

// Decide classifies one connect attempt and returns the verdict. On
// VerdictRedirect the attempt's destination fields are rewritten in place.
// Every failure path degrades to allow: the policy must never be the reason
// legitimate traffic breaks.
func (e *Engine) Decide(attempt *models.ConnectAttempt) models.Verdict {
	if attempt.Family != models.FamilyIPv4 || attempt.Protocol != models.ProtocolTCP {
		return models.Allow
	}

	metadata := attempt.DestIP == models.MetadataIP && attempt.DestPort == models.MetadataPort
	discovery := attempt.DestIP == models.DiscoveryIP && attempt.DestPort == models.DiscoveryPort

	if e.mode == models.ModeSimple {
		// The simple variant watches only the metadata destination and
		// redirects unconditionally, including the emulator's own traffic.
		if !metadata {
			return models.Allow
		}
		return e.redirect(attempt)
	}

	if !metadata && !discovery {
		return models.Allow
	}

	conf, ok := e.store.Get()
	if !ok {
		e.logger.Error("redirect decision requested without configuration")
		return models.Allow
	}

	if conf.EmulatorPid == 0 {
		if discovery {
			if e.store.SetEmulatorPID(attempt.CallerPID) {
				if conf.Debug != 0 {
					e.logger.Debug("discovered emulator PID", zap.Uint32("pid", attempt.CallerPID))
				}
				return models.Block
			}
			// Lost the latch to a concurrent discovery attempt; fall
			// through and evaluate against the registered state.
			conf, ok = e.store.Get()
			if !ok {
				return models.Allow
			}
		} else {
			e.logger.Error("redirect decision requested before emulator PID discovery")
			return models.Allow
		}
	}

	if attempt.CallerPID == conf.EmulatorPid {
		if conf.Debug != 0 {
			e.logger.Debug("not redirecting connection from emulator process", zap.Uint32("pid", attempt.CallerPID))
		}
		return models.Allow
	}

	return e.redirect(attempt)
}

func (e *Engine) redirect(attempt *models.ConnectAttempt) models.Verdict {
	conf, ok := e.store.Get()
	if !ok {
		e.logger.Error("redirect decision requested without configuration")
		return models.Allow
	}
	attempt.DestIP = conf.EmulatorIP
	attempt.DestPort = conf.EmulatorPort
	if conf.Debug != 0 {
		e.logger.Debug("redirecting connection to emulator",
			zap.String("target", models.UintToIPv4(conf.EmulatorIP).String()),
			zap.Uint16("port", conf.EmulatorPort),
			zap.Uint32("pid", attempt.CallerPID),
		)
	}
	return models.Redirect(conf.EmulatorIP, conf.EmulatorPort)
}
