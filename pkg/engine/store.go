package engine

import (
	"sync/atomic"

	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
)

// Store is the engine's view of the singleton config record. Get reports
// false when no record has been provisioned yet. SetEmulatorPID performs the
// one-shot 0→pid transition and reports whether this call won it; once the
// PID is set there is no reset path.
type Store interface {
	Get() (structs.RedirectConfig, bool)
	SetEmulatorPID(pid uint32) bool
}

// MemStore keeps the record in an atomically swapped cell. Readers always
// observe a complete record, either pre- or post-discovery, never a partial
// write.
type MemStore struct {
	rec atomic.Pointer[structs.RedirectConfig]
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

// Provision installs the record. Called by the controller before traffic
// flows; calling it again replaces the whole record, including any
// discovered PID.
func (s *MemStore) Provision(cfg structs.RedirectConfig) {
	s.rec.Store(&cfg)
}

func (s *MemStore) Get() (structs.RedirectConfig, bool) {
	rec := s.rec.Load()
	if rec == nil {
		return structs.RedirectConfig{}, false
	}
	return *rec, true
}

func (s *MemStore) SetEmulatorPID(pid uint32) bool {
	for {
		cur := s.rec.Load()
		if cur == nil || cur.EmulatorPid != 0 {
			return false
		}
		next := *cur
		next.EmulatorPid = pid
		if s.rec.CompareAndSwap(cur, &next) {
			return true
		}
	}
}
