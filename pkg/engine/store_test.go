package engine

import (
	"sync"
	"testing"

	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
)

func TestMemStoreEmptyLookup(t *testing.T) {
	store := NewMemStore()
	if _, ok := store.Get(); ok {
		t.Errorf("expected lookup on an unprovisioned store to fail")
	}
	if store.SetEmulatorPID(42) {
		t.Errorf("expected SetEmulatorPID on an unprovisioned store to fail")
	}
}

func TestMemStoreLatchIsOneShot(t *testing.T) {
	store := NewMemStore()
	store.Provision(structs.RedirectConfig{EmulatorIP: 0x0A000005, EmulatorPort: 8080})

	if !store.SetEmulatorPID(100) {
		t.Fatalf("expected first SetEmulatorPID to win")
	}
	if store.SetEmulatorPID(200) {
		t.Errorf("expected second SetEmulatorPID to lose")
	}

	conf, ok := store.Get()
	if !ok {
		t.Fatalf("expected record to be present")
	}
	if conf.EmulatorPid != 100 {
		t.Errorf("expected PID 100, got %d", conf.EmulatorPid)
	}
	if conf.EmulatorIP != 0x0A000005 || conf.EmulatorPort != 8080 {
		t.Errorf("latch must not disturb the rest of the record: %+v", conf)
	}
}

func TestMemStoreLatchUnderContention(t *testing.T) {
	const workers = 128

	store := NewMemStore()
	store.Provision(structs.RedirectConfig{EmulatorIP: 1, EmulatorPort: 1})

	var wg sync.WaitGroup
	var won sync.Map
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(pid uint32) {
			defer wg.Done()
			if store.SetEmulatorPID(pid) {
				won.Store(pid, struct{}{})
			}
		}(uint32(i + 1))
	}
	wg.Wait()

	winners := 0
	var winner uint32
	won.Range(func(k, _ any) bool {
		winners++
		winner = k.(uint32)
		return true
	})
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	conf, _ := store.Get()
	if conf.EmulatorPid != winner {
		t.Errorf("recorded PID %d does not match winner %d", conf.EmulatorPid, winner)
	}
}
