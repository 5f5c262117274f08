package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go.mdsemu.io/redirector/pkg/agent/hooks/structs"
	"go.mdsemu.io/redirector/pkg/models"
)

const (
	emulatorIP   = 0x0A000005 // 10.0.0.5
	emulatorPort = 8080
)

func newTestEngine(t *testing.T, mode models.Mode, pid uint32) (*Engine, *MemStore) {
	t.Helper()
	store := NewMemStore()
	store.Provision(structs.RedirectConfig{
		EmulatorPid:  pid,
		EmulatorIP:   emulatorIP,
		EmulatorPort: emulatorPort,
	})
	return New(zap.NewNop(), mode, store), store
}

func metadataAttempt(pid uint32) *models.ConnectAttempt {
	return &models.ConnectAttempt{
		Family:    models.FamilyIPv4,
		Protocol:  models.ProtocolTCP,
		DestIP:    models.MetadataIP,
		DestPort:  models.MetadataPort,
		CallerPID: pid,
	}
}

func discoveryAttempt(pid uint32) *models.ConnectAttempt {
	return &models.ConnectAttempt{
		Family:    models.FamilyIPv4,
		Protocol:  models.ProtocolTCP,
		DestIP:    models.DiscoveryIP,
		DestPort:  models.DiscoveryPort,
		CallerPID: pid,
	}
}

func TestDecideIgnoresOtherProtocols(t *testing.T) {
	for _, mode := range []models.Mode{models.ModeDiscovery, models.ModeSimple} {
		t.Run(string(mode), func(t *testing.T) {
			eng, _ := newTestEngine(t, mode, 0)

			udp := metadataAttempt(101)
			udp.Protocol = 17
			require.Equal(t, models.Allow, eng.Decide(udp))
			require.Equal(t, models.MetadataIP, udp.DestIP, "destination must not be touched")

			ipv6 := metadataAttempt(101)
			ipv6.Family = 10
			require.Equal(t, models.Allow, eng.Decide(ipv6))
		})
	}
}

func TestDecideIgnoresUnwatchedDestinations(t *testing.T) {
	for _, mode := range []models.Mode{models.ModeDiscovery, models.ModeSimple} {
		t.Run(string(mode), func(t *testing.T) {
			eng, _ := newTestEngine(t, mode, 42)

			attempts := []*models.ConnectAttempt{
				{Family: models.FamilyIPv4, Protocol: models.ProtocolTCP, DestIP: 0x08080808, DestPort: 443, CallerPID: 7},
				// Right IP, wrong port and vice versa.
				{Family: models.FamilyIPv4, Protocol: models.ProtocolTCP, DestIP: models.MetadataIP, DestPort: 8080, CallerPID: 7},
				{Family: models.FamilyIPv4, Protocol: models.ProtocolTCP, DestIP: 0x0A000001, DestPort: models.MetadataPort, CallerPID: 7},
			}
			for _, a := range attempts {
				ip, port := a.DestIP, a.DestPort
				require.Equal(t, models.Allow, eng.Decide(a))
				require.Equal(t, ip, a.DestIP)
				require.Equal(t, port, a.DestPort)
			}
		})
	}
}

func TestDecideDiscoveryRegistersAndBlocks(t *testing.T) {
	eng, store := newTestEngine(t, models.ModeDiscovery, 0)

	verdict := eng.Decide(discoveryAttempt(1234))
	require.Equal(t, models.Block, verdict)

	conf, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, uint32(1234), conf.EmulatorPid)
}

func TestDecideDiscoveryIsTerminal(t *testing.T) {
	eng, store := newTestEngine(t, models.ModeDiscovery, 0)

	require.Equal(t, models.Block, eng.Decide(discoveryAttempt(1234)))

	// Repeated discovery attempts from any process must not change the
	// registered PID.
	eng.Decide(discoveryAttempt(5678))
	eng.Decide(discoveryAttempt(1234))

	conf, _ := store.Get()
	require.Equal(t, uint32(1234), conf.EmulatorPid)
}

func TestDecideMetadataBeforeDiscoveryAllows(t *testing.T) {
	eng, store := newTestEngine(t, models.ModeDiscovery, 0)

	a := metadataAttempt(777)
	require.Equal(t, models.Allow, eng.Decide(a))
	require.Equal(t, models.MetadataIP, a.DestIP)
	require.Equal(t, models.MetadataPort, a.DestPort)

	conf, _ := store.Get()
	require.Equal(t, uint32(0), conf.EmulatorPid, "premature metadata access must not register a PID")
}

func TestDecideExemptsEmulatorProcess(t *testing.T) {
	eng, _ := newTestEngine(t, models.ModeDiscovery, 1234)

	a := metadataAttempt(1234)
	require.Equal(t, models.Allow, eng.Decide(a))
	require.Equal(t, models.MetadataIP, a.DestIP)
	require.Equal(t, models.MetadataPort, a.DestPort)
}

func TestDecideRedirectsMetadata(t *testing.T) {
	eng, _ := newTestEngine(t, models.ModeDiscovery, 1234)

	a := metadataAttempt(5678)
	verdict := eng.Decide(a)
	require.Equal(t, models.VerdictRedirect, verdict.Kind)
	require.Equal(t, uint32(emulatorIP), a.DestIP)
	require.Equal(t, uint16(emulatorPort), a.DestPort)
}

func TestDecideSimpleModeRedirectsEveryone(t *testing.T) {
	eng, _ := newTestEngine(t, models.ModeSimple, 0)

	// Including what would be the emulator's own traffic: simple mode has
	// no PID and no self-exemption.
	for _, pid := range []uint32{1234, 5678} {
		a := metadataAttempt(pid)
		require.Equal(t, models.VerdictRedirect, eng.Decide(a).Kind)
		require.Equal(t, uint32(emulatorIP), a.DestIP)
		require.Equal(t, uint16(emulatorPort), a.DestPort)
	}
}

func TestDecideSimpleModeIgnoresDiscovery(t *testing.T) {
	eng, store := newTestEngine(t, models.ModeSimple, 0)

	a := discoveryAttempt(1234)
	require.Equal(t, models.Allow, eng.Decide(a))
	require.Equal(t, models.DiscoveryIP, a.DestIP)

	conf, _ := store.Get()
	require.Equal(t, uint32(0), conf.EmulatorPid)
}

func TestDecideWithoutConfigurationFailsOpen(t *testing.T) {
	store := NewMemStore()
	eng := New(zap.NewNop(), models.ModeDiscovery, store)

	a := metadataAttempt(777)
	require.Equal(t, models.Allow, eng.Decide(a))
	require.Equal(t, models.MetadataIP, a.DestIP)
	require.Equal(t, models.MetadataPort, a.DestPort)

	require.Equal(t, models.Allow, eng.Decide(discoveryAttempt(777)))
	_, ok := store.Get()
	require.False(t, ok, "discovery must not provision a record")
}

func TestDecideConcurrentDiscoveryRegistersOnce(t *testing.T) {
	const workers = 64

	eng, store := newTestEngine(t, models.ModeDiscovery, 0)

	var wg sync.WaitGroup
	blocks := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := eng.Decide(discoveryAttempt(uint32(1000 + i)))
			blocks[i] = v.Kind == models.VerdictBlock
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, b := range blocks {
		if b {
			winners++
		}
	}
	require.Equal(t, 1, winners, "exactly one discovery attempt must win the latch")

	conf, _ := store.Get()
	require.GreaterOrEqual(t, conf.EmulatorPid, uint32(1000))
	require.Less(t, conf.EmulatorPid, uint32(1000+workers))
}
