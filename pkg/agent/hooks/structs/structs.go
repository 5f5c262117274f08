// Package structs mirrors the data structures shared with the eBPF program.
package structs

// RedirectConfig is the value stored at index 0 of the config array map. The
// field layout must match struct Config in ebpf/redirect.c exactly.
//
// EmulatorPid is 0 until the emulator announces itself through the discovery
// handshake; after that it never changes. EmulatorIP and EmulatorPort are in
// host byte order and are written once by the loader before traffic flows.
type RedirectConfig struct {
	EmulatorPid  uint32
	EmulatorIP   uint32
	EmulatorPort uint16
	Debug        uint16
}
