// Package models provides data models shared by the redirect engine and the hook loader.
package models

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Address family and protocol values as seen by the connect4 hook.
const (
	FamilyIPv4  uint16 = 2 // AF_INET
	ProtocolTCP uint8  = 6 // IPPROTO_TCP
)

// Reserved destinations watched by the engine. MetadataIP:MetadataPort is the
// endpoint that gets rewritten to the emulator. DiscoveryIP:DiscoveryPort is a
// non-routable signaling address: the emulator dials it once at startup so the
// engine can latch its PID.
const (
	MetadataIP   uint32 = 0xA9FEA9FE // 169.254.169.254
	MetadataPort uint16 = 80

	DiscoveryIP   uint32 = 0xA9FEC4F5 // 169.254.196.245
	DiscoveryPort uint16 = 12345
)

// Mode selects the engine variant.
type Mode string

const (
	// ModeDiscovery latches the emulator PID through the discovery handshake
	// and exempts the emulator's own traffic from redirection.
	ModeDiscovery Mode = "discovery"
	// ModeSimple redirects every matching metadata attempt unconditionally,
	// with no PID tracking.
	ModeSimple Mode = "simple"
)

func (m Mode) Valid() bool {
	return m == ModeDiscovery || m == ModeSimple
}

// ConnectAttempt is one outbound connect seen by the hook. Destination fields
// are in host byte order. The engine mutates DestIP/DestPort in place when it
// returns VerdictRedirect.
type ConnectAttempt struct {
	Family    uint16
	Protocol  uint8
	DestIP    uint32
	DestPort  uint16
	CallerPID uint32
}

func (a *ConnectAttempt) String() string {
	return fmt.Sprintf("pid=%d dst=%s:%d", a.CallerPID, UintToIPv4(a.DestIP), a.DestPort)
}

// VerdictKind is the engine's decision for one connect attempt.
type VerdictKind int

const (
	// VerdictAllow lets the attempt proceed to its original destination.
	VerdictAllow VerdictKind = iota
	// VerdictBlock rejects the attempt. Only the discovery handshake is blocked.
	VerdictBlock
	// VerdictRedirect lets the attempt proceed after the destination was
	// rewritten to the emulator.
	VerdictRedirect
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictAllow:
		return "allow"
	case VerdictBlock:
		return "block"
	case VerdictRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Verdict carries the decision and, for redirects, the rewritten destination.
type Verdict struct {
	Kind VerdictKind
	IP   uint32
	Port uint16
}

var (
	Allow = Verdict{Kind: VerdictAllow}
	Block = Verdict{Kind: VerdictBlock}
)

func Redirect(ip uint32, port uint16) Verdict {
	return Verdict{Kind: VerdictRedirect, IP: ip, Port: port}
}

// IPv4ToUint converts a dotted-quad IPv4 string to its host-order integer form.
func IPv4ToUint(ipStr string) (uint32, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return 0, fmt.Errorf("failed to parse IP address: %s", ipStr)
	}
	ip = ip.To4()
	if ip == nil {
		return 0, fmt.Errorf("not a valid IPv4 address: %s", ipStr)
	}
	return binary.BigEndian.Uint32(ip), nil
}

// UintToIPv4 is the inverse of IPv4ToUint.
func UintToIPv4(v uint32) net.IP {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}
