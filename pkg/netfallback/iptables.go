//go:build linux

// Package netfallback prepares hosts that cannot run the cgroup connect4 hook:
// an iptables DNAT rule rewrites metadata-server traffic to the emulator, and
// the metadata address can be attached to the loopback interface so an
// emulator binds it directly. Unlike the eBPF policy there is no PID
// discovery here, so the emulator must not dial the metadata address itself.
package netfallback

import (
	"fmt"
	"strconv"

	"github.com/coreos/go-iptables/iptables"

	"go.mdsemu.io/redirector/pkg/models"
)

// EnsureRedirectRules appends the NAT and FORWARD rules that rewrite
// metadata-server traffic to the emulator. It returns a teardown function
// removing exactly the rules it added.
//
// Equivalent to:
//
//	iptables -t nat -A OUTPUT -d 169.254.169.254 -p tcp --dport 80 -j DNAT --to-destination <emulator>
//	iptables -A FORWARD -d <emulatorIP> -p tcp --dport <emulatorPort> -m state --state NEW,ESTABLISHED,RELATED -j ACCEPT
func EnsureRedirectRules(emulatorIP string, emulatorPort uint16) (func() error, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize iptables: %w", err)
	}

	natRule := []string{
		"-d", models.UintToIPv4(models.MetadataIP).String(),
		"-p", "tcp",
		"--dport", strconv.Itoa(int(models.MetadataPort)),
		"-j", "DNAT",
		"--to-destination", fmt.Sprintf("%s:%d", emulatorIP, emulatorPort),
	}
	if err := ipt.AppendUnique("nat", "OUTPUT", natRule...); err != nil {
		return nil, fmt.Errorf("failed to append the DNAT rule: %w", err)
	}

	forwardRule := []string{
		"-d", emulatorIP,
		"-p", "tcp",
		"--dport", strconv.Itoa(int(emulatorPort)),
		"-m", "state", "--state", "NEW,ESTABLISHED,RELATED",
		"-j", "ACCEPT",
	}
	if err := ipt.AppendUnique("filter", "FORWARD", forwardRule...); err != nil {
		_ = ipt.DeleteIfExists("nat", "OUTPUT", natRule...)
		return nil, fmt.Errorf("failed to append the FORWARD rule: %w", err)
	}

	return func() error {
		e1 := ipt.DeleteIfExists("filter", "FORWARD", forwardRule...)
		e2 := ipt.DeleteIfExists("nat", "OUTPUT", natRule...)
		if e1 != nil {
			return e1
		}
		return e2
	}, nil
}
