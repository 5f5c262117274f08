//go:build linux

package netfallback

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"go.mdsemu.io/redirector/pkg/models"
)

const loopbackAddrLabel = "lo:mds-emu"

func metadataLoopbackAddr() (*netlink.Addr, error) {
	a, err := netlink.ParseAddr(models.UintToIPv4(models.MetadataIP).String() + "/32")
	if err != nil {
		return nil, err
	}
	a.Label = loopbackAddrLabel
	a.Scope = int(netlink.SCOPE_HOST)
	return a, nil
}

// AttachLoopbackAddress attaches the metadata-server address to the loopback
// interface with a host scope so an emulator can listen on it directly. It
// returns a teardown function removing the address. Attaching is idempotent:
// an address left over from a previous run with the same label is reused.
func AttachLoopbackAddress() (func() error, error) {
	addr, err := metadataLoopbackAddr()
	if err != nil {
		return nil, fmt.Errorf("failed to build the metadata loopback address: %w", err)
	}

	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return nil, fmt.Errorf("failed to load the loopback interface: %w", err)
	}

	teardown := func() error {
		return netlink.AddrDel(lo, addr)
	}

	loAddrs, err := netlink.AddrList(lo, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("failed to list loopback addresses: %w", err)
	}
	for _, a := range loAddrs {
		if !a.Equal(*addr) {
			continue
		}
		if got := a.String(); got != addr.String() {
			return nil, fmt.Errorf("the metadata address is already present on the loopback interface with different attributes: %s", got)
		}
		// Left over from a previous run.
		return teardown, nil
	}

	if err := netlink.AddrAdd(lo, addr); err != nil {
		return nil, fmt.Errorf("failed to attach the metadata address to the loopback interface: %w", err)
	}
	return teardown, nil
}
