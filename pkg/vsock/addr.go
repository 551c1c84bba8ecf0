// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"fmt"
	"net"
)

var _ net.Addr = &Addr{}

// An Addr is a snapshot of the local or remote address of a vsock socket.
type Addr struct {
	Family    uint8
	Port      uint32
	ContextID uint32

	length uint32
}

// Len returns the number of bytes the kernel wrote for this address.
func (a *Addr) Len() int { return int(a.length) }

// Network returns the address's network name, "vsock".
func (a *Addr) Network() string { return "vsock" }

func (a *Addr) String() string {
	var host string
	switch a.ContextID {
	case CIDHypervisor:
		host = fmt.Sprintf("hypervisor(%d)", a.ContextID)
	case CIDLocal:
		host = fmt.Sprintf("local(%d)", a.ContextID)
	case CIDHost:
		host = fmt.Sprintf("host(%d)", a.ContextID)
	case CIDAny:
		host = "any"
	default:
		host = fmt.Sprintf("vm(%d)", a.ContextID)
	}
	return fmt.Sprintf("%s:%d", host, a.Port)
}
