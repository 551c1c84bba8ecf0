// SPDX-License-Identifier: Apache-2.0

// Package vsock provides blocking stream sockets for the vSockets address
// family, used between a hypervisor host and the virtual machines it runs.
//
// The numeric value of the address family is not fixed: kernels with native
// support use AF_VSOCK, while older kernels and ESX expose the family through
// the /dev/vsock device. Every socket created by this package resolves the
// value on its own and keeps the device open for as long as the value is in
// use.
package vsock

import (
	"errors"
	"os"
)

const (
	// FamilyCandidate is the native AF_VSOCK value tried first.
	FamilyCandidate = 40

	// DevicePath is opened when the native family is unavailable.
	DevicePath = "/dev/vsock"

	// IoctlGetAFValue asks DevicePath for the runtime address family value.
	IoctlGetAFValue = 0x7b8

	// SOPeerHostVMID is the family level socket option that reports the
	// host-specific id of the virtual machine owning the peer endpoint.
	SOPeerHostVMID = 3

	// Backlog is the listen backlog used by every Listener.
	Backlog = 1
)

const (
	// CIDHypervisor addresses the hypervisor process.
	CIDHypervisor = 0x0

	// CIDLocal addresses the local machine through the loopback transport.
	CIDLocal = 0x1

	// CIDHost addresses processes on the host. Dial connects here.
	CIDHost = 0x2

	// CIDAny is the wildcard context id. Listen binds here.
	CIDAny = 0xFFFFFFFF
)

const (
	sockStream = 1
)

var (
	UnsupportedErr = errors.New("not supported on this platform")
	ResolveErr     = errors.New("unable to resolve vsock address family")
	ConnectErr     = errors.New("unable to connect to vsock")
	BindErr        = errors.New("unable to bind vsock")
	ListenErr      = errors.New("unable to listen on vsock")
	AcceptErr      = errors.New("unable to accept vsock connection")
	AddressErr     = errors.New("unable to query vsock address")
	TruncatedErr   = errors.New("vsock address truncated")
	OptionErr      = errors.New("unable to query vsock socket option")
	ReadErr        = errors.New("unable to read from vsock connection")
	WriteErr       = errors.New("unable to write to vsock connection")
	ShutdownErr    = errors.New("unable to shutdown vsock connection")
	CloseErr       = errors.New("unable to close vsock connection")
	ClosedErr      = errors.New("vsock connection closed")
)

// syscalls holds the primitives used while resolving a handle. Tests swap
// them to exercise the fallback path without kernel support.
type syscalls struct {
	socket     func(family int, kind int) (int, error)
	openDevice func(path string) (*os.File, error)
	familyOf   func(device *os.File) (int, error)
	close      func(fd int) error
}
