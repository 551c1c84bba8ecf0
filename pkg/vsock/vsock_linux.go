//go:build linux

// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var sys = syscalls{
	socket:     socket,
	openDevice: os.Open,
	familyOf:   familyOf,
	close:      unix.Close,
}

func socket(family int, kind int) (int, error) {
	return unix.Socket(family, kind|unix.SOCK_CLOEXEC, 0)
}

func familyOf(device *os.File) (int, error) {
	family, err := unix.IoctlGetUint32(int(device.Fd()), IoctlGetAFValue)
	if err != nil {
		return 0, err
	}
	return int(family), nil
}

// unix.Sockaddr cannot carry a family value resolved at runtime, so the
// address calls below pass rawSockaddr straight to the kernel.

func connect(fd int, rsa *rawSockaddr) error {
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(rsa)), sizeofSockaddr)
	if errno != 0 {
		return errno
	}
	return nil
}

func bind(fd int, rsa *rawSockaddr) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(rsa)), sizeofSockaddr)
	if errno != 0 {
		return errno
	}
	return nil
}

func listen(fd int, backlog int) error {
	return unix.Listen(fd, backlog)
}

func accept(fd int, rsa *rawSockaddr, length *uint32) (int, error) {
	nfd, _, errno := unix.Syscall6(unix.SYS_ACCEPT4, uintptr(fd), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(length)), unix.SOCK_CLOEXEC, 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(nfd), nil
}

func getsockname(fd int, rsa *rawSockaddr, length *uint32) error {
	_, _, errno := unix.RawSyscall(unix.SYS_GETSOCKNAME, uintptr(fd), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(length)))
	if errno != 0 {
		return errno
	}
	return nil
}

func getpeername(fd int, rsa *rawSockaddr, length *uint32) error {
	_, _, errno := unix.RawSyscall(unix.SYS_GETPEERNAME, uintptr(fd), uintptr(unsafe.Pointer(rsa)), uintptr(unsafe.Pointer(length)))
	if errno != 0 {
		return errno
	}
	return nil
}

func getsockoptInt(fd int, level int, opt int) (int, error) {
	return unix.GetsockoptInt(fd, level, opt)
}

func recv(fd int, b []byte) (int, error) {
	return unix.Read(fd, b)
}

func send(fd int, b []byte) (int, error) {
	return unix.Write(fd, b)
}

func shutdown(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_RDWR)
}

func dup(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
}

func domainOf(fd int) (int, error) {
	return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DOMAIN)
}
