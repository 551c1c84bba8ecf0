//go:build !linux

// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"os"
)

var sys = syscalls{
	socket:     func(int, int) (int, error) { return -1, UnsupportedErr },
	openDevice: func(string) (*os.File, error) { return nil, UnsupportedErr },
	familyOf:   func(*os.File) (int, error) { return 0, UnsupportedErr },
	close:      func(int) error { return UnsupportedErr },
}

func connect(int, *rawSockaddr) error { return UnsupportedErr }

func bind(int, *rawSockaddr) error { return UnsupportedErr }

func listen(int, int) error { return UnsupportedErr }

func accept(int, *rawSockaddr, *uint32) (int, error) { return -1, UnsupportedErr }

func getsockname(int, *rawSockaddr, *uint32) error { return UnsupportedErr }

func getpeername(int, *rawSockaddr, *uint32) error { return UnsupportedErr }

func getsockoptInt(int, int, int) (int, error) { return 0, UnsupportedErr }

func recv(int, []byte) (int, error) { return 0, UnsupportedErr }

func send(int, []byte) (int, error) { return 0, UnsupportedErr }

func shutdown(int) error { return UnsupportedErr }

func dup(int) (int, error) { return -1, UnsupportedErr }

func domainOf(int) (int, error) { return 0, UnsupportedErr }
