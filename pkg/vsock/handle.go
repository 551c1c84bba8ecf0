// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"errors"
	"os"
	"sync/atomic"
)

const (
	stateOpen = iota
	stateClosed
)

// handle owns a socket descriptor together with the address family value it
// was created with. When the family came from DevicePath the device stays
// open until the handle is closed, since closing it invalidates the value.
type handle struct {
	state  atomic.Uint32
	fd     int
	family int
	device *os.File
}

func newHandle(fd int, family int, device *os.File) *handle {
	return &handle{
		fd:     fd,
		family: family,
		device: device,
	}
}

func resolve(kind int) (*handle, error) {
	fd, err := sys.socket(FamilyCandidate, kind)
	if err == nil {
		return newHandle(fd, FamilyCandidate, nil), nil
	}

	device, err := sys.openDevice(DevicePath)
	if err != nil {
		return nil, errors.Join(ResolveErr, err)
	}
	family, err := sys.familyOf(device)
	if err != nil {
		_ = device.Close()
		return nil, errors.Join(ResolveErr, err)
	}
	fd, err = sys.socket(family, kind)
	if err != nil {
		_ = device.Close()
		return nil, errors.Join(ResolveErr, err)
	}
	return newHandle(fd, family, device), nil
}

// dupDevice returns a new reference to the device, or nil when the family is
// native.
func (h *handle) dupDevice() (*os.File, error) {
	if h.device == nil {
		return nil, nil
	}
	fd, err := dup(int(h.device.Fd()))
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), h.device.Name()), nil
}

func (h *handle) closed() bool {
	return h.state.Load() == stateClosed
}

// Close releases the descriptor and the device, if any. Only the first call
// does anything.
func (h *handle) Close() error {
	if !h.state.CompareAndSwap(stateOpen, stateClosed) {
		return nil
	}
	err := sys.close(h.fd)
	if h.device != nil {
		if _err := h.device.Close(); _err != nil {
			err = errors.Join(err, _err)
		}
	}
	if err != nil {
		return errors.Join(CloseErr, err)
	}
	return nil
}
