// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"errors"
	"iter"
	"os"
)

// A Listener accepts vsock stream connections on a single port.
type Listener struct {
	h *handle
}

// Listen binds to port on every local context id and starts listening with
// a backlog of Backlog pending connections.
func Listen(port uint32) (*Listener, error) {
	h, err := resolve(sockStream)
	if err != nil {
		return nil, err
	}
	rsa := newRawSockaddr(h.family, CIDAny, port)
	if err = bind(h.fd, &rsa); err != nil {
		_ = h.Close()
		return nil, errors.Join(BindErr, err)
	}
	if err = listen(h.fd, Backlog); err != nil {
		_ = h.Close()
		return nil, errors.Join(ListenErr, err)
	}
	return &Listener{h: h}, nil
}

// FileListener returns a Listener for a copy of the listening socket f. The
// address family is read back from the socket. The caller still owns f.
func FileListener(f *os.File) (*Listener, error) {
	fd, err := dup(int(f.Fd()))
	if err != nil {
		return nil, errors.Join(ListenErr, err)
	}
	family, err := domainOf(fd)
	if err != nil {
		_ = sys.close(fd)
		return nil, errors.Join(ListenErr, err)
	}
	return &Listener{h: newHandle(fd, family, nil)}, nil
}

// Accept blocks until a connection arrives. The returned Stream reuses the
// listener's address family and owns its own descriptor, along with its own
// reference to the device the family came from, if any. A failed Accept
// leaves the Listener usable.
func (l *Listener) Accept() (*Stream, *Addr, error) {
	if l.h.closed() {
		return nil, nil, errors.Join(AcceptErr, ClosedErr)
	}
	fd := -1
	remote, err := queryAddr(func(rsa *rawSockaddr, length *uint32) (err error) {
		fd, err = accept(l.h.fd, rsa, length)
		return err
	})
	if err != nil {
		if fd >= 0 {
			_ = sys.close(fd)
		}
		return nil, nil, errors.Join(AcceptErr, err)
	}
	device, err := l.h.dupDevice()
	if err != nil {
		_ = sys.close(fd)
		return nil, nil, errors.Join(AcceptErr, err)
	}
	return newStream(newHandle(fd, l.h.family, device)), remote, nil
}

// LocalAddr returns the address the listener is bound to.
func (l *Listener) LocalAddr() (*Addr, error) {
	return conn{h: l.h}.LocalAddr()
}

// Family returns the address family value the listener was created with.
func (l *Listener) Family() int { return l.h.family }

// Fd returns the listening descriptor. The Listener keeps ownership of it.
func (l *Listener) Fd() int { return l.h.fd }

// Close stops listening. Accepted streams are not closed.
func (l *Listener) Close() error {
	return l.h.Close()
}

// Incoming returns an endless sequence of accepted connections.
func (l *Listener) Incoming() *Incoming {
	return &Incoming{listener: l}
}

// Incoming calls Accept once per advance and never ends on its own; callers
// stop iterating when they decide an error is fatal.
type Incoming struct {
	listener *Listener
}

// Next accepts the next connection.
func (i *Incoming) Next() (*Stream, error) {
	stream, _, err := i.listener.Accept()
	return stream, err
}

// All yields the result of every Next until the consumer breaks.
func (i *Incoming) All() iter.Seq2[*Stream, error] {
	return func(yield func(*Stream, error) bool) {
		for {
			if !yield(i.Next()) {
				return
			}
		}
	}
}
