// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"errors"
	"io"
)

// ReadWriteFlusher is implemented by both Stream and View.
type ReadWriteFlusher interface {
	io.Reader
	io.Writer
	Flush() error
}

var (
	_ ReadWriteFlusher   = (*Stream)(nil)
	_ ReadWriteFlusher   = View{}
	_ io.ReadWriteCloser = (*Stream)(nil)
)

// conn carries every operation that only needs the descriptor. It never
// closes the handle, so it can be shared by owning and borrowed values.
type conn struct {
	h *handle
}

// Family returns the address family value the socket was created with.
func (c conn) Family() int { return c.h.family }

// LocalAddr returns the local address of the connection.
func (c conn) LocalAddr() (*Addr, error) {
	if c.h.closed() {
		return nil, errors.Join(AddressErr, ClosedErr)
	}
	addr, err := queryAddr(func(rsa *rawSockaddr, length *uint32) error {
		return getsockname(c.h.fd, rsa, length)
	})
	if err != nil {
		return nil, errors.Join(AddressErr, err)
	}
	return addr, nil
}

// PeerAddr returns the remote address of the connection.
func (c conn) PeerAddr() (*Addr, error) {
	if c.h.closed() {
		return nil, errors.Join(AddressErr, ClosedErr)
	}
	addr, err := queryAddr(func(rsa *rawSockaddr, length *uint32) error {
		return getpeername(c.h.fd, rsa, length)
	})
	if err != nil {
		return nil, errors.Join(AddressErr, err)
	}
	return addr, nil
}

// PeerHostVMID returns the host-specific id of the virtual machine that owns
// the peer endpoint. It is only available on connections accepted by a
// privileged endpoint on an ESX host; everywhere else the option query fails.
func (c conn) PeerHostVMID() (int32, error) {
	if c.h.closed() {
		return 0, errors.Join(OptionErr, ClosedErr)
	}
	id, err := getsockoptInt(c.h.fd, c.h.family, SOPeerHostVMID)
	if err != nil {
		return 0, errors.Join(OptionErr, err)
	}
	return int32(id), nil
}

// Recv performs a single blocking receive. It returns 0 and a nil error once
// the peer has shut down its side of the connection.
func (c conn) Recv(b []byte) (int, error) {
	if c.h.closed() {
		return 0, errors.Join(ReadErr, ClosedErr)
	}
	if len(b) == 0 {
		return 0, nil
	}
	n, err := recv(c.h.fd, b)
	if err != nil {
		return 0, errors.Join(ReadErr, err)
	}
	return n, nil
}

// Read implements io.Reader on top of Recv, reporting io.EOF after an orderly
// shutdown by the peer.
func (c conn) Read(b []byte) (int, error) {
	n, err := c.Recv(b)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(b) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Send performs a single blocking send and may write fewer bytes than
// requested.
func (c conn) Send(b []byte) (int, error) {
	if c.h.closed() {
		return 0, errors.Join(WriteErr, ClosedErr)
	}
	if len(b) == 0 {
		return 0, nil
	}
	n, err := send(c.h.fd, b)
	if err != nil {
		return 0, errors.Join(WriteErr, err)
	}
	return n, nil
}

// Write implements io.Writer by calling Send until b is consumed.
func (c conn) Write(b []byte) (int, error) {
	var n int
	for n < len(b) {
		m, err := c.Send(b[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, errors.Join(WriteErr, io.ErrShortWrite)
		}
	}
	return n, nil
}

// Flush is a no-op, writes are never buffered.
func (c conn) Flush() error { return nil }

// Shutdown shuts down both directions of the connection without releasing
// the descriptor. A Recv blocked in another goroutine returns 0.
func (c conn) Shutdown() error {
	if c.h.closed() {
		return errors.Join(ShutdownErr, ClosedErr)
	}
	if err := shutdown(c.h.fd); err != nil {
		return errors.Join(ShutdownErr, err)
	}
	return nil
}

// A Stream is a connected vsock stream. It owns its descriptor.
type Stream struct {
	conn
}

func newStream(h *handle) *Stream {
	return &Stream{conn: conn{h: h}}
}

// Dial connects to port on the host.
func Dial(port uint32) (*Stream, error) {
	return DialContextID(CIDHost, port)
}

// DialContextID connects to port on the machine identified by cid.
func DialContextID(cid uint32, port uint32) (*Stream, error) {
	h, err := resolve(sockStream)
	if err != nil {
		return nil, err
	}
	rsa := newRawSockaddr(h.family, cid, port)
	if err = connect(h.fd, &rsa); err != nil {
		_ = h.Close()
		return nil, errors.Join(ConnectErr, err)
	}
	return newStream(h), nil
}

// View returns a borrowed view of s. The view is valid until s is closed.
func (s *Stream) View() View {
	return View{conn: s.conn}
}

// Close releases the descriptor. Calling Close more than once is a no-op.
func (s *Stream) Close() error {
	return s.h.Close()
}

// A View reads from and writes to a Stream it does not own. Closing the
// Stream while a View call is in flight on another goroutine is a race: the
// call may reach a descriptor number already reused by something else.
// Callers must order Close after every View call has returned.
type View struct {
	conn
}
