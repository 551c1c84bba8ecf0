//go:build linux

// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// streamPair returns two connected streams backed by a socketpair and
// tagged with the native vsock family.
func streamPair(t *testing.T) (*Stream, *Stream) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	a := newStream(newHandle(fds[0], FamilyCandidate, nil))
	b := newStream(newHandle(fds[1], FamilyCandidate, nil))
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func pingPong(t *testing.T, client ReadWriteFlusher, server ReadWriteFlusher) {
	n, err := client.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, client.Flush())

	buf := make([]byte, 4)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	_, err = server.Write([]byte("pong"))
	require.NoError(t, err)

	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))
}

func TestStreamPingPong(t *testing.T) {
	client, server := streamPair(t)
	pingPong(t, client, server)
}

func TestStreamRoundTrip(t *testing.T) {
	client, server := streamPair(t)

	expected := make([]byte, 1<<20)
	_, err := rand.Read(expected)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := client.Write(expected)
		errs <- err
	}()

	received := make([]byte, len(expected))
	_, err = io.ReadFull(server, received)
	require.NoError(t, err)
	require.NoError(t, <-errs)
	assert.Equal(t, expected, received)
}

func TestStreamOrderlyShutdown(t *testing.T) {
	client, server := streamPair(t)

	_, err := client.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	data, err := io.ReadAll(server)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(data))

	buf := make([]byte, 8)
	n, err := server.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = server.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamView(t *testing.T) {
	client, server := streamPair(t)

	view := client.View()
	pingPong(t, view, server.View())

	n, err := view.Send([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buf := make([]byte, 1)
	n, err = server.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, client.Close())
	_, err = view.Write([]byte("x"))
	require.ErrorIs(t, err, WriteErr)
	require.ErrorIs(t, err, ClosedErr)

	// Once Close has returned, the view never reaches the old descriptor.
	_, err = view.Recv(buf)
	require.ErrorIs(t, err, ClosedErr)
	_, err = view.PeerHostVMID()
	require.ErrorIs(t, err, ClosedErr)
	_, err = view.LocalAddr()
	require.ErrorIs(t, err, ClosedErr)
	require.ErrorIs(t, view.Shutdown(), ClosedErr)
}

func TestStreamEmptyBuffers(t *testing.T) {
	client, _ := streamPair(t)

	n, err := client.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = client.Read(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStreamPeerHostVMID(t *testing.T) {
	client, _ := streamPair(t)

	_, err := client.PeerHostVMID()
	require.Error(t, err)
	require.ErrorIs(t, err, OptionErr)

	var errno unix.Errno
	assert.ErrorAs(t, err, &errno)
}

func TestStreamAddresses(t *testing.T) {
	client, server := streamPair(t)

	local, err := client.LocalAddr()
	require.NoError(t, err)
	assert.LessOrEqual(t, local.Len(), sizeofSockaddr)

	peer, err := server.PeerAddr()
	require.NoError(t, err)
	assert.LessOrEqual(t, peer.Len(), sizeofSockaddr)
}

func TestStreamShutdownUnblocksRecv(t *testing.T) {
	client, _ := streamPair(t)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := client.Recv(make([]byte, 8))
		done <- result{n, err}
	}()

	time.Sleep(time.Millisecond * 50)
	require.NoError(t, client.Shutdown())

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.n)
	case <-time.After(time.Second * 5):
		t.Fatal("recv was not unblocked by shutdown")
	}
}

func TestStreamClosed(t *testing.T) {
	client, _ := streamPair(t)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Read(make([]byte, 1))
	require.ErrorIs(t, err, ReadErr)
	require.ErrorIs(t, err, ClosedErr)

	_, err = client.Write([]byte("x"))
	require.ErrorIs(t, err, ClosedErr)

	_, err = client.LocalAddr()
	require.ErrorIs(t, err, AddressErr)

	_, err = client.PeerAddr()
	require.ErrorIs(t, err, ClosedErr)

	_, err = client.PeerHostVMID()
	require.ErrorIs(t, err, OptionErr)

	require.ErrorIs(t, client.Shutdown(), ShutdownErr)
}
