//go:build linux

// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loopholelabs/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"

	"github.com/loopholelabs/vmci/pkg/vsock"
)

// testListener adopts a listening AF_UNIX socket, standing in for a vsock
// listener on hosts without a vsock transport.
func testListener(t *testing.T) (*vsock.Listener, string) {
	path := filepath.Join(t.TempDir(), "server.sock")

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	require.NoError(t, unix.Bind(fd, &unix.SockaddrUnix{Name: path}))
	require.NoError(t, unix.Listen(fd, 8))

	l, err := vsock.FileListener(f)
	require.NoError(t, err)
	return l, path
}

func echoHandle(t *testing.T) HandleFunc {
	return func(_ context.Context, stream *vsock.Stream, remote *vsock.Addr) {
		assert.NotNil(t, remote)
		_, err := io.Copy(stream.View(), stream)
		assert.NoError(t, err)
	}
}

func TestServerOptions(t *testing.T) {
	logger := logging.Test(t, logging.Zerolog, t.Name())

	_, err := New(nil)
	require.ErrorIs(t, err, OptionsErr)

	_, err = New(&Options{Logger: logger})
	require.ErrorIs(t, err, OptionsErr)

	_, err = New(&Options{Handle: echoHandle(t)})
	require.ErrorIs(t, err, OptionsErr)
}

func TestServerEcho(t *testing.T) {
	defer goleak.VerifyNone(t)

	lis, path := testListener(t)
	s, err := New(&Options{
		Listener: lis,
		Handle:   echoHandle(t),
		Logger:   logging.Test(t, logging.Zerolog, t.Name()),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c, err := net.Dial("unix", path)
		require.NoError(t, err)

		_, err = c.Write([]byte("hello world"))
		require.NoError(t, err)

		buf := make([]byte, len("hello world"))
		_, err = io.ReadFull(c, buf)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(buf))

		require.NoError(t, c.Close())
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestServerCloseInflight(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	returned := make(chan struct{})
	lis, path := testListener(t)
	s, err := New(&Options{
		Listener: lis,
		Handle: func(ctx context.Context, stream *vsock.Stream, _ *vsock.Addr) {
			close(started)
			_, err := stream.Read(make([]byte, 1))
			assert.ErrorIs(t, err, io.EOF)
			assert.Error(t, ctx.Err())
			close(returned)
		},
		Logger: logging.Test(t, logging.Zerolog, t.Name()),
	})
	require.NoError(t, err)

	c, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer c.Close()

	<-started

	closed := make(chan error, 1)
	go func() {
		closed <- s.Close()
	}()

	select {
	case err = <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("server did not shut down an in-flight connection")
	}
	<-returned
}

func TestServerCloseIdle(t *testing.T) {
	defer goleak.VerifyNone(t)

	lis, _ := testListener(t)
	s, err := New(&Options{
		Listener: lis,
		Handle:   echoHandle(t),
		Logger:   logging.Test(t, logging.Zerolog, t.Name()),
	})
	require.NoError(t, err)

	time.Sleep(time.Millisecond * 50)
	require.NoError(t, s.Close())
}

func TestNextDelay(t *testing.T) {
	delay := nextDelay(0)
	assert.Equal(t, acceptBackoffMin, delay)
	assert.Equal(t, 2*acceptBackoffMin, nextDelay(delay))

	for i := 0; i < 16; i++ {
		delay = nextDelay(delay)
	}
	assert.Equal(t, acceptBackoffMax, delay)
	assert.Equal(t, acceptBackoffMax, nextDelay(delay))
}

// acceptFailures counts the accept warnings written by a server logger.
type acceptFailures struct {
	n atomic.Int32
}

func (a *acceptFailures) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("unable to accept connection")) {
		a.n.Add(1)
	}
	return len(p), nil
}

func TestServerAcceptBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	// A connected socket stays readable while it has unread data, but
	// accept on it always fails.
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	peer := os.NewFile(uintptr(fds[1]), "peer")
	defer peer.Close()

	f := os.NewFile(uintptr(fds[0]), "listener")
	lis, err := vsock.FileListener(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)

	_, err = peer.Write([]byte("x"))
	require.NoError(t, err)

	failures := new(acceptFailures)
	s, err := New(&Options{
		Listener: lis,
		Handle:   echoHandle(t),
		Logger:   logging.New(logging.Zerolog, t.Name(), failures),
	})
	require.NoError(t, err)

	time.Sleep(time.Millisecond * 200)

	closed := make(chan error, 1)
	go func() {
		closed <- s.Close()
	}()
	select {
	case err = <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("server did not stop while backing off")
	}

	n := failures.n.Load()
	assert.GreaterOrEqual(t, n, int32(2))
	assert.LessOrEqual(t, n, int32(10))
}
