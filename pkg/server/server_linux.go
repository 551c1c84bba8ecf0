//go:build linux

// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	logging "github.com/loopholelabs/logging/types"
	"golang.org/x/sys/unix"

	"github.com/loopholelabs/vmci/internal/cancel"
	"github.com/loopholelabs/vmci/pkg/vsock"
)

type Server struct {
	listener *vsock.Listener
	wake     int
	handle   HandleFunc

	ctx    context.Context
	cancel context.CancelFunc

	state  atomic.Uint32
	logger logging.Logger
	wg     sync.WaitGroup
}

func New(options *Options) (*Server, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}
	lis, err := options.listener()
	if err != nil {
		return nil, errors.Join(CreateErr, err)
	}
	// Closing a listening vsock descriptor does not wake a blocked accept,
	// so the accept loop polls an eventfd alongside the listener.
	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		_ = lis.Close()
		return nil, errors.Join(CreateErr, err)
	}

	s := &Server{
		listener: lis,
		wake:     wake,
		handle:   options.Handle,
		logger:   options.Logger.SubLogger("server"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.state.Store(stateListening)
	s.wg.Add(1)
	go s.accept()

	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() (*vsock.Addr, error) {
	return s.listener.LocalAddr()
}

// Close stops accepting, shuts down connections still being served and waits
// for their handlers to return.
func (s *Server) Close() error {
	if !s.state.CompareAndSwap(stateListening, stateClosed) {
		return nil
	}
	s.cancel()
	err := s.wakeup()
	s.wg.Wait()
	if _err := s.listener.Close(); _err != nil {
		err = errors.Join(err, _err)
	}
	if _err := unix.Close(s.wake); _err != nil {
		err = errors.Join(err, _err)
	}
	if err != nil {
		return errors.Join(CloseErr, err)
	}
	return nil
}

func (s *Server) wakeup() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(s.wake, buf[:])
	return err
}

// wait blocks until a connection is pending or the server is closing.
func (s *Server) wait() (bool, error) {
	fds := []unix.PollFd{
		{Fd: int32(s.listener.Fd()), Events: unix.POLLIN},
		{Fd: int32(s.wake), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		if fds[1].Revents != 0 {
			return false, nil
		}
		return fds[0].Revents != 0, nil
	}
}

// nextDelay doubles the pause after a failed accept, within
// [acceptBackoffMin, acceptBackoffMax].
func nextDelay(delay time.Duration) time.Duration {
	if delay < acceptBackoffMin {
		return acceptBackoffMin
	}
	if delay *= 2; delay > acceptBackoffMax {
		return acceptBackoffMax
	}
	return delay
}

func (s *Server) accept() {
	var delay time.Duration
	for {
		ready, err := s.wait()
		if err != nil {
			s.logger.Error().Err(err).Msg("unable to wait for connections")
			goto OUT
		}
		if !ready {
			goto OUT
		}
		stream, remote, err := s.listener.Accept()
		if err != nil {
			// A failing accept can leave the connection queued, so poll
			// reports it again straight away.
			delay = nextDelay(delay)
			s.logger.Warn().Err(err).Str("retry", delay.String()).Msg("unable to accept connection")
			select {
			case <-s.ctx.Done():
				goto OUT
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		s.wg.Add(1)
		go s.serve(stream, remote)
	}
OUT:
	s.logger.Info().Msg("shutting down accept loop")
	s.wg.Done()
}

func (s *Server) serve(stream *vsock.Stream, remote *vsock.Addr) {
	id := uuid.New().String()
	s.logger.Info().Str("id", id).Str("remote", remote.String()).Msg("connection accepted")

	watch := cancel.New(s.ctx, stream.Shutdown)
	s.handle(s.ctx, stream, remote)
	if err := watch.Close(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Str("id", id).Err(err).Msg("unable to shutdown connection")
	}
	if err := stream.Close(); err != nil {
		s.logger.Warn().Str("id", id).Err(err).Msg("unable to close connection")
	}

	s.logger.Info().Str("id", id).Msg("connection closed")
	s.wg.Done()
}
