// SPDX-License-Identifier: Apache-2.0

// Package cancel runs a cleanup function once a context ends, typically to
// shut down a blocking vsock stream from outside the goroutine using it.
package cancel

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	CleanupErr = errors.New("unable to cleanup")
)

const (
	StateWatching = iota
	StateClosed
)

type CleanupFunc func() error

type Cancel struct {
	stop     func() bool
	done     chan struct{}
	err      error
	state    atomic.Uint32
	closeErr error
}

// New arranges for cleanup to run when ctx is done, unless Close is called
// first.
func New(ctx context.Context, cleanup CleanupFunc) *Cancel {
	c := &Cancel{
		done: make(chan struct{}),
	}
	c.stop = context.AfterFunc(ctx, func() {
		if err := cleanup(); err != nil {
			c.err = errors.Join(CleanupErr, err)
		} else {
			c.err = errors.Join(context.Canceled, context.Cause(ctx))
		}
		close(c.done)
	})
	return c
}

// Close stops watching. If the cleanup already ran, Close waits for it and
// returns its outcome; otherwise it returns nil and the cleanup never runs.
func (c *Cancel) Close() error {
	if c.state.CompareAndSwap(StateWatching, StateClosed) {
		if !c.stop() {
			<-c.done
			c.closeErr = c.err
		}
	}
	return c.closeErr
}

func (c *Cancel) CloseIgnoreError() {
	_ = c.Close()
}
