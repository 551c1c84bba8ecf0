// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	logging "github.com/loopholelabs/logging/types"

	"github.com/loopholelabs/vmci/pkg/vsock"
)

// HandleFunc serves one accepted connection. The stream is closed by the
// server once the handler returns, and shut down early if the server closes
// while the handler is still running.
type HandleFunc func(ctx context.Context, stream *vsock.Stream, remote *vsock.Addr)

type Options struct {
	// Port is bound on every local context id unless Listener is set.
	Port uint32

	// Listener, if set, is used instead of binding Port. The server takes
	// ownership of it.
	Listener *vsock.Listener

	Handle HandleFunc
	Logger logging.Logger
}

func validOptions(options *Options) bool {
	return options != nil && options.Handle != nil && options.Logger != nil
}

func (options *Options) listener() (*vsock.Listener, error) {
	if options.Listener != nil {
		return options.Listener, nil
	}
	return vsock.Listen(options.Port)
}
