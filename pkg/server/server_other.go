//go:build !linux

// SPDX-License-Identifier: Apache-2.0

package server

import (
	"github.com/loopholelabs/vmci/pkg/vsock"
)

type Server struct{}

func New(options *Options) (*Server, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}
	return nil, vsock.UnsupportedErr
}

func (s *Server) Addr() (*vsock.Addr, error) {
	return nil, vsock.UnsupportedErr
}

func (s *Server) Close() error {
	return nil
}
