// SPDX-License-Identifier: Apache-2.0

// Package server accepts vsock connections and serves each one on its own
// goroutine.
package server

import (
	"errors"
	"time"
)

var (
	OptionsErr = errors.New("invalid options")
	CreateErr  = errors.New("unable to create server")
	CloseErr   = errors.New("unable to close server")
)

const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

const (
	stateListening = iota
	stateClosed
)
