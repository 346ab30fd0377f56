// Copyright 2026 Mhttp Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client // import "mhttp.org/mhttp/client"

import (
	"errors"
)

// Stable error kinds of the client. Every one of them terminates the
// connection; none are retried at this layer.
var (
	// ErrConnectionClosed is returned when a read or write finds the
	// socket closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrReadTimeout is returned when a single read exceeds the read
	// timeout.
	ErrReadTimeout = errors.New("read timeout")
	// ErrWriteTimeout is returned when sending the request times out.
	ErrWriteTimeout = errors.New("write timeout")
	// ErrUnexpectedData is the cause recorded when the peer pushes bytes
	// while no request is in flight.
	ErrUnexpectedData = errors.New("unexpected data received while idle")
)

// ConnectError wraps the cause of a failed connection establishment.
type ConnectError struct {
	Cause error
}

func (e *ConnectError) Error() string { return "connect failed: " + e.Cause.Error() }
func (e *ConnectError) Unwrap() error { return e.Cause }

// InvalidDataError wraps a protocol violation reported by the response
// parser.
type InvalidDataError struct {
	Cause error
}

func (e *InvalidDataError) Error() string { return "invalid data: " + e.Cause.Error() }
func (e *InvalidDataError) Unwrap() error { return e.Cause }

// SendError wraps a transport-level error while writing the request.
type SendError struct {
	Cause error
}

func (e *SendError) Error() string { return "send: " + e.Cause.Error() }
func (e *SendError) Unwrap() error { return e.Cause }

// RecvError wraps a transport-level error while reading the response.
type RecvError struct {
	Cause error
}

func (e *RecvError) Error() string { return "recv: " + e.Cause.Error() }
func (e *RecvError) Unwrap() error { return e.Cause }

// SetOptionError wraps a failure configuring the socket (deadlines).
type SetOptionError struct {
	Cause error
}

func (e *SetOptionError) Error() string { return "setting socket option: " + e.Cause.Error() }
func (e *SetOptionError) Unwrap() error { return e.Cause }
