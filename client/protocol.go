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
	"net"
	"net/url"

	"mhttp.org/mhttp/wire"
)

// UpgradeHandle is the handle of a protocol endpoint owning a connection
// after a successful 101 upgrade.
type UpgradeHandle interface {
	Close() error
}

// Protocol switches a connection to another protocol after a 101 response.
// The request is mutated before send; on a 101 the client validates the
// response and hands the socket over through Activate, after which the
// client no longer owns it.
type Protocol interface {
	Name() string
	// ValidateTarget rejects canonical request targets the protocol cannot
	// upgrade (wrong scheme).
	ValidateTarget(u *url.URL) error
	// PrepareRequest returns the mutated request and an opaque handshake
	// state threaded through to Activate.
	PrepareRequest(req *wire.Request, opts any) (*wire.Request, any, error)
	// Activate validates the 101 response, spawns the protocol endpoint and
	// transfers the socket along with the parser's residual tail bytes.
	Activate(resp *wire.Response, conn net.Conn, tail []byte, state any, opts any) (UpgradeHandle, error)
}

// DefaultMaxRedirections is the redirection budget when none is set.
const DefaultMaxRedirections = 5

// RequestOptions control one request through a pool.
type RequestOptions struct {
	// Pool is the target pool id; empty means the default pool.
	Pool string
	// DisableRedirects turns off transparent redirection following.
	DisableRedirects bool
	// MaxRedirections is the redirection budget. Zero means
	// DefaultMaxRedirections; negative means an already exhausted budget
	// (any redirection fails).
	MaxRedirections int
	// Protocol, when set, makes the client detect 101 responses and hand
	// the connection off to it.
	Protocol Protocol
	// ProtocolOptions is an opaque value forwarded to the protocol.
	ProtocolOptions any
}

// Result is the outcome of a request: a plain response, or a response plus
// the handle of the protocol endpoint that took over the connection.
type Result struct {
	Response *wire.Response
	// Upgrade is non-nil when the connection was switched to another
	// protocol.
	Upgrade UpgradeHandle
}
