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

// Package ws implements the client side of the RFC 6455 opening handshake
// as an upgrade protocol: request mutation, 101 response validation and
// the hand-off of the connection with its already-read tail bytes.
package ws // import "mhttp.org/mhttp/ws"

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"fortio.org/log"
	"fortio.org/sets"
	"mhttp.org/mhttp/client"
	"mhttp.org/mhttp/wire"
)

// acceptGUID is the key-derivation constant of RFC 6455 §1.3.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// nonceSize is the size of the random handshake key material.
const nonceSize = 16

// Handshake validation errors.
var (
	// ErrMissingAccept is returned when the 101 response has no
	// Sec-WebSocket-Accept field.
	ErrMissingAccept = errors.New("missing Sec-WebSocket-Accept header field")
	// ErrAcceptMismatch is returned when the accept key does not match the
	// one derived from the handshake nonce.
	ErrAcceptMismatch = errors.New("Sec-WebSocket-Accept mismatch")
	// ErrInvalidScheme is returned for upgrade targets that are not ws or
	// wss URIs.
	ErrInvalidScheme = errors.New("target scheme is not ws or wss")
	// ErrUnexpectedSubprotocol is returned when the server selects a
	// subprotocol that was not offered.
	ErrUnexpectedSubprotocol = errors.New("unexpected subprotocol selected by server")
)

// StartFailedError wraps a failure to start the websocket endpoint after a
// validated handshake.
type StartFailedError struct {
	Cause error
}

func (e *StartFailedError) Error() string { return "websocket endpoint start: " + e.Cause.Error() }
func (e *StartFailedError) Unwrap() error { return e.Cause }

// Options are the protocol options of a websocket upgrade request.
type Options struct {
	// Nonce is the 16 byte handshake key material; generated when empty.
	Nonce []byte
	// Subprotocols are offered to the server in preference order.
	Subprotocols []string
}

// Protocol implements the client upgrade protocol interface for
// websockets.
type Protocol struct{}

// Name returns the protocol name.
func (p *Protocol) Name() string { return "websocket" }

// ValidateTarget only accepts ws and wss URIs.
func (p *Protocol) ValidateTarget(u *url.URL) error {
	switch u.Scheme {
	case "ws", "wss":
		return nil
	default:
		return ErrInvalidScheme
	}
}

// handshake is the per-request state threaded from PrepareRequest to
// Activate.
type handshake struct {
	key          string
	accept       string
	subprotocols sets.Set[string]
}

func protocolOptions(opts any) (*Options, error) {
	switch o := opts.(type) {
	case nil:
		return &Options{}, nil
	case *Options:
		return o, nil
	default:
		return nil, fmt.Errorf("unexpected websocket protocol options type %T", opts)
	}
}

// PrepareRequest appends the handshake fields and forces the method to
// GET. The returned state carries the expected accept key.
func (p *Protocol) PrepareRequest(req *wire.Request, opts any) (*wire.Request, any, error) {
	o, err := protocolOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	nonce := o.Nonce
	if len(nonce) == 0 {
		nonce = make([]byte, nonceSize)
		if _, err = rand.Read(nonce); err != nil {
			return nil, nil, err
		}
	}
	if len(nonce) != nonceSize {
		return nil, nil, fmt.Errorf("handshake nonce must be %d bytes, got %d", nonceSize, len(nonce))
	}
	key := base64.StdEncoding.EncodeToString(nonce)
	r := req.Clone()
	r.Method = "GET"
	r.Header.Append("Connection", "Upgrade")
	r.Header.Append("Upgrade", "websocket")
	r.Header.Append("Sec-WebSocket-Version", "13")
	r.Header.Append("Sec-WebSocket-Key", key)
	if len(o.Subprotocols) > 0 {
		r.Header.Append("Sec-WebSocket-Protocol", strings.Join(o.Subprotocols, " "))
	}
	hs := &handshake{key: key, accept: ComputeAcceptKey(key), subprotocols: sets.New(o.Subprotocols...)}
	return r, hs, nil
}

// ComputeAcceptKey derives the expected Sec-WebSocket-Accept value from
// the base64 encoded handshake key.
func ComputeAcceptKey(key string) string {
	h := sha1.Sum([]byte(key + acceptGUID)) //nolint:gosec // sha1 is mandated by RFC 6455
	return base64.StdEncoding.EncodeToString(h[:])
}

// Activate validates the 101 response against the handshake state and, on
// success, hands the connection and its tail bytes to a new endpoint.
func (p *Protocol) Activate(resp *wire.Response, conn net.Conn, tail []byte,
	state any, _ any,
) (client.UpgradeHandle, error) {
	hs, ok := state.(*handshake)
	if !ok {
		return nil, fmt.Errorf("unexpected websocket handshake state type %T", state)
	}
	accept, found := resp.Header.Find("Sec-WebSocket-Accept")
	if !found {
		return nil, ErrMissingAccept
	}
	if accept != hs.accept {
		log.Warnf("Sec-WebSocket-Accept %q does not match expected %q", accept, hs.accept)
		return nil, ErrAcceptMismatch
	}
	if selected, has := resp.Header.Find("Sec-WebSocket-Protocol"); has && !hs.subprotocols.Has(selected) {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedSubprotocol, selected)
	}
	ep, err := startEndpoint(conn, tail)
	if err != nil {
		return nil, &StartFailedError{Cause: err}
	}
	return ep, nil
}
