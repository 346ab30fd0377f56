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

package ws // import "mhttp.org/mhttp/ws"

import (
	"bytes"
	"io"
	"net"
	"sync"

	"fortio.org/log"
)

// Endpoint owns a connection after a successful upgrade. Reads drain the
// handshake tail bytes (frames the server sent together with the 101
// headers) before touching the socket.
type Endpoint struct {
	conn      net.Conn
	r         io.Reader
	tailSize  int
	closeOnce sync.Once
	closeErr  error
}

func startEndpoint(conn net.Conn, tail []byte) (*Endpoint, error) {
	ep := &Endpoint{
		conn:     conn,
		r:        io.MultiReader(bytes.NewReader(tail), conn),
		tailSize: len(tail),
	}
	if len(tail) > 0 {
		log.Debugf("Websocket endpoint for %v starting with %d buffered bytes", conn.RemoteAddr(), len(tail))
	}
	return ep, nil
}

// Read returns websocket stream bytes, handshake tail first.
func (e *Endpoint) Read(p []byte) (int, error) {
	return e.r.Read(p)
}

// Write sends bytes on the websocket stream.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.conn.Write(p)
}

// TailSize is the number of bytes that arrived with the 101 response and
// belong to the websocket stream.
func (e *Endpoint) TailSize() int {
	return e.tailSize
}

// NetConn exposes the underlying connection. Bytes already buffered from
// the handshake are only visible through Read.
func (e *Endpoint) NetConn() net.Conn {
	return e.conn
}

// Close closes the underlying connection.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}
