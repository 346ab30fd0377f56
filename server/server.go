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

// Package server is a small raw-TCP HTTP/1.1 server: an accept loop over
// a bound socket, a request-head parser and an echo handler with query
// driven behaviors (status=, delay=, close=, chunked=, size=). It backs
// the mhttpd binary and serves as the stub peer in the client and pool
// tests.
package server // import "mhttp.org/mhttp/server"

import (
	"errors"
	"net"
	"net/url"
	"sync"
	"time"

	"fortio.org/dflag"
	"fortio.org/log"
	"github.com/google/uuid"
	"mhttp.org/mhttp/header"
	"mhttp.org/mhttp/mnet"
	"mhttp.org/mhttp/wire"
)

var (
	// MaxDelay is the maximum sleep honored for the delay= echo parameter.
	MaxDelay = dflag.New(1500*time.Millisecond,
		"Maximum sleep time for delay= echo server parameter. dynamic flag.")
	// IdleTimeout bounds how long a connection may sit between requests.
	IdleTimeout = dflag.New(30*time.Second, "Default idle timeout for server connections")
)

// Request is a parsed inbound request.
type Request struct {
	ID         string // per-request uuid, for log correlation
	Method     string
	Target     *url.URL
	Header     *header.Set
	Body       []byte
	RemoteAddr string
}

// Handler serves one request through the response writer.
type Handler func(w *ResponseWriter, r *Request)

// Server is one listening socket plus its accept loop.
type Server struct {
	Name    string
	Port    string
	Handler Handler // defaults to EchoHandler

	listener net.Listener
	addr     net.Addr
	stop     chan struct{}
	stopOnce sync.Once
}

// Start binds the socket (logging its address) and starts the accept
// loop. Returns the bound address, nil when binding failed.
func (s *Server) Start() net.Addr {
	s.listener, s.addr = mnet.Listen(s.Name, s.Port)
	if s.listener == nil {
		return nil
	}
	if s.Handler == nil {
		s.Handler = EchoHandler
	}
	s.stop = make(chan struct{})
	go s.acceptLoop()
	return s.addr
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop closes the listening socket and stops accepting connections.
// Established connections finish their current request.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.listener.Close()
	})
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			log.Errf("Server %s accept error: %v", s.Name, err)
			return
		}
		go s.serve(conn)
	}
}

// serve reads requests off one connection and dispatches them until the
// peer goes away, the handler takes the connection over, or a response
// asked for the connection to close.
func (s *Server) serve(conn net.Conn) {
	closeConn := true
	defer func() {
		if closeConn {
			conn.Close()
		}
	}()
	buf := make([]byte, 16384)
	var pending []byte
	for {
		parser := wire.NewRequestParser()
		var req *wire.Request
		if len(pending) > 0 {
			var err error
			if req, err = parser.Parse(pending); err != nil {
				log.Warnf("Server %s: bad request from %v: %v", s.Name, conn.RemoteAddr(), err)
				return
			}
			pending = nil
		}
		for req == nil {
			if err := conn.SetReadDeadline(time.Now().Add(IdleTimeout.Get())); err != nil {
				return
			}
			n, err := conn.Read(buf)
			if n > 0 {
				var perr error
				if req, perr = parser.Parse(buf[:n]); perr != nil {
					log.Warnf("Server %s: bad request from %v: %v", s.Name, conn.RemoteAddr(), perr)
					return
				}
			}
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					log.LogVf("Server %s: connection from %v done: %v", s.Name, conn.RemoteAddr(), err)
				}
				return
			}
		}
		r := &Request{
			ID:         uuid.New().String(),
			Method:     req.Method,
			Target:     req.Target,
			Header:     req.Header,
			Body:       req.Body,
			RemoteAddr: conn.RemoteAddr().String(),
		}
		start := time.Now()
		w := &ResponseWriter{conn: conn}
		s.Handler(w, r)
		s.logRequest(r, w, time.Since(start))
		if w.hijacked {
			closeConn = false
			return
		}
		if w.closeAfter || req.Header.HasConnectionClose() {
			return
		}
		pending = parser.Tail()
	}
}

func (s *Server) logRequest(r *Request, w *ResponseWriter, elapsed time.Duration) {
	log.S(log.Info, "request",
		log.Str("domain", "mhttp.server"),
		log.Str("event", "mhttp.request.in"),
		log.Str("method", r.Method),
		log.Str("target", wire.RequestURI(r.Target)),
		log.Attr("status", w.status),
		log.Attr("request_time_us", elapsed.Microseconds()),
		log.Attr("body_size", w.bodySize),
		log.Str("server", s.Name),
		log.Str("address", s.addr.String()),
		log.Str("request_id", r.ID))
}
