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

// Package client implements the connection-oriented HTTP/1.1 client: one
// transport connection driven through request/response cycles by its own
// goroutine, with keep-alive reuse, peer-close detection while idle and
// protocol upgrade hand-off.
package client // import "mhttp.org/mhttp/client"

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"fortio.org/log"
	"mhttp.org/mhttp/mnet"
	"mhttp.org/mhttp/wire"
)

// BufferSizeKb is the size of the socket read buffer in kilobytes.
var BufferSizeKb = 128

// aLongTimeAgo is a non-zero past deadline used to unblock pending reads.
var aLongTimeAgo = time.Unix(1, 0)

// Client owns one transport connection and one incremental response
// parser. At most one request is in flight at a time; concurrent
// SendRequest calls serialize. The client terminates when the peer
// closes, a response carries Connection: close, a transport error occurs,
// its connection is handed off by an upgrade, or Close is called.
type Client struct {
	opts   *Options
	conn   net.Conn
	parser *wire.ResponseParser
	buffer []byte

	reqs     chan sendMsg
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	ownsConn bool
	exitErr  error
}

type sendMsg struct {
	req   *wire.Request
	opts  RequestOptions
	reply chan sendResult
}

type sendResult struct {
	res *Result
	err error
}

// idleEvent is the outcome of the 1-byte read parked on the socket while
// no request is in flight.
type idleEvent struct {
	n   int
	err error
}

// Open connects to the configured host and port, running the TLS
// handshake inline for TransportTLS, and starts the client goroutine.
func Open(opts *Options) (*Client, error) {
	opts.Init()
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(int(opts.Port)))
	dialer := &net.Dialer{Timeout: opts.ConnectionTimeout}
	var conn net.Conn
	var err error
	if opts.Transport == TransportTLS {
		var cfg *tls.Config
		cfg, err = opts.tlsConfig()
		if err != nil {
			return nil, &ConnectError{Cause: err}
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, cfg)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		log.Errf("Unable to connect to %s/%s: %v", addr, opts.Transport, err)
		return nil, &ConnectError{Cause: err}
	}
	log.Debugf("Connected to %s/%s", addr, opts.Transport)
	c := &Client{
		opts:     opts,
		conn:     conn,
		parser:   wire.NewResponseParser(),
		buffer:   make([]byte, BufferSizeKb*1024),
		reqs:     make(chan sendMsg),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		ownsConn: true,
	}
	go c.run()
	return c, nil
}

// SendRequest performs one request/response cycle. It blocks until the
// response is complete, each socket read bounded by the read timeout.
// Returns ErrConnectionClosed when the client already terminated.
func (c *Client) SendRequest(req *wire.Request, ropts RequestOptions) (*Result, error) {
	m := sendMsg{req: req, opts: ropts, reply: make(chan sendResult, 1)}
	select {
	case c.reqs <- m:
	case <-c.done:
		return nil, ErrConnectionClosed
	}
	r := <-m.reply
	return r.res, r.err
}

// Close terminates the client, closing the socket to unblock any pending
// read, and waits for the client goroutine to finish.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.conn.Close()
	})
	<-c.done
}

// Done is closed once the client has terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the termination cause, nil for a normal exit. Only valid
// after Done is closed.
func (c *Client) Err() error {
	return c.exitErr
}

func (c *Client) run() {
	var exitErr error
	defer func() {
		if c.stopRequested() {
			exitErr = nil
		}
		c.exitErr = exitErr
		if c.ownsConn {
			c.conn.Close()
		}
		close(c.done)
	}()
	for {
		// Park a 1-byte read on the socket so a peer close or pushed
		// bytes wake us while idle. No deadline: an idle keep-alive
		// connection lives until the peer closes it.
		_ = c.conn.SetReadDeadline(time.Time{})
		watch := make(chan idleEvent, 1)
		go c.watchIdle(watch)
		select {
		case ev := <-watch:
			exitErr = c.idleExit(ev)
			return
		case <-c.stop:
			<-watch
			return
		case m := <-c.reqs:
			ev, fired := c.cancelWatch(watch)
			if fired {
				err := c.idleExit(ev)
				if err == nil {
					err = ErrConnectionClosed
				}
				m.reply <- sendResult{err: err}
				exitErr = err
				return
			}
			out := c.roundTrip(m.req, m.opts)
			m.reply <- out.res
			if out.terminate {
				exitErr = out.exitErr
				return
			}
		}
	}
}

func (c *Client) stopRequested() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Client) watchIdle(ch chan<- idleEvent) {
	var b [1]byte
	n, err := c.conn.Read(b[:])
	ch <- idleEvent{n: n, err: err}
}

// cancelWatch unblocks the idle watcher with a past read deadline and
// reports whether it saw an actual event before being cancelled.
func (c *Client) cancelWatch(watch <-chan idleEvent) (idleEvent, bool) {
	_ = c.conn.SetReadDeadline(aLongTimeAgo)
	ev := <-watch
	_ = c.conn.SetReadDeadline(time.Time{})
	if ev.n == 0 && errors.Is(ev.err, os.ErrDeadlineExceeded) {
		return idleEvent{}, false
	}
	return ev, true
}

// idleExit classifies what the idle watcher saw: pushed bytes are a fatal
// protocol violation, a peer close is a normal termination.
func (c *Client) idleExit(ev idleEvent) error {
	if ev.n > 0 {
		log.Errf("Received unexpected data while idle from %v", c.conn.RemoteAddr())
		return &InvalidDataError{Cause: ErrUnexpectedData}
	}
	if errors.Is(ev.err, io.EOF) || errors.Is(ev.err, net.ErrClosed) {
		log.Debugf("Connection to %v closed by peer", c.conn.RemoteAddr())
		return nil
	}
	return &RecvError{Cause: ev.err}
}

// rtOutcome is the internal outcome of one round trip: the caller reply
// plus whether and why the client terminates.
type rtOutcome struct {
	res       sendResult
	terminate bool
	exitErr   error
}

func failed(err error) rtOutcome {
	return rtOutcome{res: sendResult{err: err}, terminate: true, exitErr: err}
}

func (c *Client) roundTrip(req *wire.Request, ropts RequestOptions) rtOutcome {
	start := time.Now()
	var pstate any
	var err error
	if ropts.Protocol != nil {
		req, pstate, err = ropts.Protocol.PrepareRequest(req, ropts.ProtocolOptions)
		if err != nil {
			return failed(err)
		}
	}
	freq := c.opts.FinalizeRequest(req)
	data := wire.EncodeRequest(freq)
	if log.LogDebug() {
		log.Debugf("Sending request to %v:\n%s", c.conn.RemoteAddr(), mnet.DebugSummary(data, 512))
	}
	if err = c.conn.SetWriteDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
		return failed(&SetOptionError{Cause: err})
	}
	if _, err = c.conn.Write(data); err != nil {
		return failed(writeError(err))
	}
	if freq.Method == "HEAD" {
		c.parser.ExpectNoBody()
	}
	resp, err := c.readResponse()
	if err != nil {
		return failed(err)
	}
	elapsed := time.Since(start)
	if !c.opts.DisableRequestLogs {
		c.logRequest(freq, resp, elapsed)
	}
	if ropts.Protocol != nil && resp.Status == http.StatusSwitchingProtocols {
		return c.handOff(resp, ropts, pstate)
	}
	res := &Result{Response: resp}
	if resp.CloseConnection() {
		log.Debugf("Peer %v asked to close the connection", c.conn.RemoteAddr())
		return rtOutcome{res: sendResult{res: res}, terminate: true}
	}
	if err = c.resetParser(); err != nil {
		// bytes past the response that are not a parseable message start
		return rtOutcome{res: sendResult{res: res}, terminate: true, exitErr: err}
	}
	return rtOutcome{res: sendResult{res: res}}
}

// readResponse drives the parser with socket reads until the response is
// complete. Each individual read is bounded by the read timeout; a slow
// trickle never exceeding it is allowed to complete.
func (c *Client) readResponse() (*wire.Response, error) {
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return nil, &SetOptionError{Cause: err}
		}
		n, err := c.conn.Read(c.buffer)
		if n > 0 {
			resp, perr := c.parser.Parse(c.buffer[:n])
			if perr != nil {
				return nil, &InvalidDataError{Cause: perr}
			}
			if resp != nil {
				return resp, nil
			}
		}
		if err != nil {
			return nil, readError(err)
		}
	}
}

// handOff validates the upgrade and transfers the socket and the parser's
// residual bytes to the protocol endpoint. On success the client exits
// normally and no longer owns the connection.
func (c *Client) handOff(resp *wire.Response, ropts RequestOptions, pstate any) rtOutcome {
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return failed(&SetOptionError{Cause: err})
	}
	if err := c.conn.SetWriteDeadline(time.Time{}); err != nil {
		return failed(&SetOptionError{Cause: err})
	}
	tail := c.parser.Tail()
	handle, err := ropts.Protocol.Activate(resp, c.conn, tail, pstate, ropts.ProtocolOptions)
	if err != nil {
		return failed(err)
	}
	log.Debugf("Connection to %v handed off to %s (%d tail bytes)",
		c.conn.RemoteAddr(), ropts.Protocol.Name(), len(tail))
	c.ownsConn = false
	return rtOutcome{res: sendResult{res: &Result{Response: resp, Upgrade: handle}}, terminate: true}
}

// resetParser prepares a fresh response parser for the next request,
// carrying over any bytes buffered past the previous response.
func (c *Client) resetParser() error {
	tail := c.parser.Tail()
	c.parser = wire.NewResponseParser()
	if len(tail) == 0 {
		return nil
	}
	resp, err := c.parser.Parse(tail)
	if err != nil {
		return &InvalidDataError{Cause: err}
	}
	if resp != nil {
		log.Errf("Received a full unsolicited response from %v", c.conn.RemoteAddr())
		return &InvalidDataError{Cause: ErrUnexpectedData}
	}
	return nil
}

func writeError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrWriteTimeout
	}
	if closedConn(err) {
		return ErrConnectionClosed
	}
	return &SendError{Cause: err}
}

func readError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrReadTimeout
	}
	if closedConn(err) {
		return ErrConnectionClosed
	}
	return &RecvError{Cause: err}
}

func closedConn(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}
