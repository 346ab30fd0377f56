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

package client

import (
	"errors"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"fortio.org/safecast"
	"mhttp.org/mhttp/header"
	"mhttp.org/mhttp/server"
	"mhttp.org/mhttp/wire"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("bad test url %q: %v", s, err)
	}
	return u
}

// startServer runs a stub server with the given handler for the duration
// of the test and returns its port.
func startServer(t *testing.T, handler server.Handler) uint16 {
	t.Helper()
	s := &server.Server{Port: "127.0.0.1:0", Handler: handler}
	addr := s.Start()
	if addr == nil {
		t.Fatalf("unable to start stub server")
	}
	t.Cleanup(s.Stop)
	return safecast.MustConvert[uint16](addr.(*net.TCPAddr).Port)
}

// rawServer accepts connections and runs the script on each, for peers
// that misbehave on purpose.
func rawServer(t *testing.T, script func(conn net.Conn)) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go script(conn)
		}
	}()
	return safecast.MustConvert[uint16](l.Addr().(*net.TCPAddr).Port)
}

func openClient(t *testing.T, opts *Options) *Client {
	t.Helper()
	c, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not terminate")
	}
}

func TestBasicRequest(t *testing.T) {
	port := startServer(t, server.EchoHandler)
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	res, err := c.SendRequest(&wire.Request{
		Method: "POST",
		Target: mustURL(t, "/echo"),
		Header: header.New(),
		Body:   []byte("hello"),
	}, RequestOptions{})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	resp := res.Response
	if resp.Status != 200 {
		t.Errorf("status = %d", resp.Status)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("body = %q", resp.Body)
	}
	c.Close()
}

func TestConnectionCloseTerminatesClient(t *testing.T) {
	port := startServer(t, server.EchoHandler)
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	res, err := c.SendRequest(&wire.Request{
		Method: "GET",
		Target: mustURL(t, "/?close=true"),
		Header: header.New(),
	}, RequestOptions{})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if res.Response.Status != 200 {
		t.Errorf("status = %d", res.Response.Status)
	}
	waitDone(t, c)
	if err = c.Err(); err != nil {
		t.Errorf("exit err = %v, want nil (normal)", err)
	}
	if _, err = c.SendRequest(&wire.Request{Target: mustURL(t, "/")}, RequestOptions{}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("send after close = %v, want ErrConnectionClosed", err)
	}
}

func TestKeepAliveSequentialRequests(t *testing.T) {
	var mu sync.Mutex
	var remotes []string
	port := startServer(t, func(w *server.ResponseWriter, r *server.Request) {
		mu.Lock()
		remotes = append(remotes, r.RemoteAddr)
		mu.Unlock()
		server.EchoHandler(w, r)
	})
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	defer c.Close()
	for i := 0; i < 3; i++ {
		res, err := c.SendRequest(&wire.Request{
			Method: "GET",
			Target: mustURL(t, "/"),
			Header: header.New(),
		}, RequestOptions{})
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if res.Response.Status != 200 {
			t.Errorf("request %d status = %d", i, res.Response.Status)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(remotes) != 3 {
		t.Fatalf("server saw %d requests", len(remotes))
	}
	if remotes[0] != remotes[1] || remotes[1] != remotes[2] {
		t.Errorf("requests used different connections: %v", remotes)
	}
}

func TestChunkedResponse(t *testing.T) {
	port := startServer(t, server.EchoHandler)
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	defer c.Close()
	res, err := c.SendRequest(&wire.Request{
		Method: "POST",
		Target: mustURL(t, "/?chunked=true"),
		Header: header.New(),
		Body:   []byte("hello"),
	}, RequestOptions{})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(res.Response.Body) != "hello" {
		t.Errorf("chunked body = %q", res.Response.Body)
	}
}

func TestReadTimeout(t *testing.T) {
	port := startServer(t, server.EchoHandler)
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port, ReadTimeout: 100 * time.Millisecond})
	_, err := c.SendRequest(&wire.Request{
		Method: "GET",
		Target: mustURL(t, "/?delay=1s"),
		Header: header.New(),
	}, RequestOptions{})
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("err = %v, want ErrReadTimeout", err)
	}
	waitDone(t, c)
	if !errors.Is(c.Err(), ErrReadTimeout) {
		t.Errorf("exit err = %v", c.Err())
	}
}

func TestInvalidResponseData(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("not an http response\r\n\r\n"))
	})
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	_, err := c.SendRequest(&wire.Request{Method: "GET", Target: mustURL(t, "/")}, RequestOptions{})
	var invalid *InvalidDataError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidDataError", err)
	}
	waitDone(t, c)
}

func TestPeerCloseWhileIdle(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
		time.Sleep(50 * time.Millisecond)
		conn.Close()
	})
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	res, err := c.SendRequest(&wire.Request{Method: "GET", Target: mustURL(t, "/")}, RequestOptions{})
	if err != nil || res.Response.Status != 200 {
		t.Fatalf("res=%v err=%v", res, err)
	}
	waitDone(t, c)
	if c.Err() != nil {
		t.Errorf("peer close should be a normal exit, got %v", c.Err())
	}
}

func TestUnexpectedIdleDataIsFatal(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
		time.Sleep(50 * time.Millisecond)
		// unsolicited push while the client is idle
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	})
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port})
	if _, err := c.SendRequest(&wire.Request{Method: "GET", Target: mustURL(t, "/")}, RequestOptions{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	waitDone(t, c)
	var invalid *InvalidDataError
	if !errors.As(c.Err(), &invalid) {
		t.Errorf("exit err = %v, want InvalidDataError", c.Err())
	}
}

func TestConnectFailed(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := safecast.MustConvert[uint16](l.Addr().(*net.TCPAddr).Port)
	l.Close() // nothing listens there anymore
	_, err = Open(&Options{Host: "127.0.0.1", Port: port, ConnectionTimeout: time.Second})
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want ConnectError", err)
	}
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	port := rawServer(t, func(conn net.Conn) {
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		// never answer
	})
	c := openClient(t, &Options{Host: "127.0.0.1", Port: port, ReadTimeout: time.Minute})
	errCh := make(chan error, 1)
	go func() {
		_, err := c.SendRequest(&wire.Request{Method: "GET", Target: mustURL(t, "/")}, RequestOptions{})
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	go c.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not unblock the pending request")
	}
}
