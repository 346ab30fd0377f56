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

// Package mnet provides the shared low-level network helpers: listener
// setup, address resolution and byte-buffer debug formatting.
package mnet // import "mhttp.org/mhttp/mnet"

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"fortio.org/log"
	"mhttp.org/mhttp/version"
)

const (
	// PrefixHTTP is a constant value for representing http prefix.
	PrefixHTTP = "http://"
	// PrefixHTTPS is a constant value for representing secure http prefix.
	PrefixHTTPS = "https://"
)

// NormalizePort parses port and returns host:port if port is in the form
// of host:port already or :port if port is only a port (doesn't contain :).
func NormalizePort(port string) string {
	if strings.ContainsAny(port, ":") {
		return port
	}
	return ":" + port
}

// Listen returns a tcp listener for the port. Port can be a port or a bind
// address and a port (e.g. "8080" or "[::1]:8080"...). If the port
// component is 0 a free port will be picked by the system.
// This logs critical on error and returns nil (is meant for servers that
// must start).
func Listen(name string, port string) (net.Listener, net.Addr) {
	nPort := NormalizePort(port)
	listener, err := net.Listen("tcp", nPort)
	if err != nil {
		log.Critf("Can't listen to socket %v (%v) for %s: %v", port, nPort, name, err)
		return nil, nil
	}
	lAddr := listener.Addr()
	if len(name) > 0 {
		fmt.Printf("mhttp %s %s server listening on %s\n", version.Short(), name, lAddr)
	}
	return listener, lAddr
}

// GetPort extracts the port string of a listener address.
func GetPort(lAddr net.Addr) string {
	return strconv.Itoa(lAddr.(*net.TCPAddr).Port)
}

// Resolve returns the TCP address of the host:port suitable for net.Dial.
func Resolve(ctx context.Context, host string, port string) (*net.TCPAddr, error) {
	log.Debugf("Resolve() called with host=%s port=%s", host, port)
	dest := &net.TCPAddr{}
	if ip := net.ParseIP(host); ip != nil {
		dest.IP = ip
	} else {
		addrs, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err != nil {
			log.Errf("Unable to lookup '%s' : %v", host, err)
			return nil, err
		}
		dest.IP = addrs[0]
	}
	p, err := net.LookupPort("tcp", port)
	if err != nil {
		log.Errf("Unable to resolve port '%s' : %v", port, err)
		return nil, err
	}
	dest.Port = p
	return dest, nil
}

// DebugSummary returns a string with the size and escaped first max/2 and
// last max/2 bytes of a buffer (or the whole escaped buffer if small
// enough).
func DebugSummary(buf []byte, max int) string {
	l := len(buf)
	if l <= max+3 { // no point in shortening to add ... if we could return those 3 bytes
		return EscapeBytes(buf)
	}
	max /= 2
	return fmt.Sprintf("%d: %s...%s", l, EscapeBytes(buf[:max]), EscapeBytes(buf[l-max:]))
}

// EscapeBytes returns printable string. Same as %q format without the
// surrounding/extra "".
func EscapeBytes(buf []byte) string {
	e := fmt.Sprintf("%q", buf)
	return e[1 : len(e)-1]
}
