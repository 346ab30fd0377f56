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

package pool // import "mhttp.org/mhttp/pool"

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fortio.org/log"
	"fortio.org/safecast"
	"golang.org/x/net/idna"
	"mhttp.org/mhttp/client"
	"mhttp.org/mhttp/header"
	"mhttp.org/mhttp/wire"
)

// SendRequest resolves the request target to a connection key, acquires a
// client and performs the request, transparently following redirections
// within the budget. It returns either a plain response or, when a
// protocol upgrade succeeded, the response plus the endpoint handle.
func (p *Pool) SendRequest(req *wire.Request, ropts client.RequestOptions) (*client.Result, error) {
	canonical, err := canonicalizeTarget(req.Target)
	if err != nil {
		return nil, err
	}
	if ropts.Protocol != nil {
		if err = ropts.Protocol.ValidateTarget(canonical); err != nil {
			return nil, err
		}
	}
	budget := ropts.MaxRedirections
	if budget == 0 {
		budget = client.DefaultMaxRedirections
	}
	if budget < 0 {
		budget = 0
	}
	method := req.Method
	if method == "" {
		method = "GET"
	}
	hdr := header.New()
	if req.Header != nil {
		hdr = req.Header.Clone()
	}
	body := req.Body
	for {
		creds, portOverride := p.credentials(canonical.Hostname())
		key, err := deriveKey(canonical, portOverride)
		if err != nil {
			return nil, err
		}
		sreq := &wire.Request{Method: method, Target: sendTarget(canonical), Header: hdr, Body: body}
		c, err := p.acquire(key, creds)
		if err != nil {
			return nil, err
		}
		res, err := c.SendRequest(sreq, ropts)
		if err != nil {
			return nil, err
		}
		if res.Upgrade != nil {
			// upgraded responses are surfaced as-is, redirections included
			return res, nil
		}
		resp := res.Response
		if !resp.Redirection() || ropts.DisableRedirects {
			return res, nil
		}
		location, found := resp.Header.Find("Location")
		if !found {
			return res, nil
		}
		if budget == 0 {
			log.Warnf("Pool %s: redirection budget exhausted at %s", p.id, canonical)
			return nil, ErrTooManyRedirections
		}
		budget--
		loc, lerr := url.Parse(location)
		if lerr != nil {
			return nil, fmt.Errorf("%w: bad location %q: %w", ErrInvalidTarget, location, lerr)
		}
		// The new target resolves against the canonical URI, never against
		// the path-only form that went on the wire.
		next, err := canonicalizeTarget(canonical.ResolveReference(loc))
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusSeeOther {
			method = "GET"
			body = nil
			hdr = hdr.Clone()
			hdr.Remove("Content-Length", "Content-Type", "Transfer-Encoding")
		}
		if !sameOrigin(canonical, next) {
			hdr = hdr.Clone()
			hdr.Remove("Authorization")
		}
		log.Debugf("Pool %s: following %d redirection from %s to %s (%d hops left)",
			p.id, resp.Status, canonical, next, budget)
		canonical = next
	}
}

// credentials consults the pool's credential store for the host and
// returns the matched credentials and port override, if any.
func (p *Pool) credentials(host string) (*client.Credentials, uint16) {
	if p.creds == nil {
		return nil, 0
	}
	e, found := p.creds.Lookup(host)
	if !found {
		return nil, 0
	}
	port, _ := e.PortNumber()
	var creds *client.Credentials
	if e.Login != "" {
		creds = &client.Credentials{User: e.Login, Password: e.Password}
	}
	return creds, port
}

// canonicalizeTarget resolves a request target to an absolute URI with a
// supported scheme and an IDNA mapped lowercase host.
func canonicalizeTarget(u *url.URL) (*url.URL, error) {
	if u == nil || !u.IsAbs() || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: no scheme or host", ErrInvalidTarget)
	}
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	if _, err := client.TransportForScheme(c.Scheme); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	host := strings.ToLower(c.Hostname())
	if mapped, err := idna.Lookup.ToASCII(host); err == nil {
		host = mapped
	} else {
		log.LogVf("Unable to IDNA map host %q: %v", host, err)
	}
	if port := c.Port(); port != "" {
		c.Host = host + ":" + port
	} else {
		c.Host = host
	}
	return &c, nil
}

// deriveKey computes the connection key of a canonical target. Port
// precedence: explicit URI port, then credential store override, then the
// transport default.
func deriveKey(u *url.URL, portOverride uint16) (Key, error) {
	transport, err := client.TransportForScheme(u.Scheme)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	var port uint16
	switch {
	case u.Port() != "":
		n, perr := strconv.ParseUint(u.Port(), 10, 64)
		if perr != nil {
			return Key{}, fmt.Errorf("%w: bad port %q", ErrInvalidTarget, u.Port())
		}
		port, perr = safecast.Convert[uint16](n)
		if perr != nil {
			return Key{}, fmt.Errorf("%w: port %q out of range", ErrInvalidTarget, u.Port())
		}
	case portOverride != 0:
		port = portOverride
	default:
		port = transport.DefaultPort()
	}
	return Key{Host: u.Hostname(), Port: port, Transport: transport}, nil
}

// sendTarget reduces a canonical URI to the origin-form actually placed
// on the request line.
func sendTarget(u *url.URL) *url.URL {
	t := &url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: u.RawQuery, Fragment: u.Fragment}
	if t.Path == "" {
		t.Path = "/"
	}
	return t
}

func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Hostname() == b.Hostname() && effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	t, err := client.TransportForScheme(u.Scheme)
	if err != nil {
		return ""
	}
	return strconv.Itoa(int(t.DefaultPort()))
}
