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

// Package wire is the HTTP/1.1 message codec: a request encoder and
// incremental request/response parsers. Parsers are fed raw byte chunks as
// they arrive off a socket and report either a complete message plus the
// residual tail bytes, or that they need more data.
package wire // import "mhttp.org/mhttp/wire"

import (
	"bytes"
	"net/url"

	"mhttp.org/mhttp/header"
)

// Version is the protocol version spoken and sent on request lines.
const Version = "HTTP/1.1"

// Request is an HTTP request. The target may be absolute (scheme and host
// set) or origin-form (path and query only); only origin-form ever goes on
// the wire. A zero-length body means no body.
type Request struct {
	Method string
	Target *url.URL
	Header *header.Set
	Body   []byte
}

// Clone returns a copy of the request with its own header set and target.
// The body is shared, it is never mutated.
func (r *Request) Clone() *Request {
	c := &Request{Method: r.Method, Body: r.Body}
	if r.Target != nil {
		u := *r.Target
		c.Target = &u
	}
	if r.Header != nil {
		c.Header = r.Header.Clone()
	} else {
		c.Header = header.New()
	}
	return c
}

// TargetString returns the request target as it would appear on the wire
// (origin-form), path defaulted to "/" when absent.
func (r *Request) TargetString() string {
	return RequestURI(r.Target)
}

// RequestURI renders the path+query of a URL, defaulting the path to "/".
func RequestURI(u *url.URL) string {
	if u == nil {
		return "/"
	}
	uri := u.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if u.RawQuery != "" {
		uri += "?" + u.RawQuery
	}
	return uri
}

// ResponseInternal is out-of-band metadata the parser attaches to a
// response.
type ResponseInternal struct {
	// OriginalBodySize is the body size before content decoding, when a
	// Content-Encoding was decoded. Zero when no decoding happened.
	OriginalBodySize int64
}

// Response is a parsed HTTP response. Read-only once returned by a parser.
type Response struct {
	Version  string
	Status   int
	Reason   string
	Header   *header.Set
	Body     []byte
	Internal ResponseInternal
}

// Redirection reports whether the status is a 3xx redirection.
func (r *Response) Redirection() bool {
	return r.Status >= 300 && r.Status < 400
}

// CloseConnection reports whether the connection the response arrived on
// must not be reused: either the peer asked for it (Connection: close) or
// the protocol version defaults to non-persistent connections.
func (r *Response) CloseConnection() bool {
	if r.Header.HasConnectionClose() {
		return true
	}
	return r.Version == "HTTP/1.0"
}

// EncodeRequest serializes a request for the wire. The request line uses
// origin-form; absolute-form is never sent.
func EncodeRequest(req *Request) []byte {
	var buf bytes.Buffer
	buf.WriteString(req.Method)
	buf.WriteByte(' ')
	buf.WriteString(req.TargetString())
	buf.WriteByte(' ')
	buf.WriteString(Version)
	buf.WriteString("\r\n")
	if req.Header != nil {
		for _, p := range req.Header.Pairs() {
			buf.WriteString(p.Name)
			buf.WriteString(": ")
			buf.WriteString(p.Value)
			buf.WriteString("\r\n")
		}
	}
	buf.WriteString("\r\n")
	buf.Write(req.Body)
	return buf.Bytes()
}
