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
	"strconv"
	"strings"

	"mhttp.org/mhttp/version"
	"mhttp.org/mhttp/wire"
)

// UserAgent is the default User-Agent field value.
var UserAgent = "mhttp.org/mhttp-" + version.Short()

// FinalizeRequest returns a copy of the request with the client-level
// fixes applied: compression advertisement, configured default header
// fields, basic authentication, the Host field and the body length. The
// original request is not modified; the returned request is what goes on
// the wire and must not be mutated afterwards.
func (o *Options) FinalizeRequest(req *wire.Request) *wire.Request {
	o.Init()
	r := req.Clone()
	if r.Method == "" {
		r.Method = "GET"
	}
	if o.Compression && !r.Header.Contains("Accept-Encoding") {
		r.Header.Append("Accept-Encoding", "gzip")
	}
	// Default fields are prepended keeping their configured order.
	pairs := o.Header.Pairs()
	for i := len(pairs) - 1; i >= 0; i-- {
		if strings.EqualFold(pairs[i].Name, "Host") {
			continue
		}
		r.Header.Add(pairs[i].Name, pairs[i].Value)
	}
	r.Header.AddIfMissing("User-Agent", UserAgent)
	if o.Credentials != nil && !r.Header.Contains("Authorization") {
		r.Header.Add("Authorization", o.Credentials.basicAuthorization())
	}
	// Host goes in last; configured defaults never supply it.
	r.Header.AddIfMissing("Host", o.hostHeaderValue())
	if len(r.Body) > 0 && !r.Header.Contains("Content-Length") && !r.Header.Contains("Transfer-Encoding") {
		r.Header.Add("Content-Length", strconv.Itoa(len(r.Body)))
	}
	return r
}

// hostHeaderValue is the effective host/port of the connection, the port
// omitted when it is the transport default.
func (o *Options) hostHeaderValue() string {
	if o.Port == o.Transport.DefaultPort() {
		if strings.Contains(o.Host, ":") {
			return "[" + o.Host + "]"
		}
		return o.Host
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(int(o.Port)))
}
