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

package server // import "mhttp.org/mhttp/server"

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"fortio.org/log"
	"mhttp.org/mhttp/header"
)

// MaxPayloadSize is the maximum size= payload the echo handler generates.
var MaxPayloadSize = 256 * 1024

// EchoHandler echoes the request body back, with query parameters
// altering the response: status=NNN, delay=duration (capped by MaxDelay),
// close=true, chunked=true, size=N.
func EchoHandler(w *ResponseWriter, r *Request) {
	q := r.Target.Query()
	status := http.StatusOK
	if sv := q.Get("status"); sv != "" {
		s, err := strconv.Atoi(sv)
		if err != nil || s < 100 || s > 599 {
			log.Warnf("Bad status= value %q", sv)
			status = http.StatusBadRequest
		} else {
			status = s
		}
	}
	if dv := q.Get("delay"); dv != "" {
		d, err := time.ParseDuration(dv)
		if err != nil {
			log.Warnf("Bad delay= value %q", dv)
		} else {
			if d > MaxDelay.Get() {
				d = MaxDelay.Get()
			}
			time.Sleep(d)
		}
	}
	if cv := q.Get("close"); cv == "true" {
		w.Close()
	}
	body := r.Body
	if sv := q.Get("size"); sv != "" {
		n, err := strconv.Atoi(sv)
		if err != nil || n < 0 {
			log.Warnf("Bad size= value %q", sv)
		} else {
			if n > MaxPayloadSize {
				log.Warnf("Capping size= value %d to %d", n, MaxPayloadSize)
				n = MaxPayloadSize
			}
			body = bytes.Repeat([]byte{'x'}, n)
		}
	}
	hdr := header.New()
	hdr.Append("Server", "mhttpd")
	if q.Get("chunked") == "true" {
		if err := w.WriteChunked(status, hdr, [][]byte{body}); err != nil {
			log.Errf("Echo chunked write error: %v", err)
		}
		return
	}
	if err := w.WriteResponse(status, hdr, body); err != nil {
		log.Errf("Echo write error: %v", err)
	}
}
