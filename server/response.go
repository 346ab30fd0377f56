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
	"fmt"
	"net"
	"net/http"
	"strconv"

	"mhttp.org/mhttp/header"
)

// ResponseWriter serializes one response onto the connection and records
// what was sent for the inbound request log.
type ResponseWriter struct {
	conn       net.Conn
	status     int
	bodySize   int64
	closeAfter bool
	hijacked   bool
}

// Close marks the connection to be closed once the response is written;
// the response will carry Connection: close.
func (w *ResponseWriter) Close() {
	w.closeAfter = true
}

// Hijack hands the raw connection to the handler; the server stops
// serving it and will not close it. Used for protocol upgrades.
func (w *ResponseWriter) Hijack() net.Conn {
	w.hijacked = true
	return w.conn
}

// RecordStatus notes the status of a response written through the
// hijacked connection, for logging only.
func (w *ResponseWriter) RecordStatus(status int) {
	w.status = status
}

func statusLine(status int) string {
	reason := http.StatusText(status)
	if reason == "" {
		reason = "Unknown"
	}
	return fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, reason)
}

func writeHeader(buf *bytes.Buffer, hdr *header.Set) {
	if hdr == nil {
		return
	}
	for _, p := range hdr.Pairs() {
		buf.WriteString(p.Name)
		buf.WriteString(": ")
		buf.WriteString(p.Value)
		buf.WriteString("\r\n")
	}
}

// WriteResponse sends a length-delimited response.
func (w *ResponseWriter) WriteResponse(status int, hdr *header.Set, body []byte) error {
	var buf bytes.Buffer
	buf.WriteString(statusLine(status))
	writeHeader(&buf, hdr)
	buf.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	if w.closeAfter {
		buf.WriteString("Connection: close\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	w.status = status
	w.bodySize = int64(len(body))
	_, err := w.conn.Write(buf.Bytes())
	return err
}

// WriteChunked sends a response with chunked transfer coding, one chunk
// per element.
func (w *ResponseWriter) WriteChunked(status int, hdr *header.Set, chunks [][]byte) error {
	var buf bytes.Buffer
	buf.WriteString(statusLine(status))
	writeHeader(&buf, hdr)
	buf.WriteString("Transfer-Encoding: chunked\r\n")
	if w.closeAfter {
		buf.WriteString("Connection: close\r\n")
	}
	buf.WriteString("\r\n")
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "%x\r\n", len(c))
		buf.Write(c)
		buf.WriteString("\r\n")
		w.bodySize += int64(len(c))
	}
	buf.WriteString("0\r\n\r\n")
	w.status = status
	_, err := w.conn.Write(buf.Bytes())
	return err
}
