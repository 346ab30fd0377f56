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

package wire // import "mhttp.org/mhttp/wire"

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"mhttp.org/mhttp/header"
)

// Parse errors. All of them mean the peer violated the protocol; the
// connection they occurred on cannot be reused.
var (
	ErrInvalidStatusLine  = errors.New("invalid status line")
	ErrInvalidRequestLine = errors.New("invalid request line")
	ErrInvalidHeaderField = errors.New("invalid header field")
	ErrInvalidChunk       = errors.New("invalid chunk")
	ErrInvalidBody        = errors.New("invalid body")
	ErrParserDone         = errors.New("parser already returned a message")
)

var crlf = []byte("\r\n")

type parseState int

const (
	stateStartLine parseState = iota
	stateHeaders
	stateBodyFixed
	stateChunkSize
	stateChunkData
	stateChunkDataEnd
	stateTrailers
	stateDone
)

// machine is the incremental parse state shared by the request and response
// parsers. It accumulates fed bytes in buf and consumes them as states
// complete; whatever is left in buf after the final state is the tail.
type machine struct {
	buf     []byte
	state   parseState
	request bool

	method  string
	target  *url.URL
	version string
	status  int
	reason  string

	hdr       *header.Set
	body      bytes.Buffer
	remaining int64

	noBody bool // forced empty body (response to a HEAD)
}

func newMachine(request bool) machine {
	return machine{request: request, hdr: header.New()}
}

// feed appends data and runs the state machine as far as it can.
// Returns true when the message is complete.
func (m *machine) feed(data []byte) (bool, error) {
	if m.state == stateDone {
		return false, ErrParserDone
	}
	m.buf = append(m.buf, data...)
	for {
		advanced, err := m.step()
		if err != nil {
			return false, err
		}
		if m.state == stateDone {
			return true, nil
		}
		if !advanced {
			return false, nil
		}
	}
}

// line consumes and returns the next CRLF-terminated line, without the
// terminator. Returns false when no full line is buffered yet.
func (m *machine) line() (string, bool) {
	idx := bytes.Index(m.buf, crlf)
	if idx < 0 {
		return "", false
	}
	l := string(m.buf[:idx])
	m.buf = m.buf[idx+2:]
	return l, true
}

func (m *machine) step() (bool, error) {
	switch m.state {
	case stateStartLine:
		l, ok := m.line()
		if !ok {
			return false, nil
		}
		var err error
		if m.request {
			err = m.parseRequestLine(l)
		} else {
			err = m.parseStatusLine(l)
		}
		if err != nil {
			return false, err
		}
		m.state = stateHeaders
		return true, nil
	case stateHeaders:
		l, ok := m.line()
		if !ok {
			return false, nil
		}
		if l == "" {
			return true, m.endOfHeaders()
		}
		name, value, err := parseHeaderField(l)
		if err != nil {
			return false, err
		}
		m.hdr.Append(name, value)
		return true, nil
	case stateBodyFixed:
		return m.consumeBody(), nil
	case stateChunkSize:
		l, ok := m.line()
		if !ok {
			return false, nil
		}
		size, err := parseChunkSize(l)
		if err != nil {
			return false, err
		}
		if size == 0 {
			m.state = stateTrailers
			return true, nil
		}
		m.remaining = size
		m.state = stateChunkData
		return true, nil
	case stateChunkData:
		return m.consumeBody(), nil
	case stateChunkDataEnd:
		if len(m.buf) < 2 {
			return false, nil
		}
		if !bytes.Equal(m.buf[:2], crlf) {
			return false, fmt.Errorf("%w: missing data terminator", ErrInvalidChunk)
		}
		m.buf = m.buf[2:]
		m.state = stateChunkSize
		return true, nil
	case stateTrailers:
		l, ok := m.line()
		if !ok {
			return false, nil
		}
		if l == "" {
			m.state = stateDone
			return true, nil
		}
		name, value, err := parseHeaderField(l)
		if err != nil {
			return false, err
		}
		m.hdr.Append(name, value)
		return true, nil
	default:
		return false, ErrParserDone
	}
}

// consumeBody moves up to remaining buffered bytes into the body and
// advances the state when the current segment is complete.
func (m *machine) consumeBody() bool {
	n := int64(len(m.buf))
	if n > m.remaining {
		n = m.remaining
	}
	if n > 0 {
		m.body.Write(m.buf[:n])
		m.buf = m.buf[n:]
		m.remaining -= n
	}
	if m.remaining > 0 {
		return false
	}
	if m.state == stateChunkData {
		m.state = stateChunkDataEnd
	} else {
		m.state = stateDone
	}
	return true
}

func (m *machine) endOfHeaders() error {
	if m.noBody || (!m.request && bodylessStatus(m.status)) {
		m.state = stateDone
		return nil
	}
	framing, length, err := m.hdr.BodyFraming()
	if err != nil {
		return err
	}
	switch framing {
	case header.FramingChunked:
		m.state = stateChunkSize
	case header.FramingContentLength:
		if length == 0 {
			m.state = stateDone
			return nil
		}
		m.remaining = length
		m.state = stateBodyFixed
	default:
		m.state = stateDone
	}
	return nil
}

// bodylessStatus reports statuses whose responses never carry a body
// (RFC 7230 §3.3.3 rule 1).
func bodylessStatus(status int) bool {
	return (status >= 100 && status < 200) || status == 204 || status == 304
}

func (m *machine) parseStatusLine(l string) error {
	version, rest, ok := strings.Cut(l, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return fmt.Errorf("%w: %q", ErrInvalidStatusLine, l)
	}
	code, reason, _ := strings.Cut(rest, " ")
	status, err := strconv.Atoi(code)
	if err != nil || len(code) != 3 || status < 100 || status > 599 {
		return fmt.Errorf("%w: %q", ErrInvalidStatusLine, l)
	}
	m.version = version
	m.status = status
	m.reason = reason
	return nil
}

func (m *machine) parseRequestLine(l string) error {
	parts := strings.Split(l, " ")
	if len(parts) != 3 || parts[0] == "" || !strings.HasPrefix(parts[2], "HTTP/") {
		return fmt.Errorf("%w: %q", ErrInvalidRequestLine, l)
	}
	target, err := url.ParseRequestURI(parts[1])
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRequestLine, l)
	}
	m.method = parts[0]
	m.target = target
	m.version = parts[2]
	return nil
}

func parseHeaderField(l string) (string, string, error) {
	name, value, ok := strings.Cut(l, ":")
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHeaderField, l)
	}
	return name, strings.Trim(value, " \t"), nil
}

// parseChunkSize parses a chunk-size line: hex digits, optionally followed
// by a ";ext" chunk extension which is ignored.
func parseChunkSize(l string) (int64, error) {
	digits, _, _ := strings.Cut(l, ";")
	digits = strings.TrimRight(digits, " \t")
	size, err := strconv.ParseInt(digits, 16, 64)
	if err != nil || size < 0 {
		return -1, fmt.Errorf("%w: bad size %q", ErrInvalidChunk, l)
	}
	return size, nil
}

// ResponseParser incrementally parses one HTTP response off a byte stream.
type ResponseParser struct {
	m machine
}

// NewResponseParser returns a parser in response mode.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{m: newMachine(false)}
}

// ExpectNoBody tells the parser the response cannot carry a body (the
// request was a HEAD). Must be called before the first Parse.
func (p *ResponseParser) ExpectNoBody() {
	p.m.noBody = true
}

// Parse feeds a chunk of bytes. It returns the complete response once
// available, (nil, nil) when more data is needed, or an error on a protocol
// violation. Residual bytes past the end of the message are kept and
// available through Tail.
func (p *ResponseParser) Parse(data []byte) (*Response, error) {
	done, err := p.m.feed(data)
	if err != nil || !done {
		return nil, err
	}
	resp := &Response{
		Version: p.m.version,
		Status:  p.m.status,
		Reason:  p.m.reason,
		Header:  p.m.hdr,
		Body:    p.m.body.Bytes(),
	}
	if err := decodeBody(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Tail returns the bytes received past the end of the parsed message.
func (p *ResponseParser) Tail() []byte {
	return p.m.buf
}

// RequestParser incrementally parses one HTTP request off a byte stream.
type RequestParser struct {
	m machine
}

// NewRequestParser returns a parser in request mode.
func NewRequestParser() *RequestParser {
	return &RequestParser{m: newMachine(true)}
}

// Parse feeds a chunk of bytes, returning the complete request once
// available, (nil, nil) when more data is needed, or an error.
func (p *RequestParser) Parse(data []byte) (*Request, error) {
	done, err := p.m.feed(data)
	if err != nil || !done {
		return nil, err
	}
	return &Request{
		Method: p.m.method,
		Target: p.m.target,
		Header: p.m.hdr,
		Body:   p.m.body.Bytes(),
	}, nil
}

// Tail returns the bytes received past the end of the parsed message.
func (p *RequestParser) Tail() []byte {
	return p.m.buf
}
