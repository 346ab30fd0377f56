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

package header // import "mhttp.org/mhttp/header"

import (
	"errors"
	"strconv"
)

var (
	// ErrNoContentLength is returned when no Content-Length field is present.
	ErrNoContentLength = errors.New("missing content length")
	// ErrInvalidContentLength is returned for a non-integer or negative value.
	ErrInvalidContentLength = errors.New("invalid content length")
	// ErrMultipleContentLength is returned when more than one Content-Length
	// field is present.
	ErrMultipleContentLength = errors.New("multiple content length fields")
	// ErrInvalidIntermediaryChunked is returned when chunked appears in
	// Transfer-Encoding but not as the final coding. The message length
	// cannot be determined, the connection must be closed.
	ErrInvalidIntermediaryChunked = errors.New("chunked is not the final transfer coding")
)

// Framing is the way the body length of a message is determined.
type Framing int

const (
	// FramingNone means the message has no body.
	FramingNone Framing = iota
	// FramingContentLength means the body is length-delimited.
	FramingContentLength
	// FramingChunked means the body uses chunked transfer coding.
	FramingChunked
)

func (f Framing) String() string {
	switch f {
	case FramingContentLength:
		return "content-length"
	case FramingChunked:
		return "chunked"
	default:
		return "none"
	}
}

// ContentLength returns the value of the Content-Length field.
func (s *Set) ContentLength() (int64, error) {
	values := s.FindAll("Content-Length")
	switch len(values) {
	case 0:
		return -1, ErrNoContentLength
	case 1:
	default:
		return -1, ErrMultipleContentLength
	}
	n, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil || n < 0 {
		return -1, ErrInvalidContentLength
	}
	return n, nil
}

// TransferEncoding returns the Transfer-Encoding codings in order,
// lowercased.
func (s *Set) TransferEncoding() []string {
	return s.FindTokenList("Transfer-Encoding")
}

// ContentEncoding returns the Content-Encoding codings in order, lowercased.
func (s *Set) ContentEncoding() []string {
	return s.FindTokenList("Content-Encoding")
}

// HasConnectionClose reports whether any Connection token equals "close".
func (s *Set) HasConnectionClose() bool {
	for _, t := range s.FindTokenList("Connection") {
		if t == "close" {
			return true
		}
	}
	return false
}

// BodyFraming applies the message body length rules of RFC 7230 §3.3.3:
// a final chunked coding wins, then a valid Content-Length, else no body.
// Returns the framing and, for FramingContentLength, the length.
func (s *Set) BodyFraming() (Framing, int64, error) {
	codings := s.TransferEncoding()
	if n := len(codings); n > 0 {
		if codings[n-1] == "chunked" {
			return FramingChunked, -1, nil
		}
		for _, c := range codings {
			if c == "chunked" {
				return FramingNone, -1, ErrInvalidIntermediaryChunked
			}
		}
	}
	length, err := s.ContentLength()
	if err == nil {
		return FramingContentLength, length, nil
	}
	if errors.Is(err, ErrNoContentLength) {
		return FramingNone, -1, nil
	}
	return FramingNone, -1, err
}
