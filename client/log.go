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
	"fmt"
	"time"

	"fortio.org/log"
	"mhttp.org/mhttp/wire"
)

// logRequest emits the structured per-request log line.
func (c *Client) logRequest(req *wire.Request, resp *wire.Response, elapsed time.Duration) {
	log.S(log.Info, "request",
		log.Str("domain", "mhttp.client"),
		log.Str("event", "mhttp.request.out"),
		log.Str("method", req.Method),
		log.Str("target", req.TargetString()),
		log.Attr("status", resp.Status),
		log.Attr("request_time_us", elapsed.Microseconds()),
		log.Attr("body_size", ResponseBodySize(resp)),
		log.Str("pool", c.opts.Pool))
	if log.LogVerbose() {
		log.LogVf("%s %s -> %d in %s, %s", req.Method, req.TargetString(), resp.Status,
			FormatRequestTime(elapsed), FormatBodySize(ResponseBodySize(resp)))
	}
}

// ResponseBodySize is the logged body size: the size before content
// decoding when the parser recorded one, else the delivered body length.
func ResponseBodySize(resp *wire.Response) int64 {
	if resp.Internal.OriginalBodySize > 0 {
		return resp.Internal.OriginalBodySize
	}
	return int64(len(resp.Body))
}

// FormatRequestTime renders a duration for humans: integral microseconds
// below a millisecond, tenths of milliseconds below a second, tenths of
// seconds above.
func FormatRequestTime(d time.Duration) string {
	us := d.Microseconds()
	switch {
	case us < 1000:
		return fmt.Sprintf("%dµs", us)
	case us < 1000000:
		return fmt.Sprintf("%.1fms", float64(us)/1000.)
	default:
		return fmt.Sprintf("%.1fs", float64(us)/1000000.)
	}
}

// FormatBodySize renders a byte count with decimal (1000 based) units.
func FormatBodySize(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%dB", n)
	case n < 1000000:
		return fmt.Sprintf("%.1fkB", float64(n)/1000.)
	case n < 1000000000:
		return fmt.Sprintf("%.1fMB", float64(n)/1000000.)
	default:
		return fmt.Sprintf("%.1fGB", float64(n)/1000000000.)
	}
}
