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
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"fortio.org/log"
)

// decodeBody decompresses a gzip-encoded response body in place, recording
// the pre-decompression size in the response internals. Codings other than
// gzip and identity are passed through untouched; the client only ever
// advertises gzip.
func decodeBody(resp *Response) error {
	codings := resp.Header.ContentEncoding()
	if len(codings) == 0 {
		return nil
	}
	if len(codings) != 1 || codings[0] != "gzip" {
		if codings[0] != "identity" {
			log.LogVf("Leaving body with unsupported content coding %v untouched", codings)
		}
		return nil
	}
	r, err := gzip.NewReader(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("%w: gzip: %w", ErrInvalidBody, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: gzip: %w", ErrInvalidBody, err)
	}
	if err = r.Close(); err != nil {
		return fmt.Errorf("%w: gzip: %w", ErrInvalidBody, err)
	}
	resp.Internal.OriginalBodySize = int64(len(resp.Body))
	resp.Body = decoded
	return nil
}
