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
	"errors"
)

var (
	// ErrInvalidTarget is returned when no absolute URI with a supported
	// scheme and a host can be determined for a request.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrTooManyRedirections is returned when the redirection budget is
	// exhausted.
	ErrTooManyRedirections = errors.New("too many redirections")
	// ErrPoolStopped is returned for requests against a stopped pool.
	ErrPoolStopped = errors.New("pool is stopped")
	// ErrUnknownPool is returned by the registry for unregistered ids.
	ErrUnknownPool = errors.New("unknown pool")
	// ErrPoolAlreadyStarted is returned when starting a pool under an id
	// already in use.
	ErrPoolAlreadyStarted = errors.New("pool already started")
)
