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
	"sort"
	"sync"

	"fortio.org/log"
	"mhttp.org/mhttp/client"
	"mhttp.org/mhttp/wire"
)

// DefaultPoolID is the pool used when request options name none.
const DefaultPoolID = "default"

// The registry is process-wide read-mostly state: the id to pool mapping
// plus the CA bundle path shared by every client.
var (
	registryMu sync.Mutex
	registry   = map[string]*Pool{}

	caMu         sync.Mutex
	caBundlePath string
	caBundleSet  bool
)

// SetCACertificateBundlePath sets the process-wide CA bundle used for TLS
// verification. Effective once, at startup; later calls are ignored with
// a warning.
func SetCACertificateBundlePath(path string) {
	caMu.Lock()
	defer caMu.Unlock()
	if caBundleSet {
		if path != caBundlePath {
			log.Warnf("CA bundle path already set to %q, ignoring %q", caBundlePath, path)
		}
		return
	}
	caBundlePath = path
	caBundleSet = true
}

// CACertificateBundlePath returns the process-wide CA bundle path, empty
// when unset.
func CACertificateBundlePath() string {
	caMu.Lock()
	defer caMu.Unlock()
	return caBundlePath
}

// Start registers and starts a pool under the given id.
func Start(id string, opts *Options) (*Pool, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		return nil, ErrPoolAlreadyStarted
	}
	p := New(id, opts)
	registry[id] = p
	log.LogVf("Started pool %s", id)
	return p, nil
}

// Get returns the pool registered under the id.
func Get(id string) (*Pool, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	p, found := registry[id]
	if !found {
		return nil, ErrUnknownPool
	}
	return p, nil
}

// Stop stops the pool registered under the id and removes it.
func Stop(id string) error {
	registryMu.Lock()
	p, found := registry[id]
	delete(registry, id)
	registryMu.Unlock()
	if !found {
		return ErrUnknownPool
	}
	p.Stop()
	log.LogVf("Stopped pool %s", id)
	return nil
}

// StopAll stops every registered pool.
func StopAll() {
	registryMu.Lock()
	pools := make([]*Pool, 0, len(registry))
	for _, p := range registry {
		pools = append(pools, p)
	}
	registry = map[string]*Pool{}
	registryMu.Unlock()
	for _, p := range pools {
		p.Stop()
	}
}

// Names returns the registered pool ids, sorted.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for id := range registry {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// SendRequest performs a request through the pool named by the request
// options, defaulting to the default pool.
func SendRequest(req *wire.Request, ropts client.RequestOptions) (*client.Result, error) {
	id := ropts.Pool
	if id == "" {
		id = DefaultPoolID
	}
	p, err := Get(id)
	if err != nil {
		return nil, err
	}
	return p.SendRequest(req, ropts)
}
