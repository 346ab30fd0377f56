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

// Package pool maps request URIs to a bounded set of reusable client
// connections keyed by (host, port, transport), follows redirections and
// orchestrates protocol upgrades. A manager goroutine owns the connection
// indexes; requests themselves run in the caller's goroutine.
package pool // import "mhttp.org/mhttp/pool"

import (
	"fmt"
	"math/rand"
	"sync"

	"fortio.org/log"
	"mhttp.org/mhttp/client"
	"mhttp.org/mhttp/netrc"
)

// DefaultMaxConnectionsPerKey caps concurrent connections per key.
const DefaultMaxConnectionsPerKey = 1

// Key identifies the set of connections a request can be served on.
type Key struct {
	Host      string
	Port      uint16
	Transport client.Transport
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d/%s", k.Host, k.Port, k.Transport)
}

// Options holds the configuration of a pool.
type Options struct {
	// ClientOptions are merged into every client created by the pool;
	// host, port and transport are always overridden per connection.
	ClientOptions client.Options
	// MaxConnectionsPerKey caps connections per key, default 1.
	MaxConnectionsPerKey int
	// UseNetrc enables credential lookup in a .netrc style file.
	UseNetrc bool
	// NetrcPath overrides the credential file location.
	NetrcPath string

	initDone bool
}

// Init normalizes the options. Safe to call more than once.
func (o *Options) Init() *Options {
	if o.initDone {
		return o
	}
	o.initDone = true
	if o.MaxConnectionsPerKey <= 0 {
		o.MaxConnectionsPerKey = DefaultMaxConnectionsPerKey
	}
	if o.NetrcPath == "" {
		o.NetrcPath = netrc.DefaultPath()
	}
	return o
}

// Pool owns the connection indexes for one pool id. Both indexes are
// mutated only by the manager goroutine; every insert and delete keeps
// them mutual inverses.
type Pool struct {
	id    string
	opts  *Options
	creds *netrc.File // nil when netrc is off or unreadable

	cmds     chan any
	done     chan struct{}
	stopOnce sync.Once
}

type acquireCmd struct {
	key   Key
	creds *client.Credentials
	reply chan acquireReply
}

type acquireReply struct {
	c   *client.Client
	err error
}

type exitMsg struct {
	c *client.Client
}

type snapshotCmd struct {
	reply chan Snapshot
}

type stopCmd struct {
	reply chan struct{}
}

// Snapshot is a copy of the pool indexes, for introspection.
type Snapshot struct {
	ByKey    map[Key][]*client.Client
	ByClient map[*client.Client]Key
}

// New creates a pool and starts its manager goroutine. Most callers go
// through the registry's Start instead.
func New(id string, opts *Options) *Pool {
	if opts == nil {
		opts = &Options{}
	}
	opts.Init()
	p := &Pool{
		id:   id,
		opts: opts,
		cmds: make(chan any),
		done: make(chan struct{}),
	}
	if opts.UseNetrc {
		creds, err := netrc.Load(opts.NetrcPath)
		if err != nil {
			log.Warnf("Pool %s: unable to load credentials from %s: %v", id, opts.NetrcPath, err)
		} else {
			p.creds = creds
		}
	}
	go p.manage()
	return p
}

// ID returns the pool identifier.
func (p *Pool) ID() string {
	return p.id
}

// Stop terminates every client of the pool and the manager goroutine.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		cmd := stopCmd{reply: make(chan struct{})}
		p.cmds <- cmd
		<-cmd.reply
	})
}

// Done is closed once the pool has stopped.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Snapshot returns a copy of the current connection indexes.
func (p *Pool) Snapshot() Snapshot {
	cmd := snapshotCmd{reply: make(chan Snapshot, 1)}
	select {
	case p.cmds <- cmd:
		return <-cmd.reply
	case <-p.done:
		return Snapshot{ByKey: map[Key][]*client.Client{}, ByClient: map[*client.Client]Key{}}
	}
}

// acquire returns a client for the key, opening a new connection while
// the key is under its cap, else sharing a random existing one.
func (p *Pool) acquire(key Key, creds *client.Credentials) (*client.Client, error) {
	cmd := acquireCmd{key: key, creds: creds, reply: make(chan acquireReply, 1)}
	select {
	case p.cmds <- cmd:
	case <-p.done:
		return nil, ErrPoolStopped
	}
	r := <-cmd.reply
	return r.c, r.err
}

func (p *Pool) manage() {
	byKey := map[Key][]*client.Client{}
	byClient := map[*client.Client]Key{}
	for cmd := range p.cmds {
		switch m := cmd.(type) {
		case acquireCmd:
			m.reply <- p.getOrCreateClient(byKey, byClient, m.key, m.creds)
		case exitMsg:
			p.prune(byKey, byClient, m.c)
		case snapshotCmd:
			snap := Snapshot{
				ByKey:    make(map[Key][]*client.Client, len(byKey)),
				ByClient: make(map[*client.Client]Key, len(byClient)),
			}
			for k, bucket := range byKey {
				snap.ByKey[k] = append([]*client.Client(nil), bucket...)
			}
			for c, k := range byClient {
				snap.ByClient[c] = k
			}
			m.reply <- snap
		case stopCmd:
			log.LogVf("Pool %s stopping, closing %d clients", p.id, len(byClient))
			for c := range byClient {
				c.Close()
			}
			close(p.done)
			m.reply <- struct{}{}
			return
		}
	}
}

func (p *Pool) getOrCreateClient(byKey map[Key][]*client.Client, byClient map[*client.Client]Key,
	key Key, creds *client.Credentials,
) acquireReply {
	bucket := byKey[key]
	if len(bucket) >= p.opts.MaxConnectionsPerKey {
		return acquireReply{c: bucket[rand.Intn(len(bucket))]} //nolint:gosec // load spreading, not crypto
	}
	c, err := client.Open(p.clientOptions(key, creds))
	if err != nil {
		return acquireReply{err: err}
	}
	byKey[key] = append(bucket, c)
	byClient[c] = key
	log.Debugf("Pool %s: new client for %v (%d/%d)", p.id, key, len(byKey[key]), p.opts.MaxConnectionsPerKey)
	go func() {
		<-c.Done()
		select {
		case p.cmds <- exitMsg{c: c}:
		case <-p.done:
		}
	}()
	return acquireReply{c: c}
}

// prune removes a terminated client from both indexes.
func (p *Pool) prune(byKey map[Key][]*client.Client, byClient map[*client.Client]Key, c *client.Client) {
	key, known := byClient[c]
	if !known {
		return
	}
	delete(byClient, c)
	bucket := byKey[key]
	for i, bc := range bucket {
		if bc == c {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(byKey, key)
	} else {
		byKey[key] = bucket
	}
	if err := c.Err(); err != nil {
		log.Warnf("Pool %s: client for %v terminated: %v", p.id, key, err)
	} else {
		log.Debugf("Pool %s: client for %v exited", p.id, key)
	}
}

// clientOptions merges the pool defaults with the per-connection key and
// credentials.
func (p *Pool) clientOptions(key Key, creds *client.Credentials) *client.Options {
	o := p.opts.ClientOptions
	o.Host = key.Host
	o.Port = key.Port
	o.Transport = key.Transport
	o.Pool = p.id
	if creds != nil {
		o.Credentials = creds
	}
	if o.CACertificateBundlePath == "" {
		o.CACertificateBundlePath = CACertificateBundlePath()
	}
	return &o
}
