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
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"fortio.org/log"
	"mhttp.org/mhttp/header"
)

// Transport is the kind of connection a client speaks over.
type Transport int

const (
	// TransportTCP is a plain TCP connection.
	TransportTCP Transport = iota
	// TransportTLS is a TLS connection.
	TransportTLS
)

func (t Transport) String() string {
	if t == TransportTLS {
		return "tls"
	}
	return "tcp"
}

// DefaultPort returns the default port of the transport (80 or 443).
func (t Transport) DefaultPort() uint16 {
	if t == TransportTLS {
		return 443
	}
	return 80
}

// TransportForScheme maps a URI scheme to its transport: http and ws to
// TCP, https and wss to TLS.
func TransportForScheme(scheme string) (Transport, error) {
	switch scheme {
	case "http", "ws":
		return TransportTCP, nil
	case "https", "wss":
		return TransportTLS, nil
	default:
		return TransportTCP, fmt.Errorf("unsupported scheme %q", scheme)
	}
}

// Credentials are a user/password pair sent as basic authentication.
type Credentials struct {
	User     string
	Password string
}

func (c *Credentials) basicAuthorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.User+":"+c.Password))
}

// TLSOptions are the extra TLS parameters of a connection.
type TLSOptions struct {
	Insecure bool   // Do not verify certs
	CACert   string // `Path` to a custom CA certificate file to be used
	Cert     string // `Path` to the certificate file to be used
	Key      string // `Path` to the key file used
}

const (
	// DefaultHost is the host connected to when none is configured.
	DefaultHost = "localhost"
	// DefaultConnectionTimeout bounds the connection establishment,
	// including the TLS handshake.
	DefaultConnectionTimeout = 5 * time.Second
	// DefaultReadTimeout bounds each individual socket read, not the whole
	// response.
	DefaultReadTimeout = 30 * time.Second
)

// Options holds the configuration of one client connection.
type Options struct {
	Host              string
	Port              uint16
	Transport         Transport
	ConnectionTimeout time.Duration
	ReadTimeout       time.Duration
	// ConnectOptions are extra TLS parameters, only used for TransportTLS.
	ConnectOptions TLSOptions
	// Header fields prepended to every request, in configured order.
	Header *header.Set
	// Compression makes the client advertise Accept-Encoding: gzip.
	Compression bool
	// DisableRequestLogs turns off the per-request log line.
	DisableRequestLogs bool
	// Pool is the owning pool id, for log context.
	Pool string
	// Credentials, when set, are sent as basic authentication.
	Credentials *Credentials
	// CACertificateBundlePath is the CA bundle used for TLS verification
	// when ConnectOptions does not name its own CA certificate.
	CACertificateBundlePath string

	initDone bool
}

// Init normalizes the options, filling in defaults. Safe to call more than
// once.
func (o *Options) Init() *Options {
	if o.initDone {
		return o
	}
	o.initDone = true
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = o.Transport.DefaultPort()
	}
	if o.ConnectionTimeout == 0 {
		o.ConnectionTimeout = DefaultConnectionTimeout
	}
	if o.ConnectionTimeout < 0 {
		log.Warnf("Invalid connection timeout %v, using %v", o.ConnectionTimeout, DefaultConnectionTimeout)
		o.ConnectionTimeout = DefaultConnectionTimeout
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Header == nil {
		o.Header = header.New()
	}
	return o
}

// tlsConfig builds the tls.Config of the connection: custom CA file, then
// the process CA bundle, then system roots.
func (o *Options) tlsConfig() (*tls.Config, error) {
	res := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: o.Host}
	to := &o.ConnectOptions
	if to.Insecure {
		log.LogVf("Using insecure tls for %s", o.Host)
		res.InsecureSkipVerify = true
	}
	if len(to.Cert) > 0 && len(to.Key) > 0 {
		cert, err := tls.LoadX509KeyPair(to.Cert, to.Key)
		if err != nil {
			log.Errf("LoadX509KeyPair error for cert %v / key %v: %v", to.Cert, to.Key, err)
			return nil, err
		}
		res.Certificates = []tls.Certificate{cert}
	}
	caPath := to.CACert
	if caPath == "" {
		caPath = o.CACertificateBundlePath
	}
	if len(caPath) > 0 {
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			log.Errf("Unable to read CA from %v: %v", caPath, err)
			return nil, err
		}
		log.LogVf("Using custom CA from %v", caPath)
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		res.RootCAs = caCertPool
	}
	return res, nil
}
