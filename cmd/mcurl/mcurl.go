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

// mcurl fetches one URL through an mhttp pool and prints the response
// body.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"fortio.org/cli"
	"fortio.org/log"
	"mhttp.org/mhttp/client"
	"mhttp.org/mhttp/header"
	"mhttp.org/mhttp/pool"
	"mhttp.org/mhttp/wire"
)

type headerFlag struct {
	hdr *header.Set
}

func (h *headerFlag) String() string {
	return ""
}

func (h *headerFlag) Set(value string) error {
	name, v, found := strings.Cut(value, ":")
	if !found || strings.TrimSpace(name) == "" {
		return fmt.Errorf("invalid header %q, expecting Name: Value", value)
	}
	h.hdr.Append(strings.TrimSpace(name), strings.TrimSpace(v))
	return nil
}

var (
	methodFlag = flag.String("X", "", "http `method` to use, default GET (POST with -d)")
	dataFlag   = flag.String("d", "", "`payload` to send as request body")
	headFlag   = flag.Bool("head", false, "print the response status and header fields too")
	gzipFlag   = flag.Bool("compression", false, "advertise Accept-Encoding: gzip")
	netrcFlag  = flag.Bool("netrc", false, "look the host up in ~/.netrc for credentials")
	caFlag     = flag.String("cacert", "", "`Path` to a custom CA certificate bundle for TLS verification")
	noRedirect = flag.Bool("no-redirects", false, "do not follow redirections")
	maxRedirs  = flag.Int("max-redirects", client.DefaultMaxRedirections, "redirection budget")
	timeout    = flag.Duration("timeout", client.DefaultReadTimeout, "socket read `timeout`")
	extraHdr   = header.New()
)

func main() {
	os.Exit(Main())
}

func Main() int {
	flag.Var(&headerFlag{hdr: extraHdr}, "H",
		"extra `header` field to send, e.g -H Foo:Bar, can be repeated")
	cli.ProgramName = "mhttp curl"
	cli.ArgsHelp = "url"
	cli.MinArgs = 1
	cli.MaxArgs = 1
	cli.Main()
	target, err := url.Parse(flag.Arg(0))
	if err != nil {
		log.Errf("Bad url %q: %v", flag.Arg(0), err)
		return 1
	}
	if *caFlag != "" {
		pool.SetCACertificateBundlePath(*caFlag)
	}
	_, err = pool.Start(pool.DefaultPoolID, &pool.Options{
		UseNetrc: *netrcFlag,
		ClientOptions: client.Options{
			Compression: *gzipFlag,
			ReadTimeout: *timeout,
		},
	})
	if err != nil {
		log.Errf("Unable to start pool: %v", err)
		return 1
	}
	defer pool.StopAll()
	req := &wire.Request{
		Method: strings.ToUpper(*methodFlag),
		Target: target,
		Header: extraHdr,
		Body:   []byte(*dataFlag),
	}
	if req.Method == "" && len(req.Body) > 0 {
		req.Method = "POST"
	}
	res, err := pool.SendRequest(req, client.RequestOptions{
		DisableRedirects: *noRedirect,
		MaxRedirections:  *maxRedirs,
	})
	if err != nil {
		log.Errf("Request error: %v", err)
		return 1
	}
	resp := res.Response
	if *headFlag {
		fmt.Printf("%s %d %s\n", resp.Version, resp.Status, resp.Reason)
		for _, p := range resp.Header.Pairs() {
			fmt.Printf("%s: %s\n", p.Name, p.Value)
		}
		fmt.Println()
	}
	os.Stdout.Write(resp.Body)
	if resp.Status >= 400 {
		log.Errf("Status %d %s", resp.Status, resp.Reason)
		return 1
	}
	return 0
}
