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

// mhttpd runs the debug echo server until interrupted.
package main

import (
	"flag"
	"os"

	"fortio.org/cli"
	"fortio.org/log"
	"fortio.org/scli"
	"mhttp.org/mhttp/server"
	"mhttp.org/mhttp/version"
)

var portFlag = flag.String("port", "8080", "`port` (or bind address and port) to listen on")

func main() {
	os.Exit(Main())
}

func Main() int {
	cli.ProgramName = "mhttpd"
	scli.ServerMain() // will Exit if there were arguments/flags errors.
	s := &server.Server{Name: "echo", Port: *portFlag}
	if s.Start() == nil {
		return 1 // error already logged
	}
	log.Infof("mhttpd %s started", version.Long())
	select {}
}
