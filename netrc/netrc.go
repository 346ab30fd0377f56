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

// Package netrc reads ~/.netrc style credential files and resolves the
// entry matching a host.
package netrc // import "mhttp.org/mhttp/netrc"

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fortio.org/log"
	"fortio.org/safecast"
)

// Entry is one machine entry of a credential file.
type Entry struct {
	Machine  string // empty for the default entry
	Login    string
	Password string
	Account  string
	Port     string // raw port token, possibly a service name
}

// File is a parsed credential file.
type File struct {
	entries []Entry
}

// DefaultPath returns the conventional credential file location,
// $HOME/.netrc.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Unable to determine home directory: %v", err)
		return ".netrc"
	}
	return filepath.Join(home, ".netrc")
}

// Load reads and parses the credential file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses credential file content. Tokens are whitespace separated;
// recognized keywords are machine, default, login, password, account and
// port. A macdef block is skipped up to the next blank line.
func Parse(data []byte) (*File, error) {
	f := &File{}
	var cur *Entry
	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		for j := 0; j < len(fields); j++ {
			tok := fields[j]
			switch tok {
			case "machine", "login", "password", "account", "port":
				if j+1 >= len(fields) {
					return nil, fmt.Errorf("missing value for %q token", tok)
				}
				j++
				value := fields[j]
				if tok == "machine" {
					f.entries = append(f.entries, Entry{Machine: value})
					cur = &f.entries[len(f.entries)-1]
					continue
				}
				if cur == nil {
					return nil, fmt.Errorf("%q token before any machine entry", tok)
				}
				switch tok {
				case "login":
					cur.Login = value
				case "password":
					cur.Password = value
				case "account":
					cur.Account = value
				case "port":
					cur.Port = value
				}
			case "default":
				f.entries = append(f.entries, Entry{})
				cur = &f.entries[len(f.entries)-1]
			case "macdef":
				// skip the macro: rest of this line then everything up
				// to a blank line
				for i++; i < len(lines); i++ {
					if strings.TrimSpace(lines[i]) == "" {
						break
					}
				}
				j = len(fields)
			default:
				log.LogVf("Ignoring unknown netrc token %q", tok)
			}
		}
	}
	return f, nil
}

// Lookup returns the first entry matching host, falling back to the
// default entry if one exists.
func (f *File) Lookup(host string) (Entry, bool) {
	var def *Entry
	for i := range f.entries {
		e := &f.entries[i]
		if e.Machine == "" {
			if def == nil {
				def = e
			}
			continue
		}
		if strings.EqualFold(e.Machine, host) {
			return *e, true
		}
	}
	if def != nil {
		return *def, true
	}
	return Entry{}, false
}

// PortNumber resolves the entry's port token to a port number. Numeric
// tokens are used as-is; of the textual service names only "http" and
// "https" are recognized, anything else logs a warning and reports no
// override so the caller falls back to the port derived from the URI.
func (e Entry) PortNumber() (uint16, bool) {
	switch e.Port {
	case "":
		return 0, false
	case "http":
		return 80, true
	case "https":
		return 443, true
	}
	n, err := strconv.ParseUint(e.Port, 10, 64)
	if err != nil {
		log.Warnf("Unsupported netrc port value %q for machine %q, using the request port", e.Port, e.Machine)
		return 0, false
	}
	port, err := safecast.Convert[uint16](n)
	if err != nil {
		log.Warnf("Out of range netrc port value %q for machine %q, using the request port", e.Port, e.Machine)
		return 0, false
	}
	return port, true
}
