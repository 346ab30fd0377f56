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

package netrc

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
machine example.org login alice password s3cret port 8080
machine api.example.org
  login bob
  password hunter2
  port https

macdef init
echo hello

machine text-port.example.org login carol password pw port smtp
default login dave password fallback
`

func TestParseAndLookup(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e, found := f.Lookup("example.org")
	if !found || e.Login != "alice" || e.Password != "s3cret" {
		t.Errorf("example.org entry = %+v, %v", e, found)
	}
	if port, has := e.PortNumber(); !has || port != 8080 {
		t.Errorf("example.org port = %d, %v", port, has)
	}
	e, found = f.Lookup("API.example.org")
	if !found || e.Login != "bob" {
		t.Errorf("case insensitive machine match failed: %+v, %v", e, found)
	}
	if port, has := e.PortNumber(); !has || port != 443 {
		t.Errorf("https service port = %d, %v", port, has)
	}
	e, found = f.Lookup("unknown.example.org")
	if !found || e.Login != "dave" {
		t.Errorf("default entry = %+v, %v", e, found)
	}
}

func TestTextualPortFallsBack(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e, found := f.Lookup("text-port.example.org")
	if !found {
		t.Fatalf("entry not found")
	}
	// only http and https are recognized service names
	if port, has := e.PortNumber(); has {
		t.Errorf("smtp port resolved to %d, want no override", port)
	}
}

func TestHTTPPort(t *testing.T) {
	f, err := Parse([]byte("machine a.example.org login x password y port http\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e, _ := f.Lookup("a.example.org")
	if port, has := e.PortNumber(); !has || port != 80 {
		t.Errorf("http service port = %d, %v", port, has)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("machine")); err == nil {
		t.Errorf("missing machine value accepted")
	}
	if _, err := Parse([]byte("login alice")); err == nil {
		t.Errorf("login before machine accepted")
	}
}

func TestNoDefaultEntry(t *testing.T) {
	f, err := Parse([]byte("machine only.example.org login x password y\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, found := f.Lookup("other.example.org"); found {
		t.Errorf("lookup matched without a default entry")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netrc")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, found := f.Lookup("example.org"); !found {
		t.Errorf("loaded file missing entry")
	}
	if _, err = Load(filepath.Join(dir, "missing")); err == nil {
		t.Errorf("missing file did not error")
	}
}
