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

package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mhttp.org/mhttp/client"
	"mhttp.org/mhttp/header"
	"mhttp.org/mhttp/server"
	"mhttp.org/mhttp/wire"
)

func TestNetrcCredentialsAndPortOverride(t *testing.T) {
	var mu sync.Mutex
	var auth string
	port := startServer(t, func(w *server.ResponseWriter, r *server.Request) {
		v, _ := r.Header.Find("Authorization")
		mu.Lock()
		auth = v
		mu.Unlock()
		_ = w.WriteResponse(200, nil, nil)
	})
	path := filepath.Join(t.TempDir(), "netrc")
	content := fmt.Sprintf("machine 127.0.0.1 login alice password s3cret port %d\n", port)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write netrc: %v", err)
	}
	p := startPool(t, &Options{UseNetrc: true, NetrcPath: path})
	// no port in the target: the credential store override routes the
	// request to the stub server
	res, err := p.SendRequest(&wire.Request{
		Method: "GET",
		Target: mustURL(t, "http://127.0.0.1/"),
		Header: header.New(),
	}, client.RequestOptions{})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if res.Response.Status != 200 {
		t.Errorf("status = %d", res.Response.Status)
	}
	mu.Lock()
	defer mu.Unlock()
	if auth != "Basic YWxpY2U6czNjcmV0" {
		t.Errorf("Authorization = %q", auth)
	}
	snap := p.Snapshot()
	for key := range snap.ByKey {
		if key.Port == 80 {
			t.Errorf("key used the default port instead of the override: %v", key)
		}
	}
}

func TestNetrcTextualPortFallsBackToURIPort(t *testing.T) {
	port := startServer(t, server.EchoHandler)
	path := filepath.Join(t.TempDir(), "netrc")
	content := "machine 127.0.0.1 login alice password s3cret port smtp\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write netrc: %v", err)
	}
	p := startPool(t, &Options{UseNetrc: true, NetrcPath: path})
	res, err := p.SendRequest(&wire.Request{
		Method: "GET",
		Target: mustURL(t, fmt.Sprintf("http://127.0.0.1:%d/", port)),
		Header: header.New(),
	}, client.RequestOptions{})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if res.Response.Status != 200 {
		t.Errorf("status = %d", res.Response.Status)
	}
}
