// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/pagerunner/report"
	"github.com/ttbt-io/pagerunner/runner"
)

type testServer struct {
	*httptest.Server
	hub    *Hub
	store  *report.Store
	signer *Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	store := report.NewStore(dir, storage.New(dir, nil))
	signer, err := NewSigner()
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	hub, handler := NewServerHandler(Options{
		DataDir: dir,
		Store:   store,
		Signer:  signer,
		Debug:   true,
	})
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		hub.Close()
	})
	return &testServer{Server: ts, hub: hub, store: store, signer: signer}
}

// browserClient keeps cookies and does not follow redirects.
func browserClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func storedResult(id, scenario string, started time.Time, passed bool) *runner.Result {
	r := &runner.Result{
		ID:        id,
		Scenario:  scenario,
		StartedAt: started,
		Duration:  800 * time.Millisecond,
		Passed:    passed,
		Steps: []runner.StepResult{
			{Name: "fill username", Passed: true, Duration: 30 * time.Millisecond},
			{Name: "open documents", Passed: passed, Duration: 300 * time.Millisecond},
		},
	}
	if !passed {
		r.Error = "timed out waiting for new-page event after 5s"
		r.Steps[1].Error = r.Error
	}
	return r
}
