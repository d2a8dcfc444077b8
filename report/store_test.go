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

package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"

	"github.com/ttbt-io/pagerunner/runner"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	return NewStore(dir, storage.New(dir, nil))
}

func sampleResult(id, scenario string, started time.Time, passed bool) *runner.Result {
	r := &runner.Result{
		ID:        id,
		Scenario:  scenario,
		StartedAt: started,
		Duration:  1200 * time.Millisecond,
		Passed:    passed,
		Steps: []runner.StepResult{
			{Name: "fill", Passed: true, Duration: 20 * time.Millisecond},
			{Name: "open documents", Passed: passed, Duration: 400 * time.Millisecond},
		},
	}
	if !passed {
		r.Error = "timed out waiting for new-page event"
		r.Steps[1].Error = r.Error
		r.Steps[1].Screenshot = []byte("png")
	}
	return r
}

func TestStore_SaveLoadDelete(t *testing.T) {
	st := newTestStore(t)
	r := sampleResult("run/1", "login", time.Now(), false)
	if err := st.Save(r); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(st.DataDir, "runs", "run%2F1.meta.json")); err != nil {
		t.Errorf("Expected metadata sidecar: %v", err)
	}

	got, err := st.Load("run/1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Scenario != "login" || got.Passed || len(got.Steps) != 2 {
		t.Errorf("Unexpected result %+v", got)
	}
	if string(got.Steps[1].Screenshot) != "png" {
		t.Errorf("Expected screenshot to round trip, got %q", got.Steps[1].Screenshot)
	}

	if err := st.Delete("run/1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.Load("run/1"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist after delete, got %v", err)
	}
	if err := st.Delete("run/1"); err != nil {
		t.Errorf("Expected second delete to succeed, got %v", err)
	}
}

func TestStore_SaveRequiresID(t *testing.T) {
	st := newTestStore(t)
	if err := st.Save(&runner.Result{}); err == nil {
		t.Errorf("Expected error for result without id")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	st := newTestStore(t)
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := st.Save(sampleResult(id, "login", base.Add(time.Duration(i)*time.Minute), true)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	// A run without its sidecar is listed from the main file.
	if err := os.Remove(filepath.Join(st.DataDir, "runs", "b.meta.json")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	var ids []string
	for m, err := range st.List() {
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		ids = append(ids, m.ID)
		if m.Steps != 2 {
			t.Errorf("Expected 2 steps for %s, got %d", m.ID, m.Steps)
		}
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Errorf("Expected [c b a], got %v", ids)
	}
}

func TestStore_ListEmpty(t *testing.T) {
	st := newTestStore(t)
	for m, err := range st.List() {
		t.Errorf("Expected nothing, got %+v, %v", m, err)
	}
}

func TestStore_Stats(t *testing.T) {
	st := newTestStore(t)
	base := time.Now()
	st.Save(sampleResult("1", "login", base, true))
	st.Save(sampleResult("2", "login", base.Add(time.Minute), false))
	st.Save(sampleResult("3", "shop", base, true))

	s, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Runs != 3 || s.Passed != 2 || s.Failed != 1 {
		t.Errorf("Unexpected totals %+v", s)
	}
	if s.StepLatency.Count != 6 {
		t.Errorf("Expected 6 step samples, got %d", s.StepLatency.Count)
	}
	login := s.Scenarios["login"]
	if login == nil || login.Runs != 2 || login.Failed != 1 {
		t.Fatalf("Unexpected login stats %+v", login)
	}
	if login.LastError == "" {
		t.Errorf("Expected last error from the most recent failed run")
	}
}

func TestStore_Encrypted(t *testing.T) {
	dir := t.TempDir()
	mk, err := crypto.CreateMasterKey()
	if err != nil {
		t.Fatalf("CreateMasterKey failed: %v", err)
	}
	st := NewStore(dir, storage.New(dir, mk))
	if err := st.Save(sampleResult("enc", "login", time.Now(), true)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "runs", "enc.json"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(raw) == 0 || bytes.Contains(raw, []byte("login")) {
		t.Errorf("Expected encrypted file contents")
	}
	got, err := st.Load("enc")
	if err != nil || got.Scenario != "login" {
		t.Errorf("Expected decrypted result, got %+v, %v", got, err)
	}
}
