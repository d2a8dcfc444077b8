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

// Package report persists scenario results.
package report

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/pagerunner/runner"
)

// Metadata is the summary of a stored run, kept in a sidecar file so that
// listing does not need to load screenshots.
type Metadata struct {
	ID         string        `json:"id"`
	Scenario   string        `json:"scenario"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Passed     bool          `json:"passed"`
	Steps      int           `json:"steps"`
	FailedStep string        `json:"failedStep,omitempty"`
	Error      string        `json:"error,omitempty"`
	// Latency holds the durations of the run's steps.
	Latency *Histogram `json:"latency,omitempty"`
}

// NewMetadata summarizes r.
func NewMetadata(r *runner.Result) Metadata {
	m := Metadata{
		ID:        r.ID,
		Scenario:  r.Scenario,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Passed:    r.Passed,
		Steps:     len(r.Steps),
		Error:     r.Error,
		Latency:   &Histogram{},
	}
	for _, st := range r.Steps {
		m.Latency.Add(st.Duration)
	}
	if f := r.Failed(); f != nil {
		m.FailedStep = f.Name
	}
	return m
}

// Store manages run results on disk.
type Store struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // *sync.RWMutex per run id
}

// NewStore creates a new Store.
func NewStore(dataDir string, s *storage.Storage) *Store {
	return &Store{DataDir: dataDir, storage: s}
}

func (st *Store) lock(id string) *sync.RWMutex {
	m, _ := st.mu.LoadOrStore(id, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func runFiles(id string) (string, string) {
	encoded := url.PathEscape(id)
	return filepath.Join("runs", encoded+".json"), filepath.Join("runs", encoded+".meta.json")
}

// Save writes r and its metadata sidecar.
func (st *Store) Save(r *runner.Result) error {
	if r.ID == "" {
		return errors.New("result has no id")
	}
	mutex := st.lock(r.ID)
	mutex.Lock()
	defer mutex.Unlock()

	filename, metaFilename := runFiles(r.ID)
	if err := st.storage.SaveDataFile(filename, r); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	meta := NewMetadata(r)
	if err := st.storage.SaveDataFile(metaFilename, &meta); err != nil {
		// Non-fatal, List falls back to the main file.
		log.Printf("Warning: Failed to save metadata sidecar for run %s: %v", r.ID, err)
	}
	return nil
}

// Load reads the result of run id. It returns os.ErrNotExist for unknown
// runs.
func (st *Store) Load(id string) (*runner.Result, error) {
	mutex := st.lock(id)
	mutex.RLock()
	defer mutex.RUnlock()

	filename, _ := runFiles(id)
	var r runner.Result
	if err := st.storage.ReadDataFile(filename, &r); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &r, nil
}

// Delete removes run id. Deleting an unknown run is not an error.
func (st *Store) Delete(id string) error {
	mutex := st.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	filename, metaFilename := runFiles(id)
	if err := os.Remove(filepath.Join(st.DataDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete run file: %w", err)
	}
	if err := os.Remove(filepath.Join(st.DataDir, metaFilename)); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not delete meta file for run %s: %v", id, err)
	}
	return nil
}

// List yields the metadata of every stored run, most recent first.
func (st *Store) List() iter.Seq2[Metadata, error] {
	return func(yield func(Metadata, error) bool) {
		files, err := os.ReadDir(filepath.Join(st.DataDir, "runs"))
		if err != nil && !os.IsNotExist(err) {
			yield(Metadata{}, fmt.Errorf("could not read runs directory: %w", err))
			return
		}

		hasMeta := make(map[string]bool)
		hasRun := make(map[string]bool)
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			if encoded, ok := strings.CutSuffix(name, ".meta.json"); ok {
				if id, err := url.PathUnescape(encoded); err == nil {
					hasMeta[id] = true
				}
			} else if encoded, ok := strings.CutSuffix(name, ".json"); ok {
				if id, err := url.PathUnescape(encoded); err == nil {
					hasRun[id] = true
				}
			}
		}

		var all []Metadata
		for id := range hasRun {
			if hasMeta[id] {
				_, metaFilename := runFiles(id)
				var meta Metadata
				err := st.storage.ReadDataFile(metaFilename, &meta)
				if err == nil {
					all = append(all, meta)
					continue
				}
				log.Printf("Warning: failed to load metadata for run %s: %v. Falling back to main file.", id, err)
			}
			r, err := st.Load(id)
			if err != nil {
				log.Printf("Warning: failed to load run %s: %v", id, err)
				continue
			}
			all = append(all, NewMetadata(r))
		}

		slices.SortFunc(all, func(a, b Metadata) int {
			return b.StartedAt.Compare(a.StartedAt)
		})
		for _, m := range all {
			if !yield(m, nil) {
				return
			}
		}
	}
}

// ScenarioStats aggregates the runs of one scenario.
type ScenarioStats struct {
	Runs    int       `json:"runs"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	LastRun time.Time `json:"lastRun"`
	// LastError is the error of the most recent failed run.
	LastError string `json:"lastError,omitempty"`
}

// Stats aggregates all stored runs.
type Stats struct {
	Runs        int                       `json:"runs"`
	Passed      int                       `json:"passed"`
	Failed      int                       `json:"failed"`
	StepLatency Histogram                 `json:"stepLatency"`
	RunLatency  Histogram                 `json:"runLatency"`
	Scenarios   map[string]*ScenarioStats `json:"scenarios"`
}

// Stats computes statistics over every stored run.
func (st *Store) Stats() (*Stats, error) {
	s := &Stats{Scenarios: make(map[string]*ScenarioStats)}
	for m, err := range st.List() {
		if err != nil {
			return nil, err
		}
		s.Add(m)
	}
	return s, nil
}

// Add accounts for one run.
func (s *Stats) Add(m Metadata) {
	s.Runs++
	s.StepLatency.Merge(m.Latency)
	s.RunLatency.Add(m.Duration)
	sc := s.Scenarios[m.Scenario]
	if sc == nil {
		sc = &ScenarioStats{}
		s.Scenarios[m.Scenario] = sc
	}
	sc.Runs++
	if m.Passed {
		s.Passed++
		sc.Passed++
	} else {
		s.Failed++
		sc.Failed++
	}
	if m.StartedAt.After(sc.LastRun) {
		sc.LastRun = m.StartedAt
		if !m.Passed {
			sc.LastError = m.Error
		} else {
			sc.LastError = ""
		}
	}
}
