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

package runner

import "time"

// Result is the record of one scenario run.
type Result struct {
	ID        string        `json:"id"`
	Scenario  string        `json:"scenario"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Passed    bool          `json:"passed"`
	Error     string        `json:"error,omitempty"`
	Steps     []StepResult  `json:"steps"`
}

// StepResult is the record of one executed step.
type StepResult struct {
	Name     string        `json:"name"`
	Action   string        `json:"action,omitempty"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
	// Screenshot is a PNG of the page, captured when the step failed.
	Screenshot []byte `json:"screenshot,omitempty"`
}

// Failed returns the first failed step, or nil.
func (r *Result) Failed() *StepResult {
	for i := range r.Steps {
		if !r.Steps[i].Passed {
			return &r.Steps[i]
		}
	}
	return nil
}

// RunEventType is the kind of progress reported to an Observer.
type RunEventType string

const (
	RunStarted  RunEventType = "run_started"
	StepStarted RunEventType = "step_started"
	StepPassed  RunEventType = "step_passed"
	StepFailed  RunEventType = "step_failed"
	RunFinished RunEventType = "run_finished"
)

// RunEvent reports progress of a scenario run.
type RunEvent struct {
	Type     RunEventType  `json:"type"`
	RunID    string        `json:"runId"`
	Scenario string        `json:"scenario"`
	Step     string        `json:"step,omitempty"`
	Passed   bool          `json:"passed,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Time     time.Time     `json:"time"`
}

// Observer receives run progress. Observe must not block.
type Observer interface {
	Observe(RunEvent)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(RunEvent)

func (f ObserverFunc) Observe(ev RunEvent) { f(ev) }

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) Observe(ev RunEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}
