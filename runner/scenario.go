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

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a named sequence of steps run in a fresh session context.
type Scenario struct {
	Name string `yaml:"name"`
	// URL is opened before the first step. Relative URLs are resolved
	// against Runner.BaseURL.
	URL   string `yaml:"url,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one entry of a scenario. Its parts run in this order: Goto,
// Action (awaiting a new page if AwaitNewPage is set), Log, Expect, Then.
type Step struct {
	Name     string     `yaml:"name,omitempty"`
	Goto     string     `yaml:"goto,omitempty"`
	Action   ActionKind `yaml:"action,omitempty"`
	Selector string     `yaml:"selector,omitempty"`
	Value    string     `yaml:"value,omitempty"`
	// Log records the text content of the element matching this selector.
	Log          string       `yaml:"log,omitempty"`
	Expect       *Expectation `yaml:"expect,omitempty"`
	AwaitNewPage *AwaitSpec   `yaml:"awaitNewPage,omitempty"`
	// Then runs against the page captured by AwaitNewPage.
	Then []Step `yaml:"then,omitempty"`
}

// AwaitSpec configures the new-page wait of a step.
type AwaitSpec struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Scope selects which new pages count: ScopePage (the default) only
	// accepts pages opened by the step's page, ScopeContext accepts any page
	// of the session context.
	Scope string `yaml:"scope,omitempty"`
}

const (
	ScopePage    = "page"
	ScopeContext = "context"
)

// Expectation is an assertion checked after a step's action.
type Expectation struct {
	// Selector defaults to the step's selector.
	Selector      string        `yaml:"selector,omitempty"`
	ContainsText  string        `yaml:"containsText,omitempty"`
	Checked       *bool         `yaml:"checked,omitempty"`
	TitleContains string        `yaml:"titleContains,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := ParseScenario(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates a YAML scenario. Unknown fields are
// rejected.
func ParseScenario(b []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario for structural errors.
func (sc *Scenario) Validate() error {
	if strings.TrimSpace(sc.Name) == "" {
		return errors.New("scenario name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	return validateSteps(sc.Steps, "")
}

func validateSteps(steps []Step, prefix string) error {
	for i := range steps {
		st := &steps[i]
		name := st.title(prefix, i)
		if err := st.validate(); err != nil {
			return fmt.Errorf("step %q: %w", name, err)
		}
		if err := validateSteps(st.Then, name+" > "); err != nil {
			return err
		}
	}
	return nil
}

func (st *Step) validate() error {
	if st.Goto == "" && st.Action == 0 && st.Log == "" && st.Expect == nil {
		return errors.New("step does nothing")
	}
	if st.Action != 0 {
		if _, err := NewAction(st.Action, st.Selector, st.Value); err != nil {
			return err
		}
	}
	if aw := st.AwaitNewPage; aw != nil {
		if st.Action == 0 {
			return errors.New("awaitNewPage requires an action")
		}
		if aw.Scope != "" && aw.Scope != ScopePage && aw.Scope != ScopeContext {
			return fmt.Errorf("unknown awaitNewPage scope %q", aw.Scope)
		}
	}
	if len(st.Then) > 0 && st.AwaitNewPage == nil {
		return errors.New("then requires awaitNewPage")
	}
	if e := st.Expect; e != nil {
		if e.ContainsText == "" && e.Checked == nil && e.TitleContains == "" {
			return errors.New("expect has no assertion")
		}
		if (e.ContainsText != "" || e.Checked != nil) && e.selector(st) == "" {
			return errors.New("expect requires a selector")
		}
	}
	return nil
}

func (e *Expectation) selector(st *Step) string {
	if e.Selector != "" {
		return e.Selector
	}
	return st.Selector
}

func (st *Step) title(prefix string, i int) string {
	if st.Name != "" {
		return prefix + st.Name
	}
	return fmt.Sprintf("%s#%d", prefix, i+1)
}

func (st *Step) describe() string {
	var parts []string
	if st.Goto != "" {
		parts = append(parts, fmt.Sprintf("goto(%q)", st.Goto))
	}
	if st.Action != 0 {
		a := Action{kind: st.Action, selector: st.Selector, value: st.Value}
		parts = append(parts, a.String())
	}
	if st.AwaitNewPage != nil {
		parts = append(parts, "awaitNewPage")
	}
	if st.Log != "" {
		parts = append(parts, fmt.Sprintf("log(%q)", st.Log))
	}
	if st.Expect != nil {
		parts = append(parts, "expect")
	}
	return strings.Join(parts, " ")
}
