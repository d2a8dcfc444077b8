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
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const screenshotTimeout = 5 * time.Second

// Runner executes scenarios against a Browser.
type Runner struct {
	Browser Browser
	// Awaiter handles steps with AwaitNewPage. Defaults to an Awaiter
	// logging through Logf.
	Awaiter  *Awaiter
	Observer Observer
	// BaseURL resolves relative scenario URLs.
	BaseURL string
	// EventTimeout is used by AwaitNewPage steps without their own timeout.
	// Zero selects DefaultEventTimeout.
	EventTimeout time.Duration
	// ExpectTimeout is used by expectations without their own timeout. Zero
	// selects DefaultExpectTimeout.
	ExpectTimeout time.Duration
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (r *Runner) emit(ev RunEvent) {
	if r.Observer == nil {
		return
	}
	ev.Time = time.Now()
	r.Observer.Observe(ev)
}

func (r *Runner) awaiter() *Awaiter {
	if r.Awaiter != nil {
		return r.Awaiter
	}
	return &Awaiter{Logf: r.Logf}
}

// ResolveURL resolves ref against BaseURL. Absolute refs, and any ref when
// BaseURL is empty, are returned unchanged.
func (r *Runner) ResolveURL(ref string) (string, error) {
	if r.BaseURL == "" {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(r.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", r.BaseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

type run struct {
	id       string
	scenario string
	result   *Result
	session  SessionContext
}

// Run executes sc in a new session context and returns its result. The
// returned error is non-nil when the scenario did not pass; the result is
// returned in either case once the session was created.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if r.Browser == nil {
		return nil, errors.New("runner has no browser")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	rn := &run{
		id:       uuid.NewString(),
		scenario: sc.Name,
		result: &Result{
			Scenario:  sc.Name,
			StartedAt: time.Now(),
		},
	}
	rn.result.ID = rn.id
	r.logf("[RUN] %s: starting scenario %q", rn.id, sc.Name)
	r.emit(RunEvent{Type: RunStarted, RunID: rn.id, Scenario: sc.Name})

	err := r.run(ctx, rn, sc)

	rn.result.Duration = time.Since(rn.result.StartedAt)
	rn.result.Passed = err == nil
	if err != nil {
		rn.result.Error = err.Error()
		r.logf("[RUN] %s: scenario %q FAILED after %s: %v", rn.id, sc.Name, rn.result.Duration.Round(time.Millisecond), err)
	} else {
		r.logf("[RUN] %s: scenario %q passed in %s", rn.id, sc.Name, rn.result.Duration.Round(time.Millisecond))
	}
	r.emit(RunEvent{Type: RunFinished, RunID: rn.id, Scenario: sc.Name, Passed: err == nil, Error: rn.result.Error, Duration: rn.result.Duration})
	return rn.result, err
}

func (r *Runner) run(ctx context.Context, rn *run, sc *Scenario) error {
	session, err := r.Browser.NewContext()
	if err != nil {
		return fmt.Errorf("creating session context: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logf("[RUN] %s: closing session: %v", rn.id, err)
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	if sc.URL != "" {
		u, err := r.ResolveURL(sc.URL)
		if err != nil {
			return err
		}
		if err := page.Navigate(ctx, u); err != nil {
			return fmt.Errorf("navigating to %s: %w", u, err)
		}
		if err := page.WaitForLoad(ctx); err != nil {
			return fmt.Errorf("loading %s: %w", u, err)
		}
	}
	rn.session = session
	return r.runSteps(ctx, rn, page, sc.Steps, "")
}

func (r *Runner) runSteps(ctx context.Context, rn *run, page Page, steps []Step, prefix string) error {
	for i := range steps {
		st := &steps[i]
		if err := r.runStep(ctx, rn, page, st, st.title(prefix, i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, rn *run, page Page, st *Step, name string) error {
	r.emit(RunEvent{Type: StepStarted, RunID: rn.id, Scenario: rn.scenario, Step: name})
	start := time.Now()
	sr := StepResult{Name: name, Action: st.describe()}

	opened, output, err := r.execStep(ctx, rn, page, st)
	sr.Duration = time.Since(start)
	sr.Output = output
	if err != nil {
		sr.Error = err.Error()
		sr.Screenshot = r.screenshot(ctx, page, rn, name)
		rn.result.Steps = append(rn.result.Steps, sr)
		r.emit(RunEvent{Type: StepFailed, RunID: rn.id, Scenario: rn.scenario, Step: name, Error: sr.Error, Duration: sr.Duration})
		return fmt.Errorf("step %q: %w", name, err)
	}
	sr.Passed = true
	rn.result.Steps = append(rn.result.Steps, sr)
	r.emit(RunEvent{Type: StepPassed, RunID: rn.id, Scenario: rn.scenario, Step: name, Passed: true, Duration: sr.Duration})

	if opened != nil && len(st.Then) > 0 {
		return r.runSteps(ctx, rn, opened, st.Then, name+" > ")
	}
	return nil
}

// screenshot captures page for a failed step. It runs on a fresh deadline
// since the step may have failed because ctx expired.
func (r *Runner) screenshot(ctx context.Context, page Page, rn *run, name string) []byte {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()
	buf, err := page.Screenshot(sctx)
	if err != nil {
		r.logf("[RUN] %s: screenshot for step %q failed: %v", rn.id, name, err)
		return nil
	}
	return buf
}

func (r *Runner) execStep(ctx context.Context, rn *run, page Page, st *Step) (Page, string, error) {
	var (
		opened Page
		out    []string
	)
	if st.Goto != "" {
		u, err := r.ResolveURL(st.Goto)
		if err != nil {
			return nil, "", err
		}
		if err := page.Navigate(ctx, u); err != nil {
			return nil, "", fmt.Errorf("navigating to %s: %w", u, err)
		}
		if err := page.WaitForLoad(ctx); err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", u, err)
		}
	}

	if st.Action != 0 {
		a, err := NewAction(st.Action, st.Selector, st.Value)
		if err != nil {
			return nil, "", err
		}
		if st.AwaitNewPage != nil {
			timeout := st.AwaitNewPage.Timeout
			if timeout <= 0 {
				timeout = r.EventTimeout
			}
			var target Target = page
			if st.AwaitNewPage.Scope == ScopeContext {
				src, ok := rn.session.(EventSource)
				if !ok {
					return nil, "", fmt.Errorf("%w: session context does not report new pages", ErrUnsupportedEvent)
				}
				target = Bind(src, page)
			}
			outcome, err := r.awaiter().AwaitTriggeredEvent(ctx, target, a, NewPageEvent(timeout))
			if err != nil {
				return nil, "", err
			}
			opened = outcome.Page
			if err := opened.WaitForLoad(ctx); err != nil {
				return opened, "", fmt.Errorf("loading new page: %w", err)
			}
			if title, err := opened.Title(ctx); err == nil {
				out = append(out, fmt.Sprintf("new page: %s", title))
			}
		} else if err := page.Perform(ctx, a); err != nil {
			return nil, "", err
		}
	}

	if st.Log != "" {
		text, err := page.Locate(st.Log).TextContent(ctx)
		if err != nil {
			return opened, strings.Join(out, "\n"), fmt.Errorf("reading %s: %w", st.Log, err)
		}
		r.logf("[RUN] %s: %s", st.Log, strings.TrimSpace(text))
		out = append(out, strings.TrimSpace(text))
	}

	if st.Expect != nil {
		if err := r.expect(ctx, page, st); err != nil {
			return opened, strings.Join(out, "\n"), err
		}
	}
	return opened, strings.Join(out, "\n"), nil
}

func (r *Runner) expect(ctx context.Context, page Page, st *Step) error {
	e := st.Expect
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = r.ExpectTimeout
	}
	sel := e.selector(st)
	if e.ContainsText != "" {
		if err := ExpectContainsText(ctx, page.Locate(sel), sel, e.ContainsText, timeout); err != nil {
			return err
		}
	}
	if e.Checked != nil {
		if err := ExpectChecked(ctx, page.Locate(sel), sel, *e.Checked, timeout); err != nil {
			return err
		}
	}
	if e.TitleContains != "" {
		if err := ExpectTitleContains(ctx, page, e.TitleContains, timeout); err != nil {
			return err
		}
	}
	return nil
}
