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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultExpectTimeout = 5 * time.Second
	expectPollInterval   = 100 * time.Millisecond
)

// AssertionError is returned when an expectation is not met before its
// timeout.
type AssertionError struct {
	Assertion string
	Selector  string
	Expected  string
	Actual    string
	// Diff is a unified diff of Expected against Actual.
	Diff string
	// Err is the last error seen while reading the actual value, if any.
	Err error
}

func (e *AssertionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "expect(%s).%s failed", e.Selector, e.Assertion)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
		return sb.String()
	}
	fmt.Fprintf(&sb, "\nExpected: %q\nReceived: %q", e.Expected, e.Actual)
	if e.Diff != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Diff)
	}
	return sb.String()
}

func (e *AssertionError) Unwrap() error { return e.Err }

func unifiedDiff(expected, actual string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Received",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

// poll calls check until it reports done, ctx ends, or timeout elapses. It
// returns the last observed value and error. When ctx itself ended, the
// value is dropped and ctx's error is returned instead.
func poll(parent context.Context, timeout time.Duration, check func(ctx context.Context) (string, bool, error)) (string, bool, error) {
	if timeout <= 0 {
		timeout = DefaultExpectTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ticker := time.NewTicker(expectPollInterval)
	defer ticker.Stop()

	for {
		got, ok, err := check(ctx)
		if ok && err == nil {
			return got, true, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if perr := parent.Err(); perr != nil {
				return "", false, perr
			}
			return got, false, err
		}
	}
}

// ExpectContainsText waits until the text content of el contains substring.
func ExpectContainsText(ctx context.Context, el Element, selector, substring string, timeout time.Duration) error {
	got, ok, err := poll(ctx, timeout, func(ctx context.Context) (string, bool, error) {
		text, err := el.TextContent(ctx)
		return text, strings.Contains(text, substring), err
	})
	if ok {
		return nil
	}
	if err != nil && got == "" {
		return &AssertionError{Assertion: "toContainText", Selector: selector, Expected: substring, Err: err}
	}
	return &AssertionError{
		Assertion: "toContainText",
		Selector:  selector,
		Expected:  substring,
		Actual:    got,
		Diff:      unifiedDiff(substring, got),
	}
}

// ExpectChecked waits until the checked state of el equals want.
func ExpectChecked(ctx context.Context, el Element, selector string, want bool, timeout time.Duration) error {
	got, ok, err := poll(ctx, timeout, func(ctx context.Context) (string, bool, error) {
		checked, err := el.IsChecked(ctx)
		if err != nil {
			return "", false, err
		}
		return strconv.FormatBool(checked), checked == want, nil
	})
	if ok {
		return nil
	}
	assertion := "toBeChecked"
	if !want {
		assertion = "not.toBeChecked"
	}
	if err != nil && got == "" {
		return &AssertionError{Assertion: assertion, Selector: selector, Expected: strconv.FormatBool(want), Err: err}
	}
	return &AssertionError{Assertion: assertion, Selector: selector, Expected: strconv.FormatBool(want), Actual: got}
}

// ExpectTitleContains waits until the title of p contains substring.
func ExpectTitleContains(ctx context.Context, p Page, substring string, timeout time.Duration) error {
	got, ok, err := poll(ctx, timeout, func(ctx context.Context) (string, bool, error) {
		title, err := p.Title(ctx)
		return title, strings.Contains(title, substring), err
	})
	if ok {
		return nil
	}
	if err != nil && got == "" {
		return &AssertionError{Assertion: "toHaveTitle", Selector: "page", Expected: substring, Err: err}
	}
	return &AssertionError{
		Assertion: "toHaveTitle",
		Selector:  "page",
		Expected:  substring,
		Actual:    got,
		Diff:      unifiedDiff(substring, got),
	}
}
