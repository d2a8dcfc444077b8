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
	"strings"
)

// ActionKind identifies the user-intent operation an Action performs.
type ActionKind int

const (
	ActionFill ActionKind = iota + 1
	ActionClick
	ActionSelectOption
	ActionCheck
)

var actionKindNames = map[ActionKind]string{
	ActionFill:         "fill",
	ActionClick:        "click",
	ActionSelectOption: "select-option",
	ActionCheck:        "check-state",
}

func (k ActionKind) String() string {
	if s, ok := actionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// ParseActionKind returns the ActionKind named s. Matching ignores case and
// surrounding whitespace.
func ParseActionKind(s string) (ActionKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range actionKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action kind %q", ErrInvalidAction, s)
}

func (k ActionKind) MarshalText() ([]byte, error) {
	if _, ok := actionKindNames[k]; !ok {
		return nil, fmt.Errorf("%w: unknown action kind %d", ErrInvalidAction, int(k))
	}
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(b []byte) error {
	v, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Action describes a single operation against an element of a page. The zero
// value is invalid; use Fill, Click, SelectOption or Check.
type Action struct {
	kind     ActionKind
	selector string
	value    string
}

// Fill replaces the contents of the input matching selector with text.
func Fill(selector, text string) Action {
	return Action{kind: ActionFill, selector: selector, value: text}
}

// Click clicks the element matching selector.
func Click(selector string) Action {
	return Action{kind: ActionClick, selector: selector}
}

// SelectOption selects the option with the given value (or label) in the
// <select> matching selector.
func SelectOption(selector, value string) Action {
	return Action{kind: ActionSelectOption, selector: selector, value: value}
}

// Check ensures the checkbox or radio button matching selector is checked.
func Check(selector string) Action {
	return Action{kind: ActionCheck, selector: selector}
}

// NewAction builds an Action from its parts, as read from a scenario file.
func NewAction(kind ActionKind, selector, value string) (Action, error) {
	a := Action{kind: kind, selector: selector, value: value}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func (a Action) Kind() ActionKind { return a.kind }
func (a Action) Selector() string { return a.selector }
func (a Action) Value() string    { return a.value }

// Validate reports whether the action can be dispatched.
func (a Action) Validate() error {
	if _, ok := actionKindNames[a.kind]; !ok {
		return fmt.Errorf("%w: unknown action kind %d", ErrInvalidAction, int(a.kind))
	}
	if strings.TrimSpace(a.selector) == "" {
		return fmt.Errorf("%w: %s requires a selector", ErrInvalidAction, a.kind)
	}
	return nil
}

func (a Action) String() string {
	switch a.kind {
	case ActionFill, ActionSelectOption:
		return fmt.Sprintf("%s(%q, %q)", a.kind, a.selector, a.value)
	default:
		return fmt.Sprintf("%s(%q)", a.kind, a.selector)
	}
}

// Locator resolves selectors to elements.
type Locator interface {
	Locate(selector string) Element
}

// Dispatch performs a on the element it targets.
func Dispatch(ctx context.Context, l Locator, a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	el := l.Locate(a.selector)
	switch a.kind {
	case ActionFill:
		return el.Fill(ctx, a.value)
	case ActionClick:
		return el.Click(ctx)
	case ActionSelectOption:
		return el.SelectOption(ctx, a.value)
	case ActionCheck:
		return el.Check(ctx)
	}
	return fmt.Errorf("%w: unhandled action kind %s", ErrInvalidAction, a.kind)
}
