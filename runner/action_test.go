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
	"testing"
	"time"
)

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ActionKind
		wantErr bool
	}{
		{"fill", ActionFill, false},
		{" Click ", ActionClick, false},
		{"select-option", ActionSelectOption, false},
		{"check-state", ActionCheck, false},
		{"hover", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseActionKind(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseActionKind(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidAction) {
			t.Errorf("ParseActionKind(%q) error %v does not wrap ErrInvalidAction", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseActionKind(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestActionKindText(t *testing.T) {
	b, err := ActionSelectOption.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(b) != "select-option" {
		t.Errorf("Expected select-option, got %s", b)
	}
	if _, err := ActionKind(9).MarshalText(); err == nil {
		t.Errorf("Expected error marshaling unknown kind")
	}
	var k ActionKind
	if err := k.UnmarshalText([]byte("check-state")); err != nil || k != ActionCheck {
		t.Errorf("Expected check-state to decode to ActionCheck, got %s, %v", k, err)
	}
}

func TestActionValidate(t *testing.T) {
	if err := Fill("#username", "rahulshettyacademy").Validate(); err != nil {
		t.Errorf("Expected fill to be valid, got %v", err)
	}
	if err := Click("  ").Validate(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Expected ErrInvalidAction for blank selector, got %v", err)
	}
	var zero Action
	if err := zero.Validate(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Expected ErrInvalidAction for zero action, got %v", err)
	}
	if _, err := NewAction(ActionKind(0), "#x", ""); err == nil {
		t.Errorf("Expected NewAction to reject unknown kind")
	}
	a, err := NewAction(ActionSelectOption, "select.form-control", "consult")
	if err != nil {
		t.Fatalf("NewAction failed: %v", err)
	}
	if a != SelectOption("select.form-control", "consult") {
		t.Errorf("Expected NewAction to match SelectOption, got %s", a)
	}
}

func TestActionString(t *testing.T) {
	if got, want := Fill("#password", "learning").String(), `fill("#password", "learning")`; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got, want := Check("#terms").String(), `check-state("#terms")`; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	p := newFakePage("form")
	user := p.add("#username", &fakeElement{})
	sel := p.add("select.form-control", &fakeElement{options: []string{"stud", "teach", "consult"}})
	terms := p.add("#terms", &fakeElement{})
	clicked := false
	p.add("#signInBtn", &fakeElement{onClick: func(context.Context) error {
		clicked = true
		return nil
	}})

	steps := []Action{
		Fill("#username", "rahulshettyacademy"),
		SelectOption("select.form-control", "consult"),
		Check("#terms"),
		Click("#signInBtn"),
	}
	for _, a := range steps {
		if err := Dispatch(ctx, p, a); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", a, err)
		}
	}
	if user.Value() != "rahulshettyacademy" {
		t.Errorf("Expected username to be filled, got %q", user.Value())
	}
	if sel.Value() != "consult" {
		t.Errorf("Expected consult to be selected, got %q", sel.Value())
	}
	if ok, _ := terms.IsChecked(ctx); !ok {
		t.Errorf("Expected terms to be checked")
	}
	if !clicked {
		t.Errorf("Expected sign in to be clicked")
	}

	if err := Dispatch(ctx, p, SelectOption("select.form-control", "admin")); !errors.Is(err, ErrOptionNotFound) {
		t.Errorf("Expected ErrOptionNotFound, got %v", err)
	}
	if err := Dispatch(ctx, p, Click("#nope")); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("Expected ErrElementNotFound, got %v", err)
	}
}

func TestParseEventKind(t *testing.T) {
	for _, s := range []string{"new-page", "page", " PAGE "} {
		if k, err := ParseEventKind(s); err != nil || k != EventNewPage {
			t.Errorf("ParseEventKind(%q) = %s, %v", s, k, err)
		}
	}
	if _, err := ParseEventKind("download"); !errors.Is(err, ErrUnsupportedEvent) {
		t.Errorf("Expected ErrUnsupportedEvent, got %v", err)
	}
}

func TestAwaitedEventTimeout(t *testing.T) {
	if got := NewPageEvent(0).Timeout(); got != DefaultEventTimeout {
		t.Errorf("Expected default timeout, got %s", got)
	}
	if got := NewPageEvent(-time.Second).Timeout(); got != DefaultEventTimeout {
		t.Errorf("Expected default timeout for negative value, got %s", got)
	}
	if got := NewPageEvent(5 * time.Second).Timeout(); got != 5*time.Second {
		t.Errorf("Expected 5s, got %s", got)
	}
	var zero AwaitedEvent
	if zero.Timeout() <= 0 {
		t.Errorf("Expected zero event to have a positive timeout")
	}
}
