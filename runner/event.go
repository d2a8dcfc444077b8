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
	"fmt"
	"strings"
	"time"
)

// DefaultEventTimeout bounds an AwaitedEvent created without a timeout.
const DefaultEventTimeout = 30 * time.Second

// EventKind identifies an environment event that an action can trigger.
type EventKind int

const (
	// EventNewPage fires when a page (tab or popup) is opened by the page the
	// action ran on.
	EventNewPage EventKind = iota + 1
)

func (k EventKind) String() string {
	switch k {
	case EventNewPage:
		return "new-page"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind returns the EventKind named s.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new-page", "page":
		return EventNewPage, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEvent, s)
}

func (k EventKind) MarshalText() ([]byte, error) {
	if k != EventNewPage {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEvent, int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	v, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// AwaitedEvent describes an event expected as a side effect of an Action and
// how long to wait for it.
type AwaitedEvent struct {
	kind    EventKind
	timeout time.Duration
}

// NewPageEvent awaits a new page for at most timeout. A non-positive timeout
// selects DefaultEventTimeout.
func NewPageEvent(timeout time.Duration) AwaitedEvent {
	return NewAwaitedEvent(EventNewPage, timeout)
}

// NewAwaitedEvent awaits an event of the given kind for at most timeout. A
// non-positive timeout selects DefaultEventTimeout.
func NewAwaitedEvent(kind EventKind, timeout time.Duration) AwaitedEvent {
	if timeout <= 0 {
		timeout = DefaultEventTimeout
	}
	return AwaitedEvent{kind: kind, timeout: timeout}
}

func (e AwaitedEvent) Kind() EventKind { return e.kind }

// Timeout is always finite and positive.
func (e AwaitedEvent) Timeout() time.Duration {
	if e.timeout <= 0 {
		return DefaultEventTimeout
	}
	return e.timeout
}

func (e AwaitedEvent) String() string {
	return fmt.Sprintf("%s(timeout=%s)", e.kind, e.Timeout())
}

// Outcome is the result of a successful AwaitTriggeredEvent call.
type Outcome struct {
	Kind    EventKind
	Page    Page
	Elapsed time.Duration
}
