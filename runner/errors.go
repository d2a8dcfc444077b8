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
	"time"
)

var (
	ErrInvalidAction    = errors.New("invalid action")
	ErrElementNotFound  = errors.New("element not found")
	ErrOptionNotFound   = errors.New("option not found")
	ErrUnsupportedEvent = errors.New("unsupported event")
	ErrListenerClosed   = errors.New("listener closed")
)

// ActionExecutionError reports that the triggering action itself failed.
type ActionExecutionError struct {
	Action Action
	Err    error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// EventTimeoutError reports that the awaited event was not observed before
// the deadline.
type EventTimeoutError struct {
	Kind    EventKind
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *EventTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s event after %s (timeout %s)", e.Kind, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

func (e *EventTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ListenerLeakError reports that a listener was still armed after an await
// returned. It indicates a bug in the EventSource.
type ListenerLeakError struct {
	Kind  EventKind
	Armed int
}

func (e *ListenerLeakError) Error() string {
	return fmt.Sprintf("%d %s listener(s) still armed after await", e.Armed, e.Kind)
}
