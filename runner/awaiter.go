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
	"time"

	"golang.org/x/sync/errgroup"
)

// State is the progress of a single AwaitTriggeredEvent call.
type State int

const (
	StateIdle State = iota
	StateListenerArmed
	StateActionRunning
	StateEventCaptured
	StateActionFailed
	StateTimedOut
	// StateCanceled means the caller's context was canceled before the call
	// could be classified.
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListenerArmed:
		return "ListenerArmed"
	case StateActionRunning:
		return "ActionRunning"
	case StateEventCaptured:
		return "EventCaptured"
	case StateActionFailed:
		return "ActionFailed"
	case StateTimedOut:
		return "TimedOut"
	case StateCanceled:
		return "Canceled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateEventCaptured || s == StateActionFailed || s == StateTimedOut || s == StateCanceled
}

// Awaiter runs an action that is expected to trigger an event together with
// the wait for that event. It holds no state between calls; calls against
// the same session must be serialized by the caller.
type Awaiter struct {
	// OnTransition, if set, is called synchronously on every state change.
	OnTransition func(State)
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

// NewAwaiter returns an Awaiter that logs with log.Printf.
func NewAwaiter() *Awaiter {
	return &Awaiter{}
}

func (a *Awaiter) transition(s State) {
	if a != nil && a.OnTransition != nil {
		a.OnTransition(s)
	}
}

func (a *Awaiter) logf(format string, args ...any) {
	if a != nil && a.Logf != nil {
		a.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func armedListeners(src EventSource, kind EventKind) int {
	if c, ok := src.(ListenerCounter); ok {
		return c.ArmedListeners(kind)
	}
	return 0
}

// AwaitTriggeredEvent arms a listener for event on target, then performs
// action on target, and returns once the action has completed and the event
// has fired. Both branches share a single deadline: event.Timeout() or the
// deadline of ctx, whichever comes first.
//
// The listener is disarmed before returning on every path.
func (a *Awaiter) AwaitTriggeredEvent(ctx context.Context, target Target, action Action, event AwaitedEvent) (*Outcome, error) {
	if err := action.Validate(); err != nil {
		return nil, &ActionExecutionError{Action: action, Err: err}
	}
	kind := event.Kind()
	timeout := event.Timeout()
	baseline := armedListeners(target, kind)

	start := time.Now()
	// A caller deadline shorter than the event timeout bounds the wait.
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < timeout {
			timeout = max(left, 0)
		}
	}
	listener, err := target.Arm(kind)
	if err != nil {
		return nil, fmt.Errorf("arming %s listener: %w", kind, err)
	}
	a.transition(StateListenerArmed)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		page      Page
		actionErr error
		waitErr   error
	)
	g, gctx := errgroup.WithContext(waitCtx)
	a.transition(StateActionRunning)
	g.Go(func() error {
		actionErr = target.Perform(gctx, action)
		return actionErr
	})
	g.Go(func() error {
		select {
		case p, ok := <-listener.Artifacts():
			if !ok {
				waitErr = ErrListenerClosed
				if fl, ok := listener.(FailingListener); ok && fl.Err() != nil {
					waitErr = fmt.Errorf("%w: %w", ErrListenerClosed, fl.Err())
				}
				return waitErr
			}
			page = p
			return nil
		case <-gctx.Done():
			waitErr = gctx.Err()
			return waitErr
		}
	})
	_ = g.Wait()
	listener.Disarm()
	elapsed := time.Since(start)

	outcome, err := a.resolve(ctx, waitCtx, action, kind, timeout, page, actionErr, waitErr, elapsed)
	if err != nil && page != nil {
		// The page arrived but the call failed; nobody else holds it.
		if cerr := page.Close(); cerr != nil {
			a.logf("[AWAIT] closing orphaned page: %v", cerr)
		}
	}
	if armed := armedListeners(target, kind) - baseline; armed > 0 {
		if outcome != nil {
			outcome.Page.Close()
		}
		return nil, &ListenerLeakError{Kind: kind, Armed: armed}
	}
	return outcome, err
}

// resolve classifies the joined branches. timeout is the effective wait,
// which is shorter than the event's own timeout when the caller's deadline
// came first.
func (a *Awaiter) resolve(ctx, waitCtx context.Context, action Action, kind EventKind, timeout time.Duration, page Page, actionErr, waitErr error, elapsed time.Duration) (*Outcome, error) {
	if actionErr == nil && page != nil {
		a.transition(StateEventCaptured)
		a.logf("[AWAIT] %s captured after %s (%s)", kind, elapsed.Round(time.Millisecond), action)
		return &Outcome{Kind: kind, Page: page, Elapsed: elapsed}, nil
	}
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		a.transition(StateCanceled)
		return nil, fmt.Errorf("awaiting %s: %w", kind, err)
	}
	if errors.Is(waitErr, ErrListenerClosed) {
		a.transition(StateActionFailed)
		return nil, fmt.Errorf("awaiting %s: %w", kind, waitErr)
	}

	// Either deadline, the event's or the caller's, ends the wait the same way.
	deadlineHit := errors.Is(waitCtx.Err(), context.DeadlineExceeded)
	if actionErr != nil && !(deadlineHit && errors.Is(actionErr, context.DeadlineExceeded)) {
		a.transition(StateActionFailed)
		a.logf("[AWAIT] %s failed, abandoning %s wait: %v", action, kind, actionErr)
		return nil, &ActionExecutionError{Action: action, Err: actionErr}
	}
	if page == nil {
		a.transition(StateTimedOut)
		a.logf("[AWAIT] no %s event within %s (%s)", kind, timeout, action)
		return nil, &EventTimeoutError{Kind: kind, Timeout: timeout, Elapsed: elapsed}
	}
	// The event fired but the action never completed.
	a.transition(StateActionFailed)
	return nil, &ActionExecutionError{Action: action, Err: actionErr}
}
