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

import "context"

// Element is a lazily resolved handle to the element matching a selector.
// Every operation resolves the selector again.
type Element interface {
	Fill(ctx context.Context, text string) error
	Click(ctx context.Context) error
	SelectOption(ctx context.Context, value string) error
	Check(ctx context.Context) error
	IsChecked(ctx context.Context) (bool, error)
	TextContent(ctx context.Context) (string, error)
}

// Listener delivers the artifacts of one armed event subscription.
type Listener interface {
	// Artifacts yields captured pages. It is closed once the listener is
	// disarmed.
	Artifacts() <-chan Page
	// Disarm deregisters the listener. It is safe to call more than once.
	Disarm()
}

// FailingListener is a Listener that can report why its artifacts channel
// closed without delivering anything.
type FailingListener interface {
	Listener
	Err() error
}

// EventSource can register listeners for environment events.
type EventSource interface {
	Arm(kind EventKind) (Listener, error)
}

// Performer executes actions.
type Performer interface {
	Perform(ctx context.Context, a Action) error
}

// Target is what AwaitTriggeredEvent needs: somewhere to arm a listener and
// something to run the triggering action against.
type Target interface {
	EventSource
	Performer
}

// ListenerCounter is implemented by event sources that can report how many
// listeners are currently armed.
type ListenerCounter interface {
	ArmedListeners(kind EventKind) int
}

// Page is a handle to one browser tab.
type Page interface {
	Target
	Locator
	Navigate(ctx context.Context, url string) error
	WaitForLoad(ctx context.Context) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionContext is an isolated browsing context (cookies, storage) that
// owns a set of pages.
type SessionContext interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Browser creates isolated session contexts.
type Browser interface {
	NewContext() (SessionContext, error)
}

type targetFuncs struct {
	EventSource
	perform func(ctx context.Context, a Action) error
}

func (t targetFuncs) Perform(ctx context.Context, a Action) error { return t.perform(ctx, a) }

func (t targetFuncs) ArmedListeners(kind EventKind) int {
	if c, ok := t.EventSource.(ListenerCounter); ok {
		return c.ArmedListeners(kind)
	}
	return 0
}

// Bind combines an event source with a locator into a Target whose actions
// are dispatched against the locator's elements. Use it when the page that
// runs the action is not the one that reports the event.
func Bind(src EventSource, l Locator) Target {
	return targetFuncs{
		EventSource: src,
		perform: func(ctx context.Context, a Action) error {
			return Dispatch(ctx, l, a)
		},
	}
}
