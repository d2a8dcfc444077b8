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
	"slices"
	"sync"
)

// fakePage is an in-memory Page. Events emitted while no listener is armed
// are dropped, like a real browser event bus.
type fakePage struct {
	mu        sync.Mutex
	title     string
	url       string
	elements  map[string]*fakeElement
	listeners map[*fakeListener]bool
	// leaky makes Disarm keep the listener registered.
	leaky  bool
	closed bool
	trace  []string

	// onPerform replaces the default dispatch to elements.
	onPerform func(ctx context.Context, p *fakePage, a Action) error
}

func newFakePage(title string) *fakePage {
	return &fakePage{
		title:     title,
		elements:  make(map[string]*fakeElement),
		listeners: make(map[*fakeListener]bool),
	}
}

func (p *fakePage) record(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trace = append(p.trace, s)
}

func (p *fakePage) Trace() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.trace)
}

func (p *fakePage) add(sel string, el *fakeElement) *fakeElement {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[sel] = el
	return el
}

// emit delivers child to every armed listener without blocking.
func (p *fakePage) emit(child Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trace = append(p.trace, "emit")
	for l := range p.listeners {
		select {
		case l.ch <- child:
		default:
		}
	}
}

func (p *fakePage) Arm(kind EventKind) (Listener, error) {
	if kind != EventNewPage {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, kind)
	}
	l := &fakeListener{page: p, ch: make(chan Page, 1)}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[l] = true
	p.trace = append(p.trace, "arm")
	return l, nil
}

func (p *fakePage) ArmedListeners(EventKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *fakePage) Perform(ctx context.Context, a Action) error {
	p.record("perform " + a.String())
	if p.onPerform != nil {
		return p.onPerform(ctx, p, a)
	}
	return Dispatch(ctx, p, a)
}

func (p *fakePage) Locate(sel string) Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[sel]; ok {
		return el
	}
	return missingElement(sel)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.trace = append(p.trace, "navigate "+url)
	return nil
}

func (p *fakePage) WaitForLoad(ctx context.Context) error { return ctx.Err() }

func (p *fakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeListener struct {
	page *fakePage
	ch   chan Page
	once sync.Once
}

func (l *fakeListener) Artifacts() <-chan Page { return l.ch }

func (l *fakeListener) Disarm() {
	l.once.Do(func() {
		p := l.page
		p.mu.Lock()
		defer p.mu.Unlock()
		p.trace = append(p.trace, "disarm")
		if p.leaky {
			return
		}
		delete(p.listeners, l)
		close(l.ch)
	})
}

type fakeElement struct {
	mu      sync.Mutex
	text    string
	value   string
	checked bool
	options []string
	onClick func(ctx context.Context) error
}

func (e *fakeElement) Fill(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = text
	return nil
}

func (e *fakeElement) Click(ctx context.Context) error {
	e.mu.Lock()
	onClick := e.onClick
	e.mu.Unlock()
	if onClick != nil {
		return onClick(ctx)
	}
	return nil
}

func (e *fakeElement) SelectOption(ctx context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !slices.Contains(e.options, value) {
		return fmt.Errorf("%w: %q", ErrOptionNotFound, value)
	}
	e.value = value
	return nil
}

func (e *fakeElement) Check(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checked = true
	return nil
}

func (e *fakeElement) IsChecked(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checked, nil
}

func (e *fakeElement) TextContent(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *fakeElement) setText(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = s
}

func (e *fakeElement) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

type missingElement string

func (m missingElement) err() error { return fmt.Errorf("%w: %q", ErrElementNotFound, string(m)) }

func (m missingElement) Fill(context.Context, string) error         { return m.err() }
func (m missingElement) Click(context.Context) error                { return m.err() }
func (m missingElement) SelectOption(context.Context, string) error { return m.err() }
func (m missingElement) Check(context.Context) error                { return m.err() }
func (m missingElement) IsChecked(context.Context) (bool, error)    { return false, m.err() }
func (m missingElement) TextContent(context.Context) (string, error) {
	return "", m.err()
}

type fakeSession struct {
	mu      sync.Mutex
	newPage func() *fakePage
	pages   []*fakePage
	closed  bool
}

func (s *fakeSession) NewPage(ctx context.Context) (Page, error) {
	p := s.newPage()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
	return p, nil
}

// Arm watches the session's first page, which stands in for the whole
// browser context.
func (s *fakeSession) Arm(kind EventKind) (Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) == 0 {
		return nil, errors.New("no pages")
	}
	return s.pages[0].Arm(kind)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeBrowser struct {
	mu       sync.Mutex
	newPage  func() *fakePage
	sessions []*fakeSession
}

func (b *fakeBrowser) NewContext() (SessionContext, error) {
	s := &fakeSession{newPage: b.newPage}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append(b.sessions, s)
	return s, nil
}
