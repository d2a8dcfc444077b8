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

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pagerunner/runner"
)

var errSessionClosed = errors.New("session context closed")

// Session is an isolated browser context. Pages opened by its pages belong
// to it as well.
type Session struct {
	browser *Browser
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	closed    bool
	firstUsed bool
	pages     map[*Page]struct{}
	armed     atomic.Int32
}

var (
	_ runner.SessionContext  = (*Session)(nil)
	_ runner.EventSource     = (*Session)(nil)
	_ runner.ListenerCounter = (*Session)(nil)
)

// NewPage opens a new tab in the session. The first call reuses the blank
// tab created with the browser context.
func (s *Session) NewPage(ctx context.Context) (runner.Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errSessionClosed
	}
	first := !s.firstUsed
	s.firstUsed = true
	s.mu.Unlock()

	if first {
		p := &Page{session: s, ctx: s.ctx, cancel: func() {}, shared: true}
		s.track(p)
		s.listen(p)
		return p, nil
	}
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	return s.open(ctx, tabCtx, cancel)
}

func (s *Session) ArmedListeners(kind runner.EventKind) int {
	if kind != runner.EventNewPage {
		return 0
	}
	return int(s.armed.Load())
}

// Arm starts watching for any new page of the browser context, whichever
// page opened it.
func (s *Session) Arm(kind runner.EventKind) (runner.Listener, error) {
	if kind != runner.EventNewPage {
		return nil, fmt.Errorf("%w: %s", runner.ErrUnsupportedEvent, kind)
	}
	c := chromedp.FromContext(s.ctx)
	if c == nil {
		return nil, errSessionClosed
	}
	bc := c.BrowserContextID
	return s.watch(s.ctx, &s.armed, func(info *target.Info) bool {
		return info.Type == "page" && info.BrowserContextID == bc
	}), nil
}

// watch arms a listener for the first target accepted by match. parent must
// carry a chromedp context; cancelling it stops the listener.
func (s *Session) watch(parent context.Context, armed *atomic.Int32, match func(*target.Info) bool) *listener {
	lctx, cancel := context.WithCancel(parent)
	ids := chromedp.WaitNewTarget(lctx, match)
	l := &listener{
		session: s,
		armed:   armed,
		cancel:  cancel,
		out:     make(chan runner.Page, 1),
	}
	armed.Add(1)
	go l.forward(lctx, ids)
	return l
}

// attach wraps an existing target, such as a popup opened by one of the
// session's pages.
func (s *Session) attach(ctx context.Context, id target.ID) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
	return s.open(ctx, tabCtx, cancel)
}

func (s *Session) open(ctx context.Context, tabCtx context.Context, cancel context.CancelFunc) (*Page, error) {
	p := &Page{session: s, ctx: tabCtx, cancel: cancel}
	// The target's event loop lives as long as the context of its first Run,
	// so that has to be tabCtx itself.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("opening tab: %w", ctx.Err())
		}
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	s.track(p)
	s.listen(p)
	return p, nil
}

func (s *Session) track(p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages == nil {
		s.pages = make(map[*Page]struct{})
	}
	s.pages[p] = struct{}{}
}

// untrack reports whether p was still tracked.
func (s *Session) untrack(p *Page) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[p]; !ok {
		return false
	}
	delete(s.pages, p)
	return true
}

// listen logs console errors and uncaught exceptions of p in debug mode.
func (s *Session) listen(p *Page) {
	if !s.browser.opts.Debug {
		return
	}
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type == runtime.APITypeError {
				args := make([]string, len(ev.Args))
				for i, arg := range ev.Args {
					args[i] = string(arg.Value)
				}
				s.browser.opts.logf("[PAGE] console error: %s", strings.Join(args, " "))
			}
		case *runtime.EventExceptionThrown:
			s.browser.opts.logf("[PAGE] exception: %s", ev.ExceptionDetails.Text)
		}
	})
}

// Close closes every page of the session and disposes of the browser
// context.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pages := make([]*Page, 0, len(s.pages))
	for p := range s.pages {
		pages = append(pages, p)
	}
	s.pages = nil
	s.mu.Unlock()

	for _, p := range pages {
		p.cancel()
	}
	// Cancel fails if the initial tab was already closed; the browser
	// context is disposed of regardless.
	if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.browser.opts.logf("[SESSION] closing browser context: %v", err)
	}
	s.cancel()
	return nil
}
