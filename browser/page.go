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
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pagerunner/runner"
)

// Page is one tab of a Session.
type Page struct {
	session *Session
	// ctx is the chromedp context of the tab. Cancelling it closes the tab.
	ctx    context.Context
	cancel context.CancelFunc
	// shared is set for the session's initial tab, whose context is the
	// session's own.
	shared bool
	armed  atomic.Int32
}

var _ runner.Page = (*Page)(nil)

// runContext returns a context that carries the tab from p.ctx and ends
// when either p.ctx or ctx ends. It also inherits the deadline of ctx.
func (p *Page) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return mergeContext(p.ctx, ctx)
}

func mergeContext(base, ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(base)
	stop := context.AfterFunc(ctx, cancel)
	cancelDeadline := func() {}
	if dl, ok := ctx.Deadline(); ok {
		merged, cancelDeadline = context.WithDeadline(merged, dl)
	}
	return merged, func() {
		stop()
		cancelDeadline()
		cancel()
	}
}

// run executes actions on the tab, bounded by ctx. When ctx ended, its error
// is returned instead of whatever chromedp reported.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, stop := p.runContext(ctx)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

// WaitForLoad waits until the document body is ready.
func (p *Page) WaitForLoad(ctx context.Context) error {
	actions := []chromedp.Action{chromedp.WaitReady("body", chromedp.ByQuery)}
	if p.session.browser.opts.DisableAnimations {
		actions = append(actions, DisableCSSAnimations())
	}
	return p.run(ctx, actions...)
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Screenshot captures the viewport as a PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab. Closing a page twice is a no-op.
func (p *Page) Close() error {
	if !p.session.untrack(p) {
		return nil
	}
	if p.shared {
		return p.run(context.Background(), page.Close())
	}
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (p *Page) Locate(selector string) runner.Element {
	return &Element{page: p, selector: selector}
}

func (p *Page) Perform(ctx context.Context, a runner.Action) error {
	return runner.Dispatch(ctx, p, a)
}

func (p *Page) ArmedListeners(kind runner.EventKind) int {
	if kind != runner.EventNewPage {
		return 0
	}
	return int(p.armed.Load())
}

// Arm starts watching for pages opened by this one. The returned listener
// must be disarmed.
func (p *Page) Arm(kind runner.EventKind) (runner.Listener, error) {
	if kind != runner.EventNewPage {
		return nil, fmt.Errorf("%w: %s", runner.ErrUnsupportedEvent, kind)
	}
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return nil, errors.New("page is not attached to a target")
	}
	self := c.Target.TargetID
	return p.session.watch(p.ctx, &p.armed, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID == self
	}), nil
}

type listener struct {
	session *Session
	armed   *atomic.Int32
	cancel  context.CancelFunc
	out     chan runner.Page
	once    sync.Once
	// err is set before out is closed.
	err error
}

var _ runner.FailingListener = (*listener)(nil)

func (l *listener) Artifacts() <-chan runner.Page { return l.out }

// Err reports why Artifacts closed without a page. It is only meaningful
// once Artifacts is closed.
func (l *listener) Err() error { return l.err }

// forward attaches to the first matching target and hands the page over.
// It closes out when done.
func (l *listener) forward(ctx context.Context, ids <-chan target.ID) {
	defer close(l.out)
	select {
	case id, ok := <-ids:
		if !ok {
			return
		}
		child, err := l.session.attach(ctx, id)
		if err != nil {
			l.session.browser.opts.logf("[PAGE] attaching to new page %s: %v", id, err)
			l.err = fmt.Errorf("attaching to new page %s: %w", id, err)
			return
		}
		l.out <- child
	case <-ctx.Done():
	}
}

// Disarm stops the listener and closes any page it captured that was not
// received.
func (l *listener) Disarm() {
	l.once.Do(func() {
		l.cancel()
		for pg := range l.out {
			pg.Close()
		}
		l.armed.Add(-1)
	})
}
