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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pagerunner/runner"
)

// Element is the element matching a CSS selector on a Page. The selector is
// resolved again by every operation.
type Element struct {
	page     *Page
	selector string
}

var _ runner.Element = (*Element)(nil)

// locate waits up to the locate timeout for the selector to match. A miss is
// reported as runner.ErrElementNotFound rather than a deadline so that it
// is never mistaken for an event timeout.
func (e *Element) locate(ctx context.Context) error {
	lctx, cancel := context.WithTimeout(ctx, e.page.session.browser.opts.locateTimeout())
	defer cancel()
	err := e.page.run(lctx, chromedp.WaitReady(e.selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q", runner.ErrElementNotFound, e.selector)
	}
	return err
}

func (e *Element) do(ctx context.Context, actions ...chromedp.Action) error {
	if err := e.locate(ctx); err != nil {
		return err
	}
	return e.page.run(ctx, actions...)
}

// Fill clears the input and types text into it.
func (e *Element) Fill(ctx context.Context, text string) error {
	return e.do(ctx,
		chromedp.Clear(e.selector, chromedp.ByQuery),
		chromedp.SendKeys(e.selector, text, chromedp.ByQuery),
	)
}

func (e *Element) Click(ctx context.Context) error {
	return e.do(ctx, chromedp.Click(e.selector, chromedp.ByQuery))
}

const selectOptionJS = `(function(sel, want) {
	const el = document.querySelector(sel);
	if (!el || !el.options) return false;
	for (const opt of el.options) {
		if (opt.value === want || opt.label === want || opt.text.trim() === want) {
			el.value = opt.value;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
})(%s, %s)`

// SelectOption selects the option whose value, label or text is value, and
// fires the input and change events a user selection would.
func (e *Element) SelectOption(ctx context.Context, value string) error {
	sel, err := json.Marshal(e.selector)
	if err != nil {
		return err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var found bool
	if err := e.do(ctx, chromedp.Evaluate(fmt.Sprintf(selectOptionJS, sel, want), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q in %q", runner.ErrOptionNotFound, value, e.selector)
	}
	return nil
}

// Check clicks the checkbox or radio button unless it is already checked.
func (e *Element) Check(ctx context.Context) error {
	checked, err := e.IsChecked(ctx)
	if err != nil {
		return err
	}
	if checked {
		return nil
	}
	return e.page.run(ctx, chromedp.Click(e.selector, chromedp.ByQuery))
}

func (e *Element) IsChecked(ctx context.Context) (bool, error) {
	var checked bool
	if err := e.do(ctx, chromedp.JavascriptAttribute(e.selector, "checked", &checked, chromedp.ByQuery)); err != nil {
		return false, err
	}
	return checked, nil
}

func (e *Element) TextContent(ctx context.Context) (string, error) {
	var text string
	if err := e.do(ctx, chromedp.TextContent(e.selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}
