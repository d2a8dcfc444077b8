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

// Package browser implements the runner's Browser, SessionContext and Page
// on top of chromedp.
package browser

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pagerunner/runner"
)

// DefaultLocateTimeout bounds how long an element operation waits for its
// selector to match.
const DefaultLocateTimeout = 2 * time.Second

// Options configure a Browser.
type Options struct {
	// LocateTimeout bounds the wait for a selector before an element
	// operation fails with runner.ErrElementNotFound.
	LocateTimeout time.Duration
	// DisableAnimations injects a style sheet that turns off CSS transitions
	// after every page load.
	DisableAnimations bool
	// Headless applies to NewLocal only.
	Headless bool
	// Debug logs chromedp protocol messages and page console errors.
	Debug bool
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

func (o Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (o Options) locateTimeout() time.Duration {
	if o.LocateTimeout <= 0 {
		return DefaultLocateTimeout
	}
	return o.LocateTimeout
}

// Browser is a Chrome instance driven over the DevTools protocol.
type Browser struct {
	opts        Options
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewRemote connects to an already running Chrome at url, the address of its
// remote debugging port (e.g. ws://127.0.0.1:9222 or http://127.0.0.1:9222).
func NewRemote(ctx context.Context, url string, opts Options) (*Browser, error) {
	allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, url)
	return start(allocCtx, cancel, opts)
}

// NewLocal starts a new Chrome process.
func NewLocal(ctx context.Context, opts Options) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 900),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return start(allocCtx, cancel, opts)
}

func start(allocCtx context.Context, cancelAlloc context.CancelFunc, opts Options) (*Browser, error) {
	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(opts.logf)}
	if opts.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(opts.logf))
	}
	ctx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)
	// The first Run starts (or connects to) the browser.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return &Browser{
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
	}, nil
}

// NewContext creates an isolated browser context with its own cookies and
// storage.
func (b *Browser) NewContext() (runner.SessionContext, error) {
	ctx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	return &Session{browser: b, ctx: ctx, cancel: cancel}, nil
}

// Close shuts the browser down, or disconnects from it for NewRemote.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.cancelAlloc()
	return err
}
