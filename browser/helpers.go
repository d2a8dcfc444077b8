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
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/pagerunner/runner"
)

// CaptureScreenshot captures p and writes it to filename.
func CaptureScreenshot(ctx context.Context, p runner.Page, filename string) error {
	buf, err := p.Screenshot(ctx)
	if err != nil {
		return err
	}
	return WriteScreenshot(filename, buf)
}

// WriteScreenshot writes a captured PNG to filename, creating its directory.
func WriteScreenshot(filename string, buf []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for screenshot: %w", err)
	}
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot to file: %w", err)
	}
	log.Printf("Saved screenshot to %s", filename)
	return nil
}

// DisableCSSAnimations turns off transitions and animations on the current
// document. Applying it twice is harmless.
func DisableCSSAnimations() chromedp.ActionFunc {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(`(function() {
			if (document.getElementById('pr-no-animations')) return;
			const style = document.createElement('style');
			style.id = 'pr-no-animations';
			style.innerHTML = '*{-webkit-transition-duration:0s!important;transition-duration:0s!important;-webkit-animation-duration:0s!important;animation-duration:0s!important;}';
			document.head.appendChild(style);
		})()`, nil).Do(ctx)
	})
}
