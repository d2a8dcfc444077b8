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

// Command screenshots captures the pages of the practice site, including the
// tab opened by the documents link.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/pagerunner/backend"
	"github.com/ttbt-io/pagerunner/browser"
	"github.com/ttbt-io/pagerunner/runner"
)

var (
	chromeURL  = flag.String("chrome-url", "", "The url of the remote debugging port")
	serverHost = flag.String("server-host", "localhost", "Host name under which the browser reaches the practice site")
	outputDir  = flag.String("output-dir", "/screenshots", "Directory to save screenshots")
)

func main() {
	flag.Parse()

	if *chromeURL == "" {
		log.Fatal("--chrome-url must be set")
	}

	baseURL, stop := startServer()
	defer stop()
	log.Printf("Server started at %s", baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	b, err := browser.NewRemote(ctx, *chromeURL, browser.Options{DisableAnimations: true})
	if err != nil {
		log.Fatalf("Failed to connect to browser: %v", err)
	}
	defer b.Close()

	session, err := b.NewContext()
	if err != nil {
		log.Fatalf("NewContext: %v", err)
	}
	defer session.Close()
	page, err := session.NewPage(ctx)
	if err != nil {
		log.Fatalf("NewPage: %v", err)
	}

	if err := page.Navigate(ctx, baseURL+"/loginpagePractise/"); err != nil {
		log.Fatalf("Navigate: %v", err)
	}
	capture(ctx, page, "01-login.png")

	// Invalid credentials render the error alert.
	must(page.Perform(ctx, runner.Fill("#username", "Pavan123")))
	must(page.Perform(ctx, runner.Fill("#password", "testpwd")))
	must(page.Perform(ctx, runner.Click("#signInBtn")))
	must(page.WaitForLoad(ctx))
	capture(ctx, page, "02-login-error.png")

	out, err := runner.NewAwaiter().AwaitTriggeredEvent(ctx, page, runner.Click(".blinkingText"), runner.NewPageEvent(5*time.Second))
	if err != nil {
		log.Fatalf("Documents tab: %v", err)
	}
	must(out.Page.WaitForLoad(ctx))
	capture(ctx, out.Page, "03-documents.png")
	out.Page.Close()

	must(page.Perform(ctx, runner.Fill("#username", backend.DefaultPracticeUser)))
	must(page.Perform(ctx, runner.Fill("#password", backend.DefaultPracticePassword)))
	must(page.Perform(ctx, runner.Check("#terms")))
	must(page.Perform(ctx, runner.Click("#signInBtn")))
	must(page.WaitForLoad(ctx))
	capture(ctx, page, "04-shop.png")

	log.Printf("Screenshots written to %s", *outputDir)
}

func capture(ctx context.Context, p runner.Page, name string) {
	if err := browser.CaptureScreenshot(ctx, p, filepath.Join(*outputDir, name)); err != nil {
		log.Fatalf("Screenshot %s: %v", name, err)
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func startServer() (string, func()) {
	dataDir, err := os.MkdirTemp("", "pagerunner-screenshots")
	if err != nil {
		log.Fatalf("MkdirTemp: %v", err)
	}
	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		log.Fatalf("Listen: %v", err)
	}
	server, err := backend.StartServer(backend.Options{
		Listener: l,
		DataDir:  dataDir,
		Storage:  storage.New(dataDir, nil),
	})
	if err != nil {
		log.Fatalf("StartServer: %v", err)
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	return fmt.Sprintf("http://%s:%s", *serverHost, port), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		os.RemoveAll(dataDir)
	}
}
