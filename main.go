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

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"

	"github.com/ttbt-io/pagerunner/backend"
	"github.com/ttbt-io/pagerunner/browser"
	"github.com/ttbt-io/pagerunner/report"
	"github.com/ttbt-io/pagerunner/runner"
)

var (
	chromeURL         = flag.String("chrome-url", "", "Remote debugging URL of a running Chrome (e.g. ws://127.0.0.1:9222). Starts a local Chrome when empty.")
	headless          = flag.Bool("headless", true, "Run the local Chrome headless")
	scenarioFlag      = flag.String("scenario", "", "Comma-separated scenario files or globs")
	baseURL           = flag.String("base-url", "", "Base URL for relative scenario URLs. Defaults to the practice site with --serve.")
	serve             = flag.Bool("serve", false, "Serve the practice site and the run dashboard")
	addr              = flag.String("addr", "127.0.0.1:8080", "The TCP address to listen to with --serve")
	keepServing       = flag.Bool("keep-serving", false, "Keep serving after the scenarios finished, until interrupted")
	dataDir           = flag.String("data-dir", "data", "Directory for run reports")
	eventTimeout      = flag.Duration("event-timeout", runner.DefaultEventTimeout, "Default timeout of awaitNewPage steps")
	locateTimeout     = flag.Duration("locate-timeout", browser.DefaultLocateTimeout, "How long element operations wait for their selector")
	timeout           = flag.Duration("timeout", 10*time.Minute, "Overall timeout of the scenario runs")
	screenshotDir     = flag.String("screenshots", "", "Directory to write screenshots of failed steps to")
	disableAnimations = flag.Bool("disable-animations", false, "Turn off CSS animations after every page load")
	tlsCert           = flag.String("tls-cert", "", "Path to HTTP TLS certificate")
	tlsKey            = flag.String("tls-key", "", "Path to HTTP TLS key")
	authCookieName    = flag.String("auth-cookie-name", backend.DefaultAuthCookieName, "Name of the cookie containing the session JWT")
	authJWKSURL       = flag.String("auth-jwks-url", "", "Verify session JWTs against this JWKS endpoint instead of the local key")
	debugMode         = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	paths, err := expandScenarios(*scenarioFlag)
	if err != nil {
		log.Fatalf("Invalid --scenario: %v", err)
	}
	if len(paths) == 0 && !*serve {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass --scenario and/or --serve")
		flag.Usage()
		os.Exit(2)
	}
	scenarios := make([]*runner.Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := runner.LoadScenario(p)
		if err != nil {
			log.Fatalf("Failed to load scenario: %v", err)
		}
		scenarios = append(scenarios, sc)
	}

	st := openStorage(*dataDir)
	store := report.NewStore(*dataDir, st)

	var server *backend.Server
	if *serve {
		server = startServer(st, store)
	}

	failed := 0
	if len(scenarios) > 0 {
		failed = runScenarios(scenarios, store, server)
	}

	if server != nil && (len(scenarios) == 0 || *keepServing) {
		log.Println("Serving until interrupted...")
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
	}
	if server != nil {
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		cancel()
	}

	if failed > 0 {
		log.Printf("%d of %d scenarios failed", failed, len(scenarios))
		os.Exit(1)
	}
}

// openStorage initializes the encryption key and report storage. Reports are
// encrypted when PR_MASTER_KEY is set.
func openStorage(dataDir string) *storage.Storage {
	var masterKey crypto.MasterKey
	keyFile := filepath.Join(dataDir, "master.key")
	if passphrase := os.Getenv("PR_MASTER_KEY"); passphrase != "" {
		// Ensure data dir exists for key file
		os.MkdirAll(dataDir, 0755)

		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Fatalf("Failed to read master key: %v", err)
			}
			log.Println("Initializing new master encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				log.Fatalf("Failed to create master key: %v", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				log.Fatalf("Failed to save master key: %v", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			log.Fatalf("Critical Security Error: %s exists but PR_MASTER_KEY is not set. Refusing to read encrypted reports in unencrypted mode.", keyFile)
		}
		if *debugMode {
			log.Println("Warning: No PR_MASTER_KEY provided. Reports will be stored UNENCRYPTED.")
		}
	}

	st := storage.New(dataDir, masterKey)
	st.EnableCompression(true)
	return st
}

func startServer(st *storage.Storage, store *report.Store) *backend.Server {
	var cert *tls.Certificate
	if *tlsCert != "" && *tlsKey != "" {
		c, err := tls.LoadX509KeyPair(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("Failed to load TLS cert/key: %v", err)
		}
		cert = &c
	}
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", *addr, err)
	}
	server, err := backend.StartServer(backend.Options{
		Listener:       ln,
		Cert:           cert,
		DataDir:        *dataDir,
		Debug:          *debugMode,
		Storage:        st,
		Store:          store,
		AuthCookieName: *authCookieName,
		AuthJWKSURL:    *authJWKSURL,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	site := localURL(ln.Addr(), cert != nil)
	log.Printf("Practice site: %s/loginpagePractise/  Dashboard: %s/", site, site)
	if *baseURL == "" {
		*baseURL = site
	}
	return server
}

// runScenarios runs every scenario in its own session context and returns
// the number of failures.
func runScenarios(scenarios []*runner.Scenario, store *report.Store, server *backend.Server) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	opts := browser.Options{
		LocateTimeout:     *locateTimeout,
		DisableAnimations: *disableAnimations,
		Headless:          *headless,
		Debug:             *debugMode,
	}
	var b *browser.Browser
	var err error
	if *chromeURL != "" {
		b, err = browser.NewRemote(ctx, *chromeURL, opts)
	} else {
		b, err = browser.NewLocal(ctx, opts)
	}
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer b.Close()

	var observers runner.Observers
	if server != nil {
		observers = append(observers, server.Hub())
	}
	r := &runner.Runner{
		Browser:      b,
		Observer:     observers,
		BaseURL:      *baseURL,
		EventTimeout: *eventTimeout,
	}

	failed := 0
	for _, sc := range scenarios {
		res, err := r.Run(ctx, sc)
		if err != nil {
			failed++
		}
		if res == nil {
			continue
		}
		if err := store.Save(res); err != nil {
			log.Printf("Failed to save report of %q: %v", sc.Name, err)
		}
		if f := res.Failed(); f != nil && len(f.Screenshot) > 0 && *screenshotDir != "" {
			name := fmt.Sprintf("%s-%s.png", sanitize(sc.Name), res.ID)
			if err := browser.WriteScreenshot(filepath.Join(*screenshotDir, name), f.Screenshot); err != nil {
				log.Printf("%v", err)
			}
		}
		printResult(res)
	}
	return failed
}

func printResult(res *runner.Result) {
	status := "PASS"
	if !res.Passed {
		status = "FAIL"
	}
	fmt.Printf("%s %s (%s)\n", status, res.Scenario, res.Duration.Round(time.Millisecond))
	if res.Error != "" && res.Failed() == nil {
		fmt.Printf("  %s\n", res.Error)
	}
	for _, st := range res.Steps {
		mark := "ok  "
		if !st.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  %s %s (%s)\n", mark, st.Name, st.Duration.Round(time.Millisecond))
		if st.Output != "" {
			for _, line := range strings.Split(st.Output, "\n") {
				fmt.Printf("       %s\n", line)
			}
		}
		if st.Error != "" {
			fmt.Printf("       %s\n", st.Error)
		}
	}
}

// expandScenarios splits a comma-separated list of files and globs into
// sorted, de-duplicated paths. A glob that matches nothing is an error.
func expandScenarios(list string) ([]string, error) {
	var paths []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		matches, err := filepath.Glob(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: no such scenario file", item)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// localURL returns a URL reaching addr from this host.
func localURL(addr net.Addr, secure bool) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return scheme + "://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
