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

// Package backend serves the login practice site that scenarios run against
// and the dashboard of stored and live runs.
package backend

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/pagerunner/backend/search"
	"github.com/ttbt-io/pagerunner/report"
)

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

func parsePagination(r *http.Request) (int, int, string) {
	limit := 50
	offset := 0
	query := r.URL.Query().Get("q")

	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil {
			offset = val
		}
	}

	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, query
}

// Options represent server options.
type Options struct {
	Addr     string
	Cert     *tls.Certificate
	Listener net.Listener
	DataDir  string
	Debug    bool
	Storage  *storage.Storage
	Store    *report.Store
	Metrics  *Metrics

	// Auth Options
	Signer         *Signer
	AuthCookieName string
	// AuthJWKSURL makes the auth middleware verify tokens against a remote
	// key set instead of the Signer's.
	AuthJWKSURL string
	SessionTTL  time.Duration

	// Practice site credentials. Empty values use the defaults.
	PracticeUser     string
	PracticePassword string
}

//go:embed dashboard.html
var dashboardHTML []byte

//go:embed dashboard.js
var dashboardJS []byte

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	hub        *Hub
}

// Hub returns the live event hub. Pass it to the runner as an Observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Shutdown gracefully shuts down the HTTP server and disconnects the
// dashboards.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("http: %v", err))
	}
	s.hub.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	if opts.Listener == nil {
		ln, err := net.Listen("tcp", opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", opts.Addr, err)
		}
		opts.Listener = ln
	}
	hub, handler := NewServerHandler(opts)

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	go func() {
		var err error
		if httpServer.TLSConfig != nil {
			log.Printf("Starting HTTPS server on %s...", opts.Listener.Addr())
			err = httpServer.ServeTLS(opts.Listener, "", "")
		} else {
			log.Printf("Starting HTTP server on %s...", opts.Listener.Addr())
			err = httpServer.Serve(opts.Listener)
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{
		httpServer: httpServer,
		hub:        hub,
	}, nil
}

// NewServerHandler creates and configures the HTTP handler for the server.
func NewServerHandler(opts Options) (*Hub, http.Handler) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	store := opts.Store
	if store == nil {
		store = report.NewStore(opts.DataDir, opts.Storage)
	}
	signer := opts.Signer
	if signer == nil {
		var err error
		if signer, err = NewSigner(); err != nil {
			log.Fatalf("Failed to create session signer: %v", err)
		}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	debugf := func(string, ...any) {}
	if opts.Debug {
		debugf = func(f string, a ...any) {
			log.Printf("[DEBUG BACKEND] "+f, a...)
		}
	}
	hub := NewHub(metrics, debugf)
	mux := http.NewServeMux()

	newPracticeSite(opts, signer, debugf).register(mux)

	mux.HandleFunc("GET /api/jwks", func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(signer.KeySet())
		if err != nil {
			log.Printf("Internal Server Error during JWKS Marshal: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})

	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		limit, offset, query := parsePagination(r)
		q := search.Parse(query)

		runs := make([]report.Metadata, 0)
		total := 0
		for m, err := range store.List() {
			if err != nil {
				log.Printf("Listing runs: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if !search.Match(q, m) {
				continue
			}
			if total >= offset && len(runs) < limit {
				runs = append(runs, m)
			}
			total++
		}
		debugf("listed %d of %d runs for %q", len(runs), total, query)

		respData := struct {
			Data []report.Metadata `json:"data"`
			Meta struct {
				Total  int `json:"total"`
				Offset int `json:"offset"`
				Limit  int `json:"limit"`
			} `json:"meta"`
		}{
			Data: runs,
		}
		respData.Meta.Total = total
		respData.Meta.Offset = offset
		respData.Meta.Limit = limit
		writeJSON(w, r, respData)
	})

	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		res, err := store.Load(r.PathValue("id"))
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("Loading run %s: %v", r.PathValue("id"), err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, r, res)
	})

	mux.HandleFunc("DELETE /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.PathValue("id")); err != nil {
			log.Printf("Deleting run %s: %v", r.PathValue("id"), err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats()
		if err != nil {
			log.Printf("Computing stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, r, stats)
	})

	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := metrics.WriteJSON(w); err != nil {
			log.Printf("Writing metrics: %v", err)
		}
	})

	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	})

	mux.HandleFunc("GET /dashboard.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write(dashboardJS)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(dashboardHTML)
	})

	handler := http.Handler(mux)
	handler = jwtAuthMiddleware(opts, signer.KeySet(), handler)
	handler = loggingMiddleware(handler)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	return hub, handler
}

// writeJSON encodes v with an ETag and honors If-None-Match.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("Internal Server Error during JSON Marshal: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	etag := generateETag(body)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// cacheControlMiddleware lets proxies cache static assets only. API responses
// and the practice pages depend on the session cookie.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Ext(r.URL.Path) {
		case ".js", ".css":
			w.Header().Set("Cache-Control", "public, max-age=300, proxy-revalidate, no-transform")
		default:
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// contentTypeMiddleware ensures that files are served with the correct MIME type.
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Ext(r.URL.Path) {
		case ".js", ".mjs":
			w.Header().Set("Content-Type", "application/javascript")
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case ".png":
			w.Header().Set("Content-Type", "image/png")
		case ".json":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
