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

package backend

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultAuthCookieName is the session cookie of the practice site.
const DefaultAuthCookieName = "pagerunner_auth"

func (o Options) authCookieName() string {
	if o.AuthCookieName == "" {
		return DefaultAuthCookieName
	}
	return o.AuthCookieName
}

// jwtAuthMiddleware authenticates requests carrying a session cookie. Keys
// come from opts.AuthJWKSURL when set, from local otherwise. Requests
// without a valid token proceed as anonymous.
func jwtAuthMiddleware(opts Options, local jwk.Set, next http.Handler) http.Handler {
	var (
		keys        = local
		lastRefresh time.Time
		mu          sync.RWMutex
	)

	refreshKeys := func() error {
		if opts.AuthJWKSURL == "" {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		set, err := jwk.Fetch(ctx, opts.AuthJWKSURL)
		if err != nil {
			return fmt.Errorf("failed to fetch JWKS: %w", err)
		}

		mu.Lock()
		keys = set
		lastRefresh = time.Now()
		mu.Unlock()
		return nil
	}

	// Non-fatal, retried on request.
	if err := refreshKeys(); err != nil {
		log.Printf("Warning: Failed to fetch JWKS on startup: %v", err)
	}

	findKey := func(set jwk.Set, id string) (any, error) {
		if set == nil {
			return nil, fmt.Errorf("JWKS not initialized")
		}
		key, ok := set.LookupKeyID(id)
		if !ok {
			return nil, fmt.Errorf("key %s not found in JWKS", id)
		}
		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			return nil, fmt.Errorf("failed to materialize key: %w", err)
		}
		return raw, nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(opts.authCookieName())
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (any, error) {
			switch token.Method.(type) {
			case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA, *jwt.SigningMethodEd25519:
			default:
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, fmt.Errorf("token missing 'kid' header")
			}

			mu.RLock()
			localKeys := keys
			localLastRefresh := lastRefresh
			mu.RUnlock()

			key, err := findKey(localKeys, kid)
			if err == nil {
				return key, nil
			}
			// Rotated remote keys. At most one refresh per minute.
			if opts.AuthJWKSURL != "" && time.Since(localLastRefresh) > time.Minute {
				if err := refreshKeys(); err != nil {
					log.Printf("Error refreshing JWKS: %v", err)
					return nil, err
				}
				mu.RLock()
				localKeys = keys
				mu.RUnlock()
				return findKey(localKeys, kid)
			}
			return nil, err
		}, jwt.WithExpirationRequired())

		if err != nil || !token.Valid {
			if opts.Debug {
				log.Printf("JWT Validation failed: %v", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if email, ok := claims["email"].(string); ok && email != "" {
				ctx := context.WithValue(r.Context(), userIDKey, normalizeEmail(email))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
