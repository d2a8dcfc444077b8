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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

type contextKey struct{}

// userIDKey is the context key for the authenticated user's ID.
// The associated value is always a string.
var userIDKey contextKey

// getUserID returns the UserID from the request context, if present.
func getUserID(r *http.Request) string {
	if val := r.Context().Value(userIDKey); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// normalizeEmail ensures consistent casing and whitespace for User IDs.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail obscures a user name for safe logging.
// e.g. "user@example.com" -> "u***@example.com", "rahul" -> "r***"
func maskEmail(email string) string {
	if email == "" {
		return "<empty>"
	}
	name, domain, ok := strings.Cut(email, "@")
	if name == "" {
		return "****"
	}
	if !ok {
		return name[:1] + "***"
	}
	return name[:1] + "***@" + domain
}

// DefaultSessionTTL is the lifetime of a practice-site session token.
const DefaultSessionTTL = time.Hour

// Signer issues ES256 session tokens. Its public key is published as a JWKS
// so that the auth middleware verifies tokens the same way it would verify
// tokens of an external identity provider.
type Signer struct {
	kid  string
	key  *ecdsa.PrivateKey
	keys jwk.Set
}

// NewSigner creates a Signer with a fresh P-256 key.
func NewSigner() (*Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	pub, err := jwk.Import(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("jwk.Import: %w", err)
	}
	kid := uuid.NewString()
	if err := pub.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}
	return &Signer{kid: kid, key: key, keys: set}, nil
}

// KeySet returns the public keys that verify the Signer's tokens.
func (s *Signer) KeySet() jwk.Set {
	return s.keys
}

// Issue returns a token for user that expires after ttl.
func (s *Signer) Issue(user string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"email": normalizeEmail(user),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"jti":   uuid.NewString(),
	})
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
