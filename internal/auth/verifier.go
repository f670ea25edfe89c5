// Copyright 2026 The OpenPoll Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth verifies bearer credentials and extracts the tenant claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential covers every verification failure: bad signature,
// wrong issuer, expired token, malformed claims. No claim from a token that
// fails verification is ever trusted.
var ErrInvalidCredential = errors.New("invalid credential")

// Claims is the decoded claim set of a verified token.
type Claims struct {
	Subject   string
	TenantID  string
	Roles     []string
	ExpiresAt time.Time
}

// Verifier validates HS256-signed bearer tokens against a shared secret
// and an expected issuer. It holds no mutable state and is safe for
// concurrent use from any number of requests.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. The secret must not be empty; failing
// fast here beats a verifier that rejects every token at runtime.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify checks the token's signature, issuer and expiry and returns the
// decoded claims. Any failure maps to ErrInvalidCredential.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidCredential)
	}

	claims := &Claims{}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	tenant, ok := mapClaims["tenant"].(string)
	if !ok || tenant == "" {
		return nil, fmt.Errorf("%w: missing tenant claim", ErrInvalidCredential)
	}
	claims.TenantID = tenant

	if raw, ok := mapClaims["roles"].([]any); ok {
		for _, r := range raw {
			if role, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, role)
			}
		}
	}

	return claims, nil
}
