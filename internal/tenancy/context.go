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

// Package tenancy carries the resolved tenant identity for the lifetime of
// a single request. The identity is bound into the request context by the
// tenant binder middleware and read back at the data-access boundary; it is
// never stored globally and dies with the request context, so two
// concurrent requests can never observe each other's tenant.
package tenancy

import (
	"context"
	"errors"
)

type contextKey struct{}

var tenantKey contextKey

// ErrNoTenant is returned when code that requires a bound tenant runs
// outside a tenant-bound request context.
var ErrNoTenant = errors.New("no tenant bound to context")

// WithTenant returns a child context carrying the given tenant ID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// FromContext retrieves the bound tenant ID, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Require retrieves the bound tenant ID or fails with ErrNoTenant.
// Repositories call this before issuing any tenant-scoped statement, so a
// missing binding surfaces as an error rather than an unscoped query.
func Require(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoTenant
	}
	return id, nil
}
