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

package tenancy

import "context"

// Scope is the row-visibility predicate for one request: every statement a
// repository issues binds Scope.TenantID as its tenant_id parameter, so all
// reads and writes are restricted to the bound tenant even when the calling
// business logic never mentions tenants. A Scope can only be obtained from
// a tenant-bound context; there is no way to construct an unscoped one.
type Scope struct {
	tenantID string
}

// ScopeFrom derives the access scope from the request context. It fails
// with ErrNoTenant when no tenant is bound, which keeps unscoped queries
// unrepresentable rather than merely discouraged.
func ScopeFrom(ctx context.Context) (Scope, error) {
	id, err := Require(ctx)
	if err != nil {
		return Scope{}, err
	}
	return Scope{tenantID: id}, nil
}

// TenantID returns the tenant the scope restricts to.
func (s Scope) TenantID() string {
	return s.tenantID
}
