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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/openpoll/openpoll/internal/idempotency"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// IdempotencyRepository implements idempotency.Ledger on top of the
// UNIQUE (tenant_id, key) constraint. The constraint, not application
// logic, is what makes concurrent claims safe.
type IdempotencyRepository struct {
	db *DB
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns the ledger record for a key, or nil when the key has
// never been seen by this tenant.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	var (
		rec        idempotency.Record
		responseID *string
	)
	err = r.db.pool.QueryRow(ctx, `
		SELECT tenant_id, key, response_id, created_at
		FROM idempotency_keys
		WHERE tenant_id = $1 AND key = $2
	`, scope.TenantID(), key).Scan(&rec.TenantID, &rec.Key, &responseID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	if responseID != nil {
		rec.ResponseID = *responseID
	}

	return &rec, nil
}

// Begin claims a key by inserting a pending row. ON CONFLICT DO NOTHING
// makes the insert a race: exactly one concurrent caller sees a row
// written and wins the claim, everyone else gets false.
func (r *IdempotencyRepository) Begin(ctx context.Context, key string) (bool, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return false, err
	}

	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (tenant_id, key, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, key) DO NOTHING
	`, scope.TenantID(), key, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Complete records the response produced for a key. The response_id IS
// NULL guard keeps the first completion authoritative: a retry that
// lost the race gets false back and must adopt the stored response.
func (r *IdempotencyRepository) Complete(ctx context.Context, key, responseID string) (bool, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return false, err
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET response_id = $3
		WHERE tenant_id = $1 AND key = $2 AND response_id IS NULL
	`, scope.TenantID(), key, responseID)
	if err != nil {
		return false, fmt.Errorf("failed to complete idempotency record: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
