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
	"fmt"
	"time"

	"github.com/openpoll/openpoll/internal/outbox"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// OutboxRepository implements outbox.Repository. Fetch and dispatch run
// from a background worker without a request scope, so they are the one
// place that reads across tenants; each record still carries its
// tenant_id for the notifier.
type OutboxRepository struct {
	db *DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Append stores an event for later dispatch, bound to the request's tenant.
func (r *OutboxRepository) Append(ctx context.Context, eventType string, payload []byte) error {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return err
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO outbox (tenant_id, event_type, payload)
		VALUES ($1, $2, $3)
	`, scope.TenantID(), eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}

	return nil
}

// FetchUndispatched returns up to limit pending events, oldest first.
func (r *OutboxRepository) FetchUndispatched(ctx context.Context, limit int) ([]*outbox.Record, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, event_type, payload, attempts, created_at, dispatched_at
		FROM outbox
		WHERE dispatched_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer rows.Close()

	var out []*outbox.Record
	for rows.Next() {
		var rec outbox.Record
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.Payload, &rec.Attempts, &rec.CreatedAt, &rec.DispatchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, &rec)
	}

	return out, rows.Err()
}

// MarkDispatched stamps an event as delivered.
func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE outbox SET dispatched_at = $2, attempts = attempts + 1 WHERE id = $1
	`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark outbox event dispatched: %w", err)
	}
	return nil
}

// RecordFailure bumps the attempt counter so a stuck event is visible.
func (r *OutboxRepository) RecordFailure(ctx context.Context, id int64) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE outbox SET attempts = attempts + 1 WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return nil
}
