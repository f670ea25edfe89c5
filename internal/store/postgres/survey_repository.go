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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/openpoll/openpoll/internal/outbox"
	"github.com/openpoll/openpoll/internal/survey"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// SurveyRepository implements survey.Repository. Every statement binds the
// tenant from the request scope, so rows of other tenants are invisible
// here regardless of what the caller asks for.
type SurveyRepository struct {
	db *DB
}

// NewSurveyRepository creates a new survey repository
func NewSurveyRepository(db *DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// Create inserts a new survey row for the bound tenant.
func (r *SurveyRepository) Create(ctx context.Context, s *survey.Survey) error {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return err
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO surveys (id, tenant_id, title, description, status, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		s.ID, scope.TenantID(), s.Title, s.Description, s.Status,
		s.StartsAt, s.EndsAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create survey: %w", err)
	}

	return nil
}

// GetByID retrieves a survey visible to the bound tenant.
func (r *SurveyRepository) GetByID(ctx context.Context, id string) (*survey.Survey, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	var s survey.Survey
	err = r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, title, description, status, starts_at, ends_at, created_at, updated_at
		FROM surveys
		WHERE tenant_id = $1 AND id = $2
	`, scope.TenantID(), id).Scan(
		&s.ID, &s.TenantID, &s.Title, &s.Description, &s.Status,
		&s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, survey.ErrSurveyNotFound
		}
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}

	return &s, nil
}

// List returns the tenant's surveys, optionally filtered by status.
func (r *SurveyRepository) List(ctx context.Context, status survey.Status, limit, offset int) ([]*survey.Survey, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	if status == "" {
		rows, err = r.db.pool.Query(ctx, `
			SELECT id, tenant_id, title, description, status, starts_at, ends_at, created_at, updated_at
			FROM surveys
			WHERE tenant_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, scope.TenantID(), limit, offset)
	} else {
		rows, err = r.db.pool.Query(ctx, `
			SELECT id, tenant_id, title, description, status, starts_at, ends_at, created_at, updated_at
			FROM surveys
			WHERE tenant_id = $1 AND status = $2
			ORDER BY created_at DESC
			LIMIT $3 OFFSET $4
		`, scope.TenantID(), status, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	var out []*survey.Survey
	for rows.Next() {
		var s survey.Survey
		if err := rows.Scan(
			&s.ID, &s.TenantID, &s.Title, &s.Description, &s.Status,
			&s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		out = append(out, &s)
	}

	return out, rows.Err()
}

// Update rewrites the mutable survey columns. tenant_id is never updated.
func (r *SurveyRepository) Update(ctx context.Context, s *survey.Survey) error {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return err
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE surveys
		SET title = $3, description = $4, status = $5, starts_at = $6, ends_at = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`, scope.TenantID(), s.ID, s.Title, s.Description, s.Status, s.StartsAt, s.EndsAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update survey: %w", err)
	}
	if result.RowsAffected() == 0 {
		return survey.ErrSurveyNotFound
	}

	return nil
}

// Delete removes a survey; questions and responses cascade.
func (r *SurveyRepository) Delete(ctx context.Context, id string) error {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return err
	}

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM surveys WHERE tenant_id = $1 AND id = $2
	`, scope.TenantID(), id)
	if err != nil {
		return fmt.Errorf("failed to delete survey: %w", err)
	}
	if result.RowsAffected() == 0 {
		return survey.ErrSurveyNotFound
	}

	return nil
}

// Publish activates the survey and appends the survey_published event to
// the outbox in the same transaction, so the notification cannot be lost
// between the two writes.
func (r *SurveyRepository) Publish(ctx context.Context, id string) (*survey.Survey, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var s survey.Survey
	err = tx.QueryRow(ctx, `
		UPDATE surveys
		SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING id, tenant_id, title, description, status, starts_at, ends_at, created_at, updated_at
	`, scope.TenantID(), id, survey.StatusActive).Scan(
		&s.ID, &s.TenantID, &s.Title, &s.Description, &s.Status,
		&s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, survey.ErrSurveyNotFound
		}
		return nil, fmt.Errorf("failed to publish survey: %w", err)
	}

	payload, err := json.Marshal(outbox.SurveyPublishedPayload{SurveyID: s.ID, Title: s.Title})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (tenant_id, event_type, payload)
		VALUES ($1, $2, $3)
	`, scope.TenantID(), outbox.EventSurveyPublished, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to append outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}

	return &s, nil
}
