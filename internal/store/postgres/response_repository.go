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

	"github.com/jackc/pgx/v5"
	"github.com/openpoll/openpoll/internal/response"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// ResponseRepository implements response.Repository.
type ResponseRepository struct {
	db *DB
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db *DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Create persists a response and its answers in one transaction.
func (r *ResponseRepository) Create(ctx context.Context, resp *response.Response, answers []*response.Answer) error {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO responses (id, tenant_id, survey_id, respondent_id, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, resp.ID, scope.TenantID(), resp.SurveyID, resp.RespondentID, resp.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}

	for _, a := range answers {
		_, err = tx.Exec(ctx, `
			INSERT INTO answers (id, tenant_id, response_id, question_id, value_json)
			VALUES ($1, $2, $3, $4, $5)
		`, a.ID, scope.TenantID(), resp.ID, a.QuestionID, a.Value)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit response: %w", err)
	}

	return nil
}

// ListBySurvey returns a survey's responses, newest first. A limit of
// zero or less disables paging; exports rely on that.
func (r *ResponseRepository) ListBySurvey(ctx context.Context, surveyID string, limit, offset int) ([]*response.Response, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, survey_id, respondent_id, submitted_at
		FROM responses
		WHERE tenant_id = $1 AND survey_id = $2
		ORDER BY submitted_at DESC`
	args := []any{scope.TenantID(), surveyID}
	if limit > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, limit, offset)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var out []*response.Response
	for rows.Next() {
		var resp response.Response
		if err := rows.Scan(&resp.ID, &resp.TenantID, &resp.SurveyID, &resp.RespondentID, &resp.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, &resp)
	}

	return out, rows.Err()
}

// ListAnswers returns the answers of a single response.
func (r *ResponseRepository) ListAnswers(ctx context.Context, responseID string) ([]*response.Answer, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = r.db.pool.QueryRow(ctx, `
		SELECT true FROM responses WHERE tenant_id = $1 AND id = $2
	`, scope.TenantID(), responseID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, response.ErrResponseNotFound
		}
		return nil, fmt.Errorf("failed to check response: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT a.id, a.tenant_id, a.response_id, a.question_id, a.value_json
		FROM answers a
		JOIN questions q ON q.id = a.question_id AND q.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND a.response_id = $2
		ORDER BY q.position
	`, scope.TenantID(), responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []*response.Answer
	for rows.Next() {
		var a response.Answer
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ResponseID, &a.QuestionID, &a.Value); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, &a)
	}

	return answers, rows.Err()
}

// Delete removes a response and its answers. Used when a submission
// loses an idempotency race after its response row was already written.
func (r *ResponseRepository) Delete(ctx context.Context, responseID string) error {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return err
	}

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM responses WHERE tenant_id = $1 AND id = $2
	`, scope.TenantID(), responseID)
	if err != nil {
		return fmt.Errorf("failed to delete response: %w", err)
	}
	if result.RowsAffected() == 0 {
		return response.ErrResponseNotFound
	}

	return nil
}
