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

	"github.com/openpoll/openpoll/internal/survey"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// QuestionRepository implements survey.QuestionRepository.
type QuestionRepository struct {
	db *DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Replace swaps the full question set of a survey in one transaction.
// Old questions and their options are removed first; answers referencing
// removed questions cascade away with them.
func (r *QuestionRepository) Replace(ctx context.Context, surveyID string, questions []*survey.Question) error {
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
		DELETE FROM questions WHERE tenant_id = $1 AND survey_id = $2
	`, scope.TenantID(), surveyID)
	if err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}

	for _, q := range questions {
		_, err = tx.Exec(ctx, `
			INSERT INTO questions (id, tenant_id, survey_id, type, text, required, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, q.ID, scope.TenantID(), surveyID, q.Type, q.Text, q.Required, q.Position)
		if err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		for _, o := range q.Options {
			_, err = tx.Exec(ctx, `
				INSERT INTO option_choices (id, tenant_id, question_id, label, option_value, position)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, o.ID, scope.TenantID(), q.ID, o.Label, o.Value, o.Position)
			if err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit question replace: %w", err)
	}

	return nil
}

// ListBySurvey returns a survey's questions in position order, with
// options attached.
func (r *QuestionRepository) ListBySurvey(ctx context.Context, surveyID string) ([]*survey.Question, error) {
	scope, err := tenancy.ScopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, survey_id, type, text, required, position
		FROM questions
		WHERE tenant_id = $1 AND survey_id = $2
		ORDER BY position
	`, scope.TenantID(), surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*survey.Question
	byID := make(map[string]*survey.Question)
	for rows.Next() {
		var q survey.Question
		if err := rows.Scan(&q.ID, &q.TenantID, &q.SurveyID, &q.Type, &q.Text, &q.Required, &q.Position); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, &q)
		byID[q.ID] = &q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	optRows, err := r.db.pool.Query(ctx, `
		SELECT o.id, o.tenant_id, o.question_id, o.label, o.option_value, o.position
		FROM option_choices o
		JOIN questions q ON q.id = o.question_id AND q.tenant_id = o.tenant_id
		WHERE o.tenant_id = $1 AND q.survey_id = $2
		ORDER BY o.question_id, o.position
	`, scope.TenantID(), surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var o survey.Option
		if err := optRows.Scan(&o.ID, &o.TenantID, &o.QuestionID, &o.Label, &o.Value, &o.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		if q, ok := byID[o.QuestionID]; ok {
			q.Options = append(q.Options, o)
		}
	}

	return questions, optRows.Err()
}
