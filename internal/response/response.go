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

package response

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSurveyNotActive rejects submission to a survey outside the active
	// lifecycle state.
	ErrSurveyNotActive = errors.New("survey is not active")

	// ErrUnknownQuestion rejects an answer whose question id does not
	// belong to the target survey.
	ErrUnknownQuestion = errors.New("unknown question")

	// ErrMissingRequiredAnswer rejects a submission that leaves a required
	// question unanswered.
	ErrMissingRequiredAnswer = errors.New("missing required answer")

	ErrResponseNotFound = errors.New("response not found")
)

// Response is a single submission of answers for a survey. It is created
// exactly once per successful logical submission and never mutated.
type Response struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	SurveyID     string    `json:"survey_id"`
	RespondentID string    `json:"respondent_id,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Answer is one answered question of a response. The value is kept as raw
// JSON; its shape depends on the question type.
type Answer struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	ResponseID string          `json:"response_id"`
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
}

// Repository defines the interface for response storage. Implementations
// derive the tenant from the request context and restrict every statement
// to it.
type Repository interface {
	// Create persists the response and its answers in one transaction.
	Create(ctx context.Context, r *Response, answers []*Answer) error

	// ListBySurvey returns responses for a survey, newest first. limit <= 0
	// means unpaged.
	ListBySurvey(ctx context.Context, surveyID string, limit, offset int) ([]*Response, error)

	// ListAnswers returns the answers of one response.
	ListAnswers(ctx context.Context, responseID string) ([]*Answer, error)

	// Delete removes a response and its answers. Only used to discard the
	// loser's row after a lost idempotency-completion race.
	Delete(ctx context.Context, responseID string) error
}
