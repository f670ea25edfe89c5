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

package survey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// Service provides survey lifecycle business logic.
type Service struct {
	repo        Repository
	questions   QuestionRepository
	auditLogger audit.Logger
}

// NewService creates a new survey service.
func NewService(repo Repository, questions QuestionRepository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		questions:   questions,
		auditLogger: auditLogger,
	}
}

// CreateInput carries the fields of a new survey.
type CreateInput struct {
	Title       string
	Description string
}

// Create stores a new draft survey for the bound tenant.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Survey, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, fmt.Errorf("survey title is required")
	}

	now := time.Now().UTC()
	sv := &Survey{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, sv); err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSurveyCreated,
		TenantID: tenantID,
		Resource: sv.ID,
	})

	return sv, nil
}

// Get retrieves a survey by ID.
func (s *Service) Get(ctx context.Context, id string) (*Survey, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns surveys filtered by status ("" means all) with pagination.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*Survey, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status filter: %s", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// UpdateInput carries the mutable survey fields; nil means unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// Update applies a partial update with explicit load-validate-write; there
// is no implicit autosave.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Survey, error) {
	sv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil && *in.Title != "" {
		sv.Title = *in.Title
	}
	if in.Description != nil {
		sv.Description = *in.Description
	}
	if in.StartsAt != nil {
		sv.StartsAt = in.StartsAt
	}
	if in.EndsAt != nil {
		sv.EndsAt = in.EndsAt
	}

	if sv.StartsAt != nil && sv.EndsAt != nil && sv.EndsAt.Before(*sv.StartsAt) {
		return nil, fmt.Errorf("ends_at must be after starts_at")
	}

	sv.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, sv); err != nil {
		return nil, fmt.Errorf("failed to update survey: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSurveyUpdated,
		TenantID: sv.TenantID,
		Resource: sv.ID,
	})

	return sv, nil
}

// Publish transitions a survey to active so it accepts responses. The
// repository appends the survey_published outbox event in the same
// transaction as the status change. Publishing an already-active survey is
// a no-op.
func (s *Service) Publish(ctx context.Context, id string) (*Survey, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusActive {
		return current, nil
	}

	sv, err := s.repo.Publish(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to publish survey: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSurveyPublished,
		TenantID: sv.TenantID,
		Resource: sv.ID,
		Metadata: map[string]any{"title": sv.Title},
	})

	return sv, nil
}

// Close transitions a survey to closed; it stops accepting responses.
func (s *Service) Close(ctx context.Context, id string) (*Survey, error) {
	sv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sv.Status = StatusClosed
	sv.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, sv); err != nil {
		return nil, fmt.Errorf("failed to close survey: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSurveyClosed,
		TenantID: sv.TenantID,
		Resource: sv.ID,
	})

	return sv, nil
}

// Delete removes a survey.
func (s *Service) Delete(ctx context.Context, id string) error {
	sv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete survey: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSurveyDeleted,
		TenantID: sv.TenantID,
		Resource: sv.ID,
	})

	return nil
}

// QuestionInput is one question of a schema replacement.
type QuestionInput struct {
	Type     QuestionType
	Text     string
	Required bool
	Options  []OptionInput
}

// OptionInput is one choice of a choice question.
type OptionInput struct {
	Label string
	Value string
}

// ReplaceQuestions swaps the whole question set of a draft survey. The
// schema of a published survey is frozen so existing responses stay
// interpretable.
func (s *Service) ReplaceQuestions(ctx context.Context, surveyID string, inputs []QuestionInput) ([]*Question, error) {
	sv, err := s.repo.GetByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if sv.Status != StatusDraft {
		return nil, ErrSurveyNotDraft
	}

	questions := make([]*Question, 0, len(inputs))
	for i, in := range inputs {
		if !ValidQuestionType(in.Type) {
			return nil, fmt.Errorf("invalid question type: %s", in.Type)
		}
		if in.Text == "" {
			return nil, fmt.Errorf("question text is required")
		}

		q := &Question{
			ID:       uuid.NewString(),
			TenantID: sv.TenantID,
			SurveyID: surveyID,
			Type:     in.Type,
			Text:     in.Text,
			Required: in.Required,
			Position: i,
		}
		for j, opt := range in.Options {
			q.Options = append(q.Options, Option{
				ID:         uuid.NewString(),
				TenantID:   sv.TenantID,
				QuestionID: q.ID,
				Label:      opt.Label,
				Value:      opt.Value,
				Position:   j,
			})
		}
		questions = append(questions, q)
	}

	if err := s.questions.Replace(ctx, surveyID, questions); err != nil {
		return nil, fmt.Errorf("failed to replace questions: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeQuestionsReplaced,
		TenantID: sv.TenantID,
		Resource: surveyID,
		Metadata: map[string]any{"questions": len(questions)},
	})

	return questions, nil
}

// ListQuestions returns the survey's questions ordered by position.
func (s *Service) ListQuestions(ctx context.Context, surveyID string) ([]*Question, error) {
	if _, err := s.repo.GetByID(ctx, surveyID); err != nil {
		return nil, err
	}
	return s.questions.ListBySurvey(ctx, surveyID)
}
