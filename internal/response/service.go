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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/idempotency"
	"github.com/openpoll/openpoll/internal/observability/logger"
	"github.com/openpoll/openpoll/internal/observability/metrics"
	"github.com/openpoll/openpoll/internal/survey"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// pendingPollAttempts and pendingPollDelay bound how long a caller that
// lost the ledger race waits for the winner to finish before treating the
// pending row as an abandoned attempt.
const (
	pendingPollAttempts = 5
	pendingPollDelay    = 50 * time.Millisecond
)

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
}

// Service coordinates response submission: validation against the survey
// schema, persistence, and the idempotency ledger protocol.
type Service struct {
	surveys     survey.Repository
	questions   survey.QuestionRepository
	responses   Repository
	ledger      idempotency.Ledger
	auditLogger audit.Logger
	metrics     *metrics.SurveyMetrics
}

// NewService creates a new response service.
func NewService(
	surveys survey.Repository,
	questions survey.QuestionRepository,
	responses Repository,
	ledger idempotency.Ledger,
	auditLogger audit.Logger,
	m *metrics.SurveyMetrics,
) *Service {
	return &Service{
		surveys:     surveys,
		questions:   questions,
		responses:   responses,
		ledger:      ledger,
		auditLogger: auditLogger,
		metrics:     m,
	}
}

// Submit runs the submission workflow for the tenant bound to ctx and
// returns the response id. When idemKey is non-empty the call is
// idempotent: replays return the original response id without re-validating
// or applying the new payload (first write wins). An empty idemKey skips
// ledger bookkeeping entirely.
func (s *Service) Submit(ctx context.Context, surveyID, respondentID string, answers []AnswerInput, idemKey string) (string, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordSubmissionDuration(ctx, time.Since(start).Seconds())
	}()

	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return "", err
	}

	if idemKey != "" {
		if len(idemKey) > idempotency.MaxKeyLength {
			return "", idempotency.ErrKeyTooLong
		}

		rec, err := s.ledger.Get(ctx, idemKey)
		if err != nil {
			return "", fmt.Errorf("failed to read idempotency ledger: %w", err)
		}
		if rec != nil && rec.Completed() {
			s.metrics.RecordReplay(ctx)
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeIdempotentReplay,
				TenantID: tenantID,
				Resource: rec.ResponseID,
				Metadata: map[string]any{"survey_id": surveyID},
			})
			return rec.ResponseID, nil
		}
	}

	if err := s.validate(ctx, surveyID, answers); err != nil {
		return "", err
	}

	// Claim the key before writing the response, so an abort between the
	// two writes leaves a pending row that a retry can complete.
	if idemKey != "" {
		started, err := s.ledger.Begin(ctx, idemKey)
		if err != nil {
			return "", fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if !started {
			if responseID, ok, err := s.awaitWinner(ctx, idemKey); err != nil {
				return "", err
			} else if ok {
				s.metrics.RecordReplay(ctx)
				s.auditLogger.Log(ctx, audit.Event{
					Type:     audit.TypeConflictRecovered,
					TenantID: tenantID,
					Resource: responseID,
					Metadata: map[string]any{"survey_id": surveyID},
				})
				return responseID, nil
			}
			// Still pending after the wait: the earlier attempt is
			// presumed crashed and this call owns the retry.
		}
	}

	resp := &Response{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		SurveyID:     surveyID,
		RespondentID: respondentID,
		SubmittedAt:  time.Now().UTC(),
	}
	rows := make([]*Answer, 0, len(answers))
	for _, a := range answers {
		rows = append(rows, &Answer{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			ResponseID: resp.ID,
			QuestionID: a.QuestionID,
			Value:      a.Value,
		})
	}

	if err := s.responses.Create(ctx, resp, rows); err != nil {
		return "", fmt.Errorf("failed to persist response: %w", err)
	}

	if idemKey != "" {
		claimed, err := s.ledger.Complete(ctx, idemKey, resp.ID)
		if err != nil {
			return "", fmt.Errorf("failed to complete idempotency record: %w", err)
		}
		if !claimed {
			// A concurrent retry of the same crashed attempt finished
			// first. Discard our row and adopt the stored result.
			if err := s.responses.Delete(ctx, resp.ID); err != nil {
				slog.WarnContext(ctx, "failed to discard duplicate response",
					logger.Error(err), logger.ResponseID(resp.ID))
			}
			rec, err := s.ledger.Get(ctx, idemKey)
			if err != nil || rec == nil || !rec.Completed() {
				return "", fmt.Errorf("idempotency record lost after completion race")
			}
			return rec.ResponseID, nil
		}
	}

	s.metrics.RecordSubmission(ctx)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResponseSubmitted,
		TenantID: tenantID,
		ActorID:  respondentID,
		Resource: resp.ID,
		Metadata: map[string]any{"survey_id": surveyID, "answers": len(rows)},
	})

	return resp.ID, nil
}

// validate checks the target survey state and the answers against the
// survey schema.
func (s *Service) validate(ctx context.Context, surveyID string, answers []AnswerInput) error {
	sv, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return err
	}
	if sv.Status != survey.StatusActive {
		return ErrSurveyNotActive
	}

	questions, err := s.questions.ListBySurvey(ctx, surveyID)
	if err != nil {
		return fmt.Errorf("failed to load survey schema: %w", err)
	}

	byID := make(map[string]*survey.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if _, ok := byID[a.QuestionID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownQuestion, a.QuestionID)
		}
		answered[a.QuestionID] = true
	}

	for _, q := range questions {
		if q.Required && !answered[q.ID] {
			return fmt.Errorf("%w: %s", ErrMissingRequiredAnswer, q.ID)
		}
	}

	return nil
}

// awaitWinner polls the ledger after a lost Begin race. It returns the
// winner's response id once the record completes, or ok=false when the row
// is still pending after the wait (abandoned attempt, caller retries).
func (s *Service) awaitWinner(ctx context.Context, idemKey string) (string, bool, error) {
	for attempt := 0; attempt < pendingPollAttempts; attempt++ {
		rec, err := s.ledger.Get(ctx, idemKey)
		if err != nil {
			return "", false, fmt.Errorf("failed to read idempotency ledger: %w", err)
		}
		if rec == nil {
			// The claiming attempt failed and removed nothing persistent;
			// proceed as a fresh attempt.
			return "", false, nil
		}
		if rec.Completed() {
			return rec.ResponseID, true, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(pendingPollDelay):
		}
	}
	return "", false, nil
}

// ListBySurvey returns responses for a survey, scoped to the bound tenant.
func (s *Service) ListBySurvey(ctx context.Context, surveyID string, limit, offset int) ([]*Response, error) {
	if _, err := s.surveys.GetByID(ctx, surveyID); err != nil {
		return nil, err
	}
	return s.responses.ListBySurvey(ctx, surveyID, limit, offset)
}

// ListAnswers returns the answers of one response.
func (s *Service) ListAnswers(ctx context.Context, responseID string) ([]*Answer, error) {
	return s.responses.ListAnswers(ctx, responseID)
}
