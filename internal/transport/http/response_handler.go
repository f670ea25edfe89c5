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

package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/idempotency"
	"github.com/openpoll/openpoll/internal/observability/logger"
	"github.com/openpoll/openpoll/internal/response"
	"github.com/openpoll/openpoll/internal/survey"
	"github.com/openpoll/openpoll/internal/tenancy"
)

// SubmitResponseRequest represents a survey submission
type SubmitResponseRequest struct {
	RespondentID string                `json:"respondent_id"`
	Answers      []SubmitAnswerRequest `json:"answers"`
}

// SubmitAnswerRequest is one answer of a submission
type SubmitAnswerRequest struct {
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
}

// SubmitResponse handles a survey submission. An Idempotency-Key header
// makes the submission safe to retry: the first accepted submission wins
// and replays get the stored response id back.
func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req SubmitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	answers := make([]response.AnswerInput, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, response.AnswerInput{QuestionID: a.QuestionID, Value: a.Value})
	}

	idemKey := r.Header.Get("Idempotency-Key")
	responseID, err := h.responseService.Submit(r.Context(), chi.URLParam(r, "surveyID"), req.RespondentID, answers, idemKey)
	if err != nil {
		switch {
		case errors.Is(err, survey.ErrSurveyNotFound):
			respondError(w, r, http.StatusNotFound, "survey not found")
		case errors.Is(err, response.ErrSurveyNotActive):
			respondError(w, r, http.StatusBadRequest, "survey is not accepting responses")
		case errors.Is(err, response.ErrUnknownQuestion),
			errors.Is(err, response.ErrMissingRequiredAnswer),
			errors.Is(err, idempotency.ErrKeyTooLong):
			respondError(w, r, http.StatusBadRequest, err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to submit response",
				logger.Error(err),
				logger.SurveyID(chi.URLParam(r, "surveyID")),
			)
			respondError(w, r, http.StatusInternalServerError, "failed to submit response")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"response_id": responseID})
}

// ListResponses returns a survey's responses
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)

	responses, err := h.responseService.ListBySurvey(r.Context(), chi.URLParam(r, "surveyID"), limit, offset)
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to list responses")
		return
	}
	if responses == nil {
		responses = []*response.Response{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

// ExportResponses streams every response of a survey as CSV or JSON.
// The format query parameter selects the encoding; csv is the default.
func (h *Handler) ExportResponses(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")

	questions, err := h.surveyService.ListQuestions(r.Context(), surveyID)
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to export responses")
		return
	}

	responses, err := h.responseService.ListBySurvey(r.Context(), surveyID, 0, 0)
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to export responses")
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "csv":
		h.exportCSV(w, r, surveyID, questions, responses)
	case "json":
		h.exportJSON(w, r, surveyID, questions, responses)
	default:
		respondError(w, r, http.StatusBadRequest, "unsupported export format")
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request, surveyID string, questions []*survey.Question, responses []*response.Response) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="survey-%s-responses.csv"`, surveyID))

	cw := csv.NewWriter(w)
	header := []string{"response_id", "respondent_id", "submitted_at"}
	for _, q := range questions {
		header = append(header, q.Text)
	}
	cw.Write(header)

	for _, resp := range responses {
		answers, err := h.responseService.ListAnswers(r.Context(), resp.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to load answers for export",
				logger.Error(err),
				logger.ResponseID(resp.ID),
			)
			continue
		}
		byQuestion := make(map[string]string, len(answers))
		for _, a := range answers {
			byQuestion[a.QuestionID] = answerCell(a.Value)
		}

		row := []string{resp.ID, resp.RespondentID, resp.SubmittedAt.UTC().Format(time.RFC3339)}
		for _, q := range questions {
			row = append(row, byQuestion[q.ID])
		}
		cw.Write(row)
	}
	cw.Flush()

	h.auditExport(r, surveyID, "csv", len(responses))
}

// exportRecord is one response in a JSON export.
type exportRecord struct {
	ResponseID   string             `json:"response_id"`
	RespondentID string             `json:"respondent_id,omitempty"`
	SubmittedAt  time.Time          `json:"submitted_at"`
	Answers      []*response.Answer `json:"answers"`
}

func (h *Handler) exportJSON(w http.ResponseWriter, r *http.Request, surveyID string, questions []*survey.Question, responses []*response.Response) {
	records := make([]exportRecord, 0, len(responses))
	for _, resp := range responses {
		answers, err := h.responseService.ListAnswers(r.Context(), resp.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to load answers for export",
				logger.Error(err),
				logger.ResponseID(resp.ID),
			)
			continue
		}
		records = append(records, exportRecord{
			ResponseID:   resp.ID,
			RespondentID: resp.RespondentID,
			SubmittedAt:  resp.SubmittedAt,
			Answers:      answers,
		})
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="survey-%s-responses.json"`, surveyID))
	respondJSON(w, http.StatusOK, map[string]any{
		"survey_id": surveyID,
		"questions": questions,
		"responses": records,
	})

	h.auditExport(r, surveyID, "json", len(responses))
}

func (h *Handler) auditExport(r *http.Request, surveyID, format string, count int) {
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeResponsesExported,
		TenantID:  tenantOf(r),
		ActorID:   GetSubject(r.Context()),
		Resource:  surveyID,
		IPAddress: getIPAddress(r),
		Metadata:  map[string]any{"format": format, "count": count},
	})
}

func tenantOf(r *http.Request) string {
	tenantID, _ := tenancy.FromContext(r.Context())
	return tenantID
}

// answerCell flattens a JSON answer value to a single CSV cell.
func answerCell(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		out := ""
		for i, item := range t {
			if i > 0 {
				out += ";"
			}
			out += fmt.Sprint(item)
		}
		return out
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
