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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openpoll/openpoll/internal/survey"
)

// QuestionRequest is one question of a schema replacement
type QuestionRequest struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Required bool            `json:"required"`
	Options  []OptionRequest `json:"options"`
}

// OptionRequest is one choice of a choice question
type OptionRequest struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReplaceQuestions swaps the full question set of a draft survey
func (h *Handler) ReplaceQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Questions []QuestionRequest `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]survey.QuestionInput, 0, len(req.Questions))
	for _, q := range req.Questions {
		in := survey.QuestionInput{
			Type:     survey.QuestionType(q.Type),
			Text:     q.Text,
			Required: q.Required,
		}
		for _, o := range q.Options {
			in.Options = append(in.Options, survey.OptionInput{Label: o.Label, Value: o.Value})
		}
		inputs = append(inputs, in)
	}

	questions, err := h.surveyService.ReplaceQuestions(r.Context(), chi.URLParam(r, "surveyID"), inputs)
	if err != nil {
		switch {
		case errors.Is(err, survey.ErrSurveyNotFound):
			respondError(w, r, http.StatusNotFound, "survey not found")
		case errors.Is(err, survey.ErrSurveyNotDraft):
			respondError(w, r, http.StatusConflict, "questions of a published survey cannot change")
		default:
			respondError(w, r, http.StatusBadRequest, err.Error())
		}
		return
	}
	if questions == nil {
		questions = []*survey.Question{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// ListQuestions returns the survey's question schema
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.surveyService.ListQuestions(r.Context(), chi.URLParam(r, "surveyID"))
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to list questions")
		return
	}
	if questions == nil {
		questions = []*survey.Question{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}
