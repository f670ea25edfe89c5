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
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openpoll/openpoll/internal/observability/logger"
	"github.com/openpoll/openpoll/internal/survey"
)

// CreateSurveyRequest represents a new survey
type CreateSurveyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateSurvey handles survey creation
func (h *Handler) CreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req CreateSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		respondError(w, r, http.StatusBadRequest, "title is required")
		return
	}

	sv, err := h.surveyService.Create(r.Context(), survey.CreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create survey", logger.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to create survey")
		return
	}

	respondJSON(w, http.StatusCreated, sv)
}

// GetSurvey returns a single survey
func (h *Handler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := h.surveyService.Get(r.Context(), chi.URLParam(r, "surveyID"))
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to get survey")
		return
	}
	respondJSON(w, http.StatusOK, sv)
}

// ListSurveys returns the tenant's surveys
func (h *Handler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	status := survey.Status(r.URL.Query().Get("status"))
	limit, offset := paging(r)

	surveys, err := h.surveyService.List(r.Context(), status, limit, offset)
	if err != nil {
		if status != "" && !survey.ValidStatus(status) {
			respondError(w, r, http.StatusBadRequest, "invalid status filter")
			return
		}
		slog.ErrorContext(r.Context(), "failed to list surveys", logger.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to list surveys")
		return
	}
	if surveys == nil {
		surveys = []*survey.Survey{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"surveys": surveys})
}

// UpdateSurveyRequest represents a partial survey update
type UpdateSurveyRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// UpdateSurvey applies a partial update
func (h *Handler) UpdateSurvey(w http.ResponseWriter, r *http.Request) {
	var req UpdateSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	sv, err := h.surveyService.Update(r.Context(), chi.URLParam(r, "surveyID"), survey.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		if errors.Is(err, survey.ErrSurveyNotFound) {
			respondError(w, r, http.StatusNotFound, "survey not found")
			return
		}
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, sv)
}

// PublishSurvey activates a survey
func (h *Handler) PublishSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := h.surveyService.Publish(r.Context(), chi.URLParam(r, "surveyID"))
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to publish survey")
		return
	}
	respondJSON(w, http.StatusOK, sv)
}

// CloseSurvey stops a survey from accepting responses
func (h *Handler) CloseSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := h.surveyService.Close(r.Context(), chi.URLParam(r, "surveyID"))
	if err != nil {
		h.respondSurveyError(w, r, err, "failed to close survey")
		return
	}
	respondJSON(w, http.StatusOK, sv)
}

// DeleteSurvey removes a survey and everything under it
func (h *Handler) DeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if err := h.surveyService.Delete(r.Context(), chi.URLParam(r, "surveyID")); err != nil {
		h.respondSurveyError(w, r, err, "failed to delete survey")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "survey deleted"})
}

func (h *Handler) respondSurveyError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, survey.ErrSurveyNotFound):
		respondError(w, r, http.StatusNotFound, "survey not found")
	case errors.Is(err, survey.ErrSurveyNotDraft):
		respondError(w, r, http.StatusConflict, "survey is no longer a draft")
	default:
		slog.ErrorContext(r.Context(), fallback, logger.Error(err))
		respondError(w, r, http.StatusInternalServerError, fallback)
	}
}

func paging(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
