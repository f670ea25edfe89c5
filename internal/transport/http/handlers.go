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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/auth"
	"github.com/openpoll/openpoll/internal/observability/metrics"
	"github.com/openpoll/openpoll/internal/response"
	"github.com/openpoll/openpoll/internal/survey"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	surveyService   *survey.Service
	responseService *response.Service
	verifier        *auth.Verifier
	auditLogger     audit.Logger
	metrics         *metrics.SurveyMetrics
	authMode        string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	surveyService *survey.Service,
	responseService *response.Service,
	verifier *auth.Verifier,
	auditLogger audit.Logger,
	surveyMetrics *metrics.SurveyMetrics,
	authMode string,
) *Handler {
	return &Handler{
		surveyService:   surveyService,
		responseService: responseService,
		verifier:        verifier,
		auditLogger:     auditLogger,
		metrics:         surveyMetrics,
		authMode:        authMode,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check stays outside the tenant binder.
	r.Get("/health", h.HealthCheck)

	// Everything under /api/v1 runs with a bound tenant.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.TenantBinder)

		r.Route("/surveys", func(r chi.Router) {
			r.With(h.RequireRole("admin")).Post("/", h.CreateSurvey)
			r.Get("/", h.ListSurveys)

			r.Route("/{surveyID}", func(r chi.Router) {
				r.Get("/", h.GetSurvey)
				r.With(h.RequireRole("admin")).Patch("/", h.UpdateSurvey)
				r.With(h.RequireRole("admin")).Delete("/", h.DeleteSurvey)
				r.With(h.RequireRole("admin")).Post("/publish", h.PublishSurvey)
				r.With(h.RequireRole("admin")).Post("/close", h.CloseSurvey)

				r.Get("/questions", h.ListQuestions)
				r.With(h.RequireRole("admin")).Put("/questions", h.ReplaceQuestions)

				r.Post("/responses", h.SubmitResponse)
				r.With(h.RequireRole("admin")).Get("/responses", h.ListResponses)
				r.With(h.RequireRole("admin")).Get("/responses/export", h.ExportResponses)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "openpoll",
	})
}

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Message:   message,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
