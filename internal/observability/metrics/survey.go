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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// SurveyMetrics bundles the counters the submission pipeline reports.
// A nil *SurveyMetrics is valid and records nothing, so tests and tools
// can skip metric wiring entirely.
type SurveyMetrics struct {
	submissions     metric.Int64Counter
	replays         metric.Int64Counter
	tenantMismatch  metric.Int64Counter
	unauthenticated metric.Int64Counter
	submitLatency   metric.Float64Histogram
}

// NewSurveyMetrics registers the pipeline counters on the meter.
func NewSurveyMetrics(m *Meter) (*SurveyMetrics, error) {
	submissions, err := m.CreateCounter("openpoll_submissions_total",
		"Survey responses persisted")
	if err != nil {
		return nil, fmt.Errorf("failed to register submission counter: %w", err)
	}
	replays, err := m.CreateCounter("openpoll_idempotent_replays_total",
		"Submissions short-circuited by the idempotency ledger")
	if err != nil {
		return nil, fmt.Errorf("failed to register replay counter: %w", err)
	}
	tenantMismatch, err := m.CreateCounter("openpoll_tenant_mismatch_total",
		"Requests rejected because the header tenant differed from the token tenant")
	if err != nil {
		return nil, fmt.Errorf("failed to register mismatch counter: %w", err)
	}
	unauthenticated, err := m.CreateCounter("openpoll_unauthenticated_total",
		"Requests rejected for a missing or invalid credential")
	if err != nil {
		return nil, fmt.Errorf("failed to register unauthenticated counter: %w", err)
	}
	submitLatency, err := m.CreateHistogram("openpoll_submission_duration_seconds",
		"End-to-end submission latency including ledger round-trips", "s")
	if err != nil {
		return nil, fmt.Errorf("failed to register submission histogram: %w", err)
	}

	return &SurveyMetrics{
		submissions:     submissions,
		replays:         replays,
		tenantMismatch:  tenantMismatch,
		unauthenticated: unauthenticated,
		submitLatency:   submitLatency,
	}, nil
}

// RecordSubmission counts one persisted response.
func (m *SurveyMetrics) RecordSubmission(ctx context.Context) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1)
}

// RecordReplay counts one idempotent short-circuit.
func (m *SurveyMetrics) RecordReplay(ctx context.Context) {
	if m == nil {
		return
	}
	m.replays.Add(ctx, 1)
}

// RecordTenantMismatch counts one 403 tenant-mismatch rejection.
func (m *SurveyMetrics) RecordTenantMismatch(ctx context.Context) {
	if m == nil {
		return
	}
	m.tenantMismatch.Add(ctx, 1)
}

// RecordUnauthenticated counts one 401 rejection.
func (m *SurveyMetrics) RecordUnauthenticated(ctx context.Context) {
	if m == nil {
		return
	}
	m.unauthenticated.Add(ctx, 1)
}

// RecordSubmissionDuration records one submission's wall-clock latency.
func (m *SurveyMetrics) RecordSubmissionDuration(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.submitLatency.Record(ctx, seconds)
}
