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

// Package outbox persists notification intents in the same transaction as
// the state change that triggers them, and delivers them asynchronously
// with at-least-once semantics. This replaces fire-and-forget in-process
// event dispatch: a crash between commit and delivery loses nothing,
// because the undelivered row is still there on restart.
package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// Event types
const (
	EventSurveyPublished = "survey_published"
)

// SurveyPublishedPayload is the payload of a survey_published event.
type SurveyPublishedPayload struct {
	SurveyID string `json:"survey_id"`
	Title    string `json:"title"`
}

// Record is one persisted, not-necessarily-delivered event.
type Record struct {
	ID           int64
	TenantID     string
	Type         string
	Payload      json.RawMessage
	Attempts     int
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// Repository defines the interface for outbox storage. The dispatcher runs
// outside any request, so fetching is deliberately not tenant-scoped; each
// record carries its tenant id explicitly.
type Repository interface {
	// Append stores an event for the tenant bound to ctx. Repositories
	// that must couple the event to a state change append inside their own
	// transaction instead; this standalone form serves tools and tests.
	Append(ctx context.Context, eventType string, payload []byte) error

	// FetchUndispatched returns up to limit undelivered records, oldest
	// first.
	FetchUndispatched(ctx context.Context, limit int) ([]*Record, error)

	// MarkDispatched marks a record as delivered.
	MarkDispatched(ctx context.Context, id int64) error

	// RecordFailure increments the record's attempt counter so delivery is
	// retried on a later poll.
	RecordFailure(ctx context.Context, id int64) error
}

// Notifier delivers one event to the outside world (queue, email, webhook).
type Notifier interface {
	Notify(ctx context.Context, rec *Record) error
}
