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

import "time"

// Status is the survey lifecycle state. Only active surveys accept
// responses.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// Survey is the header of a questionnaire. It is owned by exactly one
// tenant; the tenant id is assigned at creation and never changes.
type Survey struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionText         QuestionType = "text"
	QuestionNumber       QuestionType = "number"
)

// ValidQuestionType reports whether t is a known question type.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionText, QuestionNumber:
		return true
	}
	return false
}

// Question is one entry of a survey's schema.
type Question struct {
	ID       string       `json:"id"`
	TenantID string       `json:"tenant_id"`
	SurveyID string       `json:"survey_id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Required bool         `json:"required"`
	Position int          `json:"position"`
	Options  []Option     `json:"options,omitempty"`
}

// Option is a selectable choice of a single- or multi-choice question.
type Option struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	QuestionID string `json:"question_id"`
	Label      string `json:"label"`
	Value      string `json:"value,omitempty"`
	Position   int    `json:"position"`
}
