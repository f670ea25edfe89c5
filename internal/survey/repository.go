package survey

import (
	"context"
	"errors"
)

var (
	ErrSurveyNotFound = errors.New("survey not found")
	ErrSurveyNotDraft = errors.New("survey is not in draft status")
)

// Repository defines the interface for survey storage. Every
// implementation derives the tenant from the request context and restricts
// each statement to it; a survey belonging to another tenant is
// indistinguishable from one that does not exist.
type Repository interface {
	Create(ctx context.Context, s *Survey) error
	GetByID(ctx context.Context, id string) (*Survey, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Survey, error)
	Update(ctx context.Context, s *Survey) error
	Delete(ctx context.Context, id string) error

	// Publish transitions the survey to active and appends the
	// survey_published event to the outbox in the same transaction, so the
	// notification fact cannot be lost between the two writes.
	Publish(ctx context.Context, id string) (*Survey, error)
}

// QuestionRepository defines the interface for question schema storage.
type QuestionRepository interface {
	// Replace atomically swaps the survey's whole question set.
	Replace(ctx context.Context, surveyID string, questions []*Question) error

	// ListBySurvey returns the survey's questions ordered by position,
	// with options populated for choice questions.
	ListBySurvey(ctx context.Context, surveyID string) ([]*Question, error)
}
