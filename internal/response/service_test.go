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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openpoll/openpoll/internal/audit"
	"github.com/openpoll/openpoll/internal/idempotency"
	"github.com/openpoll/openpoll/internal/survey"
	"github.com/openpoll/openpoll/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fakes below are tenant-keyed in-memory stores. They enforce the same
// context-derived scoping as the real repositories, so a test that forgets
// to bind a tenant fails the same way production code would.

type fakeSurveyRepo struct {
	mu      sync.Mutex
	surveys map[string]map[string]*survey.Survey // tenant -> id -> survey
}

func newFakeSurveyRepo() *fakeSurveyRepo {
	return &fakeSurveyRepo{surveys: make(map[string]map[string]*survey.Survey)}
}

func (f *fakeSurveyRepo) Create(ctx context.Context, s *survey.Survey) error {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.surveys[tenantID] == nil {
		f.surveys[tenantID] = make(map[string]*survey.Survey)
	}
	f.surveys[tenantID][s.ID] = s
	return nil
}

func (f *fakeSurveyRepo) GetByID(ctx context.Context, id string) (*survey.Survey, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.surveys[tenantID][id]; ok {
		return s, nil
	}
	return nil, survey.ErrSurveyNotFound
}

func (f *fakeSurveyRepo) List(ctx context.Context, status survey.Status, limit, offset int) ([]*survey.Survey, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*survey.Survey
	for _, s := range f.surveys[tenantID] {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSurveyRepo) Update(ctx context.Context, s *survey.Survey) error {
	return f.Create(ctx, s)
}

func (f *fakeSurveyRepo) Delete(ctx context.Context, id string) error {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.surveys[tenantID][id]; !ok {
		return survey.ErrSurveyNotFound
	}
	delete(f.surveys[tenantID], id)
	return nil
}

func (f *fakeSurveyRepo) Publish(ctx context.Context, id string) (*survey.Survey, error) {
	s, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.Status = survey.StatusActive
	return s, nil
}

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[string]map[string][]*survey.Question // tenant -> survey -> questions
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: make(map[string]map[string][]*survey.Question)}
}

func (f *fakeQuestionRepo) Replace(ctx context.Context, surveyID string, qs []*survey.Question) error {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.questions[tenantID] == nil {
		f.questions[tenantID] = make(map[string][]*survey.Question)
	}
	f.questions[tenantID][surveyID] = qs
	return nil
}

func (f *fakeQuestionRepo) ListBySurvey(ctx context.Context, surveyID string) ([]*survey.Question, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questions[tenantID][surveyID], nil
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses map[string]map[string]*Response // tenant -> id -> response
	answers   map[string][]*Answer            // response id -> answers
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{
		responses: make(map[string]map[string]*Response),
		answers:   make(map[string][]*Answer),
	}
}

func (f *fakeResponseRepo) Create(ctx context.Context, r *Response, answers []*Answer) error {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.responses[tenantID] == nil {
		f.responses[tenantID] = make(map[string]*Response)
	}
	f.responses[tenantID][r.ID] = r
	f.answers[r.ID] = answers
	return nil
}

func (f *fakeResponseRepo) ListBySurvey(ctx context.Context, surveyID string, limit, offset int) ([]*Response, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Response
	for _, r := range f.responses[tenantID] {
		if r.SurveyID == surveyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResponseRepo) ListAnswers(ctx context.Context, responseID string) ([]*Answer, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.responses[tenantID][responseID]; !ok {
		return nil, ErrResponseNotFound
	}
	return f.answers[responseID], nil
}

func (f *fakeResponseRepo) Delete(ctx context.Context, responseID string) error {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.responses[tenantID][responseID]; !ok {
		return ErrResponseNotFound
	}
	delete(f.responses[tenantID], responseID)
	delete(f.answers, responseID)
	return nil
}

func (f *fakeResponseRepo) count(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses[tenantID])
}

// fakeLedger mirrors the conditional-write semantics of the Postgres
// ledger: Begin is insert-if-absent, Complete is set-if-pending.
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record // tenant+"/"+key
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*idempotency.Record)}
}

func (f *fakeLedger) key(ctx context.Context, key string) (string, error) {
	tenantID, err := tenancy.Require(ctx)
	if err != nil {
		return "", err
	}
	return tenantID + "/" + key, nil
}

func (f *fakeLedger) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	k, err := f.key(ctx, key)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[k]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeLedger) Begin(ctx context.Context, key string) (bool, error) {
	k, err := f.key(ctx, key)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[k]; ok {
		return false, nil
	}
	tenantID, _ := tenancy.Require(ctx)
	f.records[k] = &idempotency.Record{TenantID: tenantID, Key: key, CreatedAt: time.Now()}
	return true, nil
}

func (f *fakeLedger) Complete(ctx context.Context, key, responseID string) (bool, error) {
	k, err := f.key(ctx, key)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[k]
	if !ok || rec.ResponseID != "" {
		return false, nil
	}
	rec.ResponseID = responseID
	return true, nil
}

// fixture wires a service over the fakes with one active survey of two
// questions, the first required.
type fixture struct {
	svc       *Service
	responses *fakeResponseRepo
	ledger    *fakeLedger
	surveyID  string
	required  string
	optional  string
}

func newFixture(t *testing.T, tenantID string) (*fixture, context.Context) {
	t.Helper()
	ctx := tenancy.WithTenant(context.Background(), tenantID)

	surveys := newFakeSurveyRepo()
	questions := newFakeQuestionRepo()
	responses := newFakeResponseRepo()
	ledger := newFakeLedger()

	surveyID := uuid.NewString()
	require.NoError(t, surveys.Create(ctx, &survey.Survey{
		ID:       surveyID,
		TenantID: tenantID,
		Title:    "customer satisfaction",
		Status:   survey.StatusActive,
	}))

	requiredID := uuid.NewString()
	optionalID := uuid.NewString()
	require.NoError(t, questions.Replace(ctx, surveyID, []*survey.Question{
		{ID: requiredID, TenantID: tenantID, SurveyID: surveyID, Type: survey.QuestionText, Text: "how was it", Required: true, Position: 0},
		{ID: optionalID, TenantID: tenantID, SurveyID: surveyID, Type: survey.QuestionText, Text: "anything else", Required: false, Position: 1},
	}))

	svc := NewService(surveys, questions, responses, ledger, audit.NopLogger{}, nil)
	return &fixture{
		svc:       svc,
		responses: responses,
		ledger:    ledger,
		surveyID:  surveyID,
		required:  requiredID,
		optional:  optionalID,
	}, ctx
}

func answerJSON(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func TestSubmit_PersistsResponseAndAnswers(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	id, err := fx.svc.Submit(ctx, fx.surveyID, "resp-1", []AnswerInput{
		{QuestionID: fx.required, Value: answerJSON("great")},
		{QuestionID: fx.optional, Value: answerJSON("nope")},
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	answers, err := fx.svc.ListAnswers(ctx, id)
	require.NoError(t, err)
	assert.Len(t, answers, 2)
	assert.Equal(t, 1, fx.responses.count("tenant-a"))
}

func TestSubmit_RequiresBoundTenant(t *testing.T) {
	fx, _ := newFixture(t, "tenant-a")

	_, err := fx.svc.Submit(context.Background(), fx.surveyID, "resp-1", []AnswerInput{
		{QuestionID: fx.required, Value: answerJSON("x")},
	}, "")
	assert.ErrorIs(t, err, tenancy.ErrNoTenant)
}

func TestSubmit_ValidationFailures(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	t.Run("unknown survey", func(t *testing.T) {
		_, err := fx.svc.Submit(ctx, uuid.NewString(), "", nil, "")
		assert.ErrorIs(t, err, survey.ErrSurveyNotFound)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := fx.svc.Submit(ctx, fx.surveyID, "", []AnswerInput{
			{QuestionID: fx.required, Value: answerJSON("x")},
			{QuestionID: uuid.NewString(), Value: answerJSON("y")},
		}, "")
		assert.ErrorIs(t, err, ErrUnknownQuestion)
	})

	t.Run("missing required answer", func(t *testing.T) {
		_, err := fx.svc.Submit(ctx, fx.surveyID, "", []AnswerInput{
			{QuestionID: fx.optional, Value: answerJSON("y")},
		}, "")
		assert.ErrorIs(t, err, ErrMissingRequiredAnswer)
	})

	t.Run("key too long", func(t *testing.T) {
		_, err := fx.svc.Submit(ctx, fx.surveyID, "", []AnswerInput{
			{QuestionID: fx.required, Value: answerJSON("x")},
		}, strings.Repeat("k", idempotency.MaxKeyLength+1))
		assert.ErrorIs(t, err, idempotency.ErrKeyTooLong)
	})

	assert.Equal(t, 0, fx.responses.count("tenant-a"))
}

func TestSubmit_RejectsInactiveSurvey(t *testing.T) {
	for _, status := range []survey.Status{survey.StatusDraft, survey.StatusClosed, survey.StatusArchived} {
		t.Run(string(status), func(t *testing.T) {
			fx, ctx := newFixture(t, "tenant-a")
			sv, err := fx.svc.surveys.GetByID(ctx, fx.surveyID)
			require.NoError(t, err)
			sv.Status = status

			_, err = fx.svc.Submit(ctx, fx.surveyID, "", []AnswerInput{
				{QuestionID: fx.required, Value: answerJSON("x")},
			}, "")
			assert.ErrorIs(t, err, ErrSurveyNotActive)
		})
	}
}

// TestPurpose: Validates first-write-wins replay semantics of the idempotency ledger.
// Scope: Unit Test
// Expected: A second submission with the same key returns the first response id,
// stores nothing new, and never looks at the replayed payload.
// Test Case ID: SUB-01
func TestSubmit_IdempotentReplay(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	first, err := fx.svc.Submit(ctx, fx.surveyID, "resp-1", []AnswerInput{
		{QuestionID: fx.required, Value: answerJSON("original")},
	}, "retry-key")
	require.NoError(t, err)

	// Replay with a payload that would fail validation if it were looked
	// at: the winner's stored result is returned regardless.
	second, err := fx.svc.Submit(ctx, fx.surveyID, "resp-1", []AnswerInput{
		{QuestionID: uuid.NewString(), Value: answerJSON("garbage")},
	}, "retry-key")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fx.responses.count("tenant-a"))

	answers, err := fx.svc.ListAnswers(ctx, first)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.JSONEq(t, `"original"`, string(answers[0].Value))
}

// TestPurpose: Validates that the same key used by two tenants tracks two independent submissions.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Each tenant gets its own response; neither sees the other's.
// Test Case ID: SUB-02
func TestSubmit_KeysAreTenantScoped(t *testing.T) {
	fxA, ctxA := newFixture(t, "tenant-a")
	fxB, ctxB := newFixture(t, "tenant-b")

	idA, err := fxA.svc.Submit(ctxA, fxA.surveyID, "", []AnswerInput{
		{QuestionID: fxA.required, Value: answerJSON("a")},
	}, "shared-key")
	require.NoError(t, err)

	idB, err := fxB.svc.Submit(ctxB, fxB.surveyID, "", []AnswerInput{
		{QuestionID: fxB.required, Value: answerJSON("b")},
	}, "shared-key")
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 1, fxA.responses.count("tenant-a"))
	assert.Equal(t, 1, fxB.responses.count("tenant-b"))
}

// TestPurpose: Validates convergence of concurrent submissions sharing one key.
// Scope: Unit Test (run with -race)
// Expected: Exactly one response row exists afterwards and every caller got its id.
// Test Case ID: SUB-03
func TestSubmit_ConcurrentDuplicates(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids[n], errs[n] = fx.svc.Submit(ctx, fx.surveyID, "resp-1", []AnswerInput{
				{QuestionID: fx.required, Value: answerJSON("concurrent")},
			}, "one-key")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, fx.responses.count("tenant-a"))
}

// TestPurpose: Validates crash recovery through the pending ledger state.
// Scope: Unit Test
// Expected: A retry against a key whose first attempt died mid-flight completes
// the operation and backfills the ledger row.
// Test Case ID: SUB-04
func TestSubmit_CompletesAbandonedPendingAttempt(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	// Simulate a crashed attempt: the key is claimed but nothing else
	// happened.
	started, err := fx.ledger.Begin(ctx, "crashed-key")
	require.NoError(t, err)
	require.True(t, started)

	id, err := fx.svc.Submit(ctx, fx.surveyID, "resp-1", []AnswerInput{
		{QuestionID: fx.required, Value: answerJSON("second try")},
	}, "crashed-key")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := fx.ledger.Get(ctx, "crashed-key")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ResponseID)
	assert.Equal(t, 1, fx.responses.count("tenant-a"))
}

func TestSubmit_EmptyKeySkipsLedger(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	first, err := fx.svc.Submit(ctx, fx.surveyID, "", []AnswerInput{
		{QuestionID: fx.required, Value: answerJSON("one")},
	}, "")
	require.NoError(t, err)

	second, err := fx.svc.Submit(ctx, fx.surveyID, "", []AnswerInput{
		{QuestionID: fx.required, Value: answerJSON("two")},
	}, "")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, fx.responses.count("tenant-a"))
}

func TestListBySurvey_UnknownSurvey(t *testing.T) {
	fx, ctx := newFixture(t, "tenant-a")

	_, err := fx.svc.ListBySurvey(ctx, uuid.NewString(), 0, 0)
	assert.ErrorIs(t, err, survey.ErrSurveyNotFound)
}
