package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"grading_backend/internal/model"
	"grading_backend/internal/repository"

	"go.uber.org/zap"
)

type fakeAssessments struct {
	items map[string]*model.AssessmentWithQuestions
}

func (f *fakeAssessments) GetAssessmentWithQuestions(_ context.Context, id string) (*model.AssessmentWithQuestions, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, repository.ErrAssessmentNotFound
	}
	return a, nil
}

type fakeSubmissions struct {
	mu    sync.Mutex
	items map[string]model.Submission
	order []string
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{items: make(map[string]model.Submission)}
}

func cloneSubmission(s model.Submission) model.Submission {
	s.Answers = append([]model.Answer(nil), s.Answers...)
	return s
}

func (f *fakeSubmissions) Create(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[s.ID] = cloneSubmission(*s)
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSubmissions) Update(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.items[s.ID]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	next := cloneSubmission(*s)
	next.Answers = prev.Answers
	f.items[s.ID] = next
	return nil
}

func (f *fakeSubmissions) UpdateWithAnswers(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[s.ID]; !ok {
		return repository.ErrSubmissionNotFound
	}
	f.items[s.ID] = cloneSubmission(*s)
	return nil
}

func (f *fakeSubmissions) FindByID(_ context.Context, id string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	out := cloneSubmission(s)
	return &out, nil
}

func (f *fakeSubmissions) FindActiveByAssessment(_ context.Context, assessmentID string) ([]model.Submission, error) {
	return f.filter(func(s model.Submission) bool { return s.AssessmentID == assessmentID }), nil
}

func (f *fakeSubmissions) FindActiveByAssessmentAndUser(_ context.Context, assessmentID, userID string) ([]model.Submission, error) {
	return f.filter(func(s model.Submission) bool { return s.AssessmentID == assessmentID && s.UserID == userID }), nil
}

func (f *fakeSubmissions) filter(keep func(model.Submission) bool) []model.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, id := range f.order {
		s := f.items[id]
		if !s.Deleted && keep(s) {
			out = append(out, cloneSubmission(s))
		}
	}
	return out
}

type fakeUsers struct {
	users    map[string]*model.User
	accounts map[string]*model.Account
	faculty  map[string]bool // courseID + "/" + userID
}

func (f *fakeUsers) FindUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) FindAccountByID(_ context.Context, id string) (*model.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeUsers) IsCourseFaculty(_ context.Context, courseID, userID string) (bool, error) {
	return f.faculty[courseID+"/"+userID], nil
}

type fakeResults struct {
	mu      sync.Mutex
	results map[string]*model.AssessmentResult
}

func newFakeResults() *fakeResults {
	return &fakeResults{results: make(map[string]*model.AssessmentResult)}
}

func (f *fakeResults) lookup(assessmentID, studentID string) *model.AssessmentResult {
	for _, r := range f.results {
		if r.AssessmentID == assessmentID && r.StudentID == studentID {
			return r
		}
	}
	return nil
}

func cloneResult(r *model.AssessmentResult) *model.AssessmentResult {
	out := *r
	out.Marks = append([]model.MarkEntry(nil), r.Marks...)
	return &out
}

func (f *fakeResults) FindOrCreate(_ context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.lookup(assessmentID, studentID); r != nil {
		return cloneResult(r), nil
	}
	r := &model.AssessmentResult{UUIDBase: model.UUIDBase{ID: model.GenerateUUID()}, AssessmentID: assessmentID, StudentID: studentID}
	f.results[r.ID] = r
	return cloneResult(r), nil
}

func (f *fakeResults) Find(_ context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.lookup(assessmentID, studentID); r != nil {
		return cloneResult(r), nil
	}
	return nil, repository.ErrResultNotFound
}

func (f *fakeResults) FindByID(_ context.Context, id string) (*model.AssessmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		return nil, repository.ErrResultNotFound
	}
	return cloneResult(r), nil
}

func (f *fakeResults) FindByAssessment(_ context.Context, assessmentID string) ([]model.AssessmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AssessmentResult
	for _, r := range f.results {
		if r.AssessmentID == assessmentID {
			out = append(out, *cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeResults) UpsertMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error {
	if err := f.UpdateMark(ctx, resultID, submissionID, markerID, score); !errors.Is(err, repository.ErrMarkEntryNotFound) {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[resultID]
	r.Marks = append(r.Marks, model.MarkEntry{
		UUIDBase:           model.UUIDBase{ID: model.GenerateUUID()},
		AssessmentResultID: resultID,
		SubmissionID:       submissionID,
		MarkerID:           markerID,
		Score:              score,
	})
	return nil
}

func (f *fakeResults) UpdateMark(_ context.Context, resultID, submissionID, markerID string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[resultID]
	if !ok {
		return repository.ErrResultNotFound
	}
	for i := range r.Marks {
		if r.Marks[i].SubmissionID == submissionID {
			r.Marks[i].MarkerID = markerID
			r.Marks[i].Score = score
			return nil
		}
	}
	return repository.ErrMarkEntryNotFound
}

func (f *fakeResults) SaveAverage(_ context.Context, resultID string, average float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[resultID]
	if !ok {
		return repository.ErrResultNotFound
	}
	r.AverageScore = average
	return nil
}

// dropMark 模拟台账中缺失的评分条目
func (f *fakeResults) dropMark(assessmentID, studentID, submissionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.lookup(assessmentID, studentID)
	kept := r.Marks[:0]
	for _, m := range r.Marks {
		if m.SubmissionID != submissionID {
			kept = append(kept, m)
		}
	}
	r.Marks = kept
}

func (f *fakeResults) dropResult(assessmentID, studentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := f.lookup(assessmentID, studentID); r != nil {
		delete(f.results, r.ID)
	}
}

type failingRecalculator struct{}

func (failingRecalculator) RecalculateResult(context.Context, string) error {
	return errors.New("aggregate store unavailable")
}

var (
	fixedNow   = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	windowOpen = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd  = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	svc         *SubmissionService
	assessments *fakeAssessments
	submissions *fakeSubmissions
	users       *fakeUsers
	results     *fakeResults
}

func newAssessment() *model.AssessmentWithQuestions {
	end := windowEnd
	return &model.AssessmentWithQuestions{
		Assessment: model.Assessment{
			UUIDBase:               model.UUIDBase{ID: "a1"},
			CourseID:               "c1",
			Title:                  "Peer review",
			StartDate:              windowOpen,
			EndDate:                &end,
			Granularity:            model.GranularityTeam,
			AreSubmissionsEditable: true,
			ReleaseNumber:          1,
		},
		Questions: []model.Question{
			&model.TeamMemberSelectionQuestion{QuestionBase: model.QuestionBase{ID: "tms", Text: "Who"}},
			&model.MultipleChoiceQuestion{
				QuestionBase: model.QuestionBase{ID: "mc", Text: "Agree?"},
				Options:      []model.Option{{Text: "Yes", Points: 10}, {Text: "No", Points: 0}},
				IsScored:     true,
			},
			&model.ScaleQuestion{
				QuestionBase: model.QuestionBase{ID: "scale", Text: "Rate"},
				ScaleMax:     5,
				Labels:       []model.ScaleLabel{{Value: 1, Label: "Low", Points: 0}, {Value: 5, Label: "High", Points: 10}},
				IsScored:     true,
			},
			&model.ShortResponseQuestion{QuestionBase: model.QuestionBase{ID: "short", Text: "Why"}},
		},
	}
}

func newHarness() *harness {
	h := &harness{
		assessments: &fakeAssessments{items: map[string]*model.AssessmentWithQuestions{"a1": newAssessment()}},
		submissions: newFakeSubmissions(),
		users: &fakeUsers{
			users: map[string]*model.User{
				"grader": {UUIDBase: model.UUIDBase{ID: "grader"}, Name: "Grader"},
				"other":  {UUIDBase: model.UUIDBase{ID: "other"}, Name: "Other"},
				"prof":   {UUIDBase: model.UUIDBase{ID: "prof"}, Name: "Prof"},
			},
			accounts: map[string]*model.Account{
				"acc-grader": {UUIDBase: model.UUIDBase{ID: "acc-grader"}, UserID: "grader", Role: model.TA},
				"acc-other":  {UUIDBase: model.UUIDBase{ID: "acc-other"}, UserID: "other", Role: model.TA},
				"acc-prof":   {UUIDBase: model.UUIDBase{ID: "acc-prof"}, UserID: "prof", Role: model.Faculty},
				"acc-admin":  {UUIDBase: model.UUIDBase{ID: "acc-admin"}, UserID: "admin", Role: model.Admin},
			},
			faculty: map[string]bool{"c1/prof": true},
		},
		results: newFakeResults(),
	}
	log := zap.NewNop()
	ledger := NewResultLedger(h.results, NewResultAggregator(h.results), log)
	h.svc = NewSubmissionService(h.assessments, h.submissions, h.users, ledger, log, SubmissionPolicy{EnforceUniqueTargets: true})
	h.svc.Now = func() time.Time { return fixedNow }
	return h
}

func answers(targets []string, choice string, scale float64) []model.Answer {
	return []model.Answer{
		&model.TeamMemberSelectionAnswer{
			AnswerBase:      model.AnswerBase{QuestionID: "tms", Type: model.AnswerTeamMemberSelection},
			SelectedUserIDs: targets,
		},
		&model.MultipleChoiceAnswer{AnswerBase: model.AnswerBase{QuestionID: "mc", Type: model.AnswerMultipleChoice}, Value: choice},
		&model.ScaleAnswer{AnswerBase: model.AnswerBase{QuestionID: "scale", Type: model.AnswerScale}, Value: scale},
		&model.ShortResponseAnswer{AnswerBase: model.AnswerBase{QuestionID: "short", Type: model.AnswerShortResponse}, Value: "solid work"},
	}
}
