package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"grading_backend/internal/model"
	"grading_backend/internal/repository"
	"grading_backend/internal/scoring"
	"grading_backend/internal/util"
	"grading_backend/internal/validation"
	"grading_backend/pkg/monitoring"
	"grading_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SubmissionPolicy holds the settings that can change while the service runs.
type SubmissionPolicy struct {
	EnforceUniqueTargets bool
}

type SubmissionService struct {
	Assessments AssessmentProvider
	Submissions SubmissionStore
	Users       UserDirectory
	Ledger      *ResultLedger
	Log         *zap.Logger
	Now         func() time.Time

	mu     sync.RWMutex
	policy SubmissionPolicy
}

func NewSubmissionService(assessments AssessmentProvider, submissions SubmissionStore, users UserDirectory, ledger *ResultLedger, log *zap.Logger, policy SubmissionPolicy) *SubmissionService {
	return &SubmissionService{
		Assessments: assessments,
		Submissions: submissions,
		Users:       users,
		Ledger:      ledger,
		Log:         log,
		Now:         time.Now,
		policy:      policy,
	}
}

// SetPolicy 配置热更新时调用
func (s *SubmissionService) SetPolicy(p SubmissionPolicy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

func (s *SubmissionService) Policy() SubmissionPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *SubmissionService) CreateSubmission(ctx context.Context, assessmentID, userID string, answers []model.Answer, isDraft bool) (sub *model.Submission, err error) {
	ctx, finish := s.begin(ctx, "create", attribute.String("assessment_id", assessmentID), attribute.String("user_id", userID))
	defer func() { finish(err) }()

	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.Now()
	if err := validation.ValidateSubmissionPeriod(&assessment.Assessment, now); err != nil {
		return nil, err
	}
	if err := validation.ValidateAnswers(assessment, answers); err != nil {
		return nil, err
	}
	targets := selectedTargets(answers)
	if err := s.checkUniqueness(ctx, assessmentID, userID, targets, ""); err != nil {
		return nil, err
	}

	total, err := scoreAnswers(ctx, assessment, answers)
	if err != nil {
		return nil, err
	}

	assignAnswerIDs(answers)
	sub = &model.Submission{
		UUIDBase:                model.UUIDBase{ID: model.GenerateUUID()},
		AssessmentID:            assessmentID,
		UserID:                  userID,
		SubmittedAt:             now,
		Score:                   total,
		SubmissionReleaseNumber: assessment.ReleaseNumber,
		IsDraft:                 isDraft,
		Answers:                 answers,
	}
	if err := s.Submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if err := s.Ledger.RecordNewMarks(ctx, assessmentID, targets, userID, sub.ID, total); err != nil {
		return nil, err
	}

	s.Log.Info("submission created",
		zap.String("submission_id", sub.ID),
		zap.String("assessment_id", assessmentID),
		zap.String("user_id", userID),
		zap.Float64("score", total),
		zap.Int("targets", len(targets)),
	)
	return sub, nil
}

func (s *SubmissionService) UpdateSubmission(ctx context.Context, submissionID, userID, accountID string, answers []model.Answer, isDraft bool) (sub *model.Submission, err error) {
	ctx, finish := s.begin(ctx, "update", attribute.String("submission_id", submissionID), attribute.String("user_id", userID))
	defer func() { finish(err) }()

	sub, err = s.loadActiveSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	account, err := s.Users.FindAccountByID(ctx, accountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, util.NewNotFoundError("Account not found")
	}
	if err != nil {
		return nil, err
	}

	assessment, err := s.loadAssessment(ctx, sub.AssessmentID)
	if err != nil {
		return nil, err
	}

	bypass, err := s.hasFacultyAccess(ctx, account, assessment.CourseID)
	if err != nil {
		return nil, err
	}
	if !bypass && sub.UserID != userID {
		return nil, util.NewBadRequestError("You do not have permission to update this submission")
	}

	now := s.Now()
	if err := validation.ValidateSubmissionPeriod(&assessment.Assessment, now); err != nil {
		return nil, err
	}
	if err := validation.ValidateAnswers(assessment, answers); err != nil {
		return nil, err
	}
	if !bypass && !assessment.AreSubmissionsEditable && !sub.IsDraft && assessment.ReleaseNumber == sub.SubmissionReleaseNumber {
		return nil, util.NewBadRequestError("Submissions are not editable for this assessment")
	}

	targets := selectedTargets(answers)
	if err := s.checkUniqueness(ctx, sub.AssessmentID, sub.UserID, targets, sub.ID); err != nil {
		return nil, err
	}

	total, err := scoreAnswers(ctx, assessment, answers)
	if err != nil {
		return nil, err
	}
	if total != sub.Score {
		sub.AdjustedScore = nil
	}
	sub.Score = total
	sub.IsDraft = isDraft
	sub.SubmittedAt = now
	sub.SubmissionReleaseNumber = assessment.ReleaseNumber
	assignAnswerIDs(answers)
	sub.Answers = answers

	if err := s.Submissions.UpdateWithAnswers(ctx, sub); err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	if err := s.Ledger.UpdateExistingMarks(ctx, sub.AssessmentID, targets, userID, sub.ID, total); err != nil {
		return nil, err
	}

	s.Log.Info("submission updated",
		zap.String("submission_id", sub.ID),
		zap.String("user_id", userID),
		zap.Float64("score", total),
		zap.Bool("bypass", bypass),
	)
	return sub, nil
}

// DeleteSubmission soft-deletes. Deleting twice is an error.
func (s *SubmissionService) DeleteSubmission(ctx context.Context, submissionID string) (err error) {
	ctx, finish := s.begin(ctx, "delete", attribute.String("submission_id", submissionID))
	defer func() { finish(err) }()

	sub, err := s.loadActiveSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	now := s.Now()
	sub.Deleted = true
	sub.DeletedAt = &now
	if err := s.Submissions.Update(ctx, sub); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}

	s.Log.Info("submission deleted", zap.String("submission_id", submissionID))
	return nil
}

// AdjustSubmissionScore sets a manual score. Score and ledger are left as they are.
func (s *SubmissionService) AdjustSubmissionScore(ctx context.Context, submissionID string, adjustedScore float64) (sub *model.Submission, err error) {
	ctx, finish := s.begin(ctx, "adjust_score", attribute.String("submission_id", submissionID))
	defer func() { finish(err) }()

	sub, err = s.loadActiveSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if adjustedScore < 0 {
		return nil, util.NewBadRequestError("Adjusted score cannot be negative")
	}
	sub.AdjustedScore = &adjustedScore
	if err := s.Submissions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("adjust submission score: %w", err)
	}

	s.Log.Info("submission score adjusted",
		zap.String("submission_id", submissionID),
		zap.Float64("adjusted_score", adjustedScore),
	)
	return sub, nil
}

// RegradeSubmission rescores a submission against the current questions. Answers to
// removed questions are dropped. A deleted submission is returned unchanged.
func (s *SubmissionService) RegradeSubmission(ctx context.Context, submissionID string) (sub *model.Submission, err error) {
	ctx, finish := s.begin(ctx, "regrade", attribute.String("submission_id", submissionID))
	defer func() { finish(err) }()

	sub, err = s.GetSubmissionRecord(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Deleted {
		return sub, nil
	}
	if err := s.requireUser(ctx, sub.UserID); err != nil {
		return nil, err
	}
	assessment, err := s.loadAssessment(ctx, sub.AssessmentID)
	if err != nil {
		return nil, err
	}

	kept := make([]model.Answer, 0, len(sub.Answers))
	for _, ans := range sub.Answers {
		if _, ok := assessment.FindQuestion(ans.Base().QuestionID); !ok {
			s.Log.Info("dropping orphan answer",
				zap.String("submission_id", sub.ID),
				zap.String("question_id", ans.Base().QuestionID),
			)
			continue
		}
		kept = append(kept, ans)
	}

	tms, _ := model.TeamMemberSelection(kept)
	if tms == nil || len(tms.SelectedUserIDs) == 0 {
		return nil, util.NewBadRequestError("Submission has no team member selection")
	}
	targets := append([]string(nil), tms.SelectedUserIDs...)

	total, err := scoreAnswers(ctx, assessment, kept)
	if err != nil {
		return nil, err
	}
	sub.Score = total
	sub.AdjustedScore = nil
	sub.SubmittedAt = s.Now()
	sub.Answers = kept

	if err := s.Submissions.UpdateWithAnswers(ctx, sub); err != nil {
		return nil, fmt.Errorf("regrade submission: %w", err)
	}
	if err := s.Ledger.UpsertMarks(ctx, sub.AssessmentID, targets, sub.UserID, sub.ID, total); err != nil {
		return nil, err
	}

	s.Log.Info("submission regraded", zap.String("submission_id", sub.ID), zap.Float64("score", total))
	return sub, nil
}

// RegradeAssessmentSubmissions regrades every non-deleted submission of an assessment
// in turn and returns how many were regraded.
func (s *SubmissionService) RegradeAssessmentSubmissions(ctx context.Context, assessmentID string) (n int, err error) {
	ctx, finish := s.begin(ctx, "regrade_all", attribute.String("assessment_id", assessmentID))
	defer func() { finish(err) }()

	if _, err := s.loadAssessment(ctx, assessmentID); err != nil {
		return 0, err
	}
	subs, err := s.Submissions.FindActiveByAssessment(ctx, assessmentID)
	if err != nil {
		return 0, err
	}
	for i, sub := range subs {
		if _, err := s.RegradeSubmission(ctx, sub.ID); err != nil {
			return i, fmt.Errorf("regrade submission %s: %w", sub.ID, err)
		}
	}

	s.Log.Info("assessment regraded",
		zap.String("assessment_id", assessmentID),
		zap.Int("submissions", len(subs)),
	)
	return len(subs), nil
}

func (s *SubmissionService) GetSubmissionsByAssessment(ctx context.Context, assessmentID string) ([]model.Submission, error) {
	return s.Submissions.FindActiveByAssessment(ctx, assessmentID)
}

func (s *SubmissionService) GetSubmissionsByAssessmentAndUser(ctx context.Context, assessmentID, userID string) ([]model.Submission, error) {
	return s.Submissions.FindActiveByAssessmentAndUser(ctx, assessmentID, userID)
}

func (s *SubmissionService) GetSubmissionByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	return s.loadActiveSubmission(ctx, submissionID)
}

// GetSubmissionRecord also returns soft-deleted submissions.
func (s *SubmissionService) GetSubmissionRecord(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := s.Submissions.FindByID(ctx, submissionID)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		return nil, util.NewNotFoundError("Submission not found")
	}
	return sub, err
}

// CanManageAssessment 管理员或课程教师
func (s *SubmissionService) CanManageAssessment(ctx context.Context, accountID, assessmentID string) (bool, error) {
	account, err := s.Users.FindAccountByID(ctx, accountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return false, util.NewNotFoundError("Account not found")
	}
	if err != nil {
		return false, err
	}
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return false, err
	}
	return s.hasFacultyAccess(ctx, account, assessment.CourseID)
}

func (s *SubmissionService) hasFacultyAccess(ctx context.Context, account *model.Account, courseID string) (bool, error) {
	if account.Role == model.Admin {
		return true, nil
	}
	return s.Users.IsCourseFaculty(ctx, courseID, account.UserID)
}

func (s *SubmissionService) loadAssessment(ctx context.Context, id string) (*model.AssessmentWithQuestions, error) {
	a, err := s.Assessments.GetAssessmentWithQuestions(ctx, id)
	if errors.Is(err, repository.ErrAssessmentNotFound) {
		return nil, util.NewNotFoundError("Assessment not found")
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SubmissionService) loadActiveSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := s.Submissions.FindByID(ctx, id)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		return nil, util.NewNotFoundError("Submission not found")
	}
	if err != nil {
		return nil, err
	}
	if sub.Deleted {
		return nil, util.NewNotFoundError("Submission not found (Deleted)")
	}
	return sub, nil
}

func (s *SubmissionService) requireUser(ctx context.Context, userID string) error {
	_, err := s.Users.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return util.NewNotFoundError("User not found")
	}
	return err
}

func (s *SubmissionService) checkUniqueness(ctx context.Context, assessmentID, userID string, targets []string, excludeID string) error {
	if !s.Policy().EnforceUniqueTargets {
		return nil
	}
	unique, err := validation.CheckSubmissionUniqueness(ctx, s.Submissions, assessmentID, userID, targets, excludeID)
	if err != nil {
		return err
	}
	if !unique {
		return util.NewBadRequestError("User has already submitted for one or more of the selected team members")
	}
	return nil
}

// begin starts the span of a lifecycle operation; the returned func ends it and
// records the outcome.
func (s *SubmissionService) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService."+op)
	span.SetAttributes(attrs...)
	return ctx, func(err error) {
		outcome := "ok"
		switch {
		case err == nil:
		case util.IsNotFound(err):
			outcome = "not_found"
		case util.IsBadRequest(err):
			outcome = "bad_request"
		default:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.Log.Error("submission operation failed", zap.String("operation", op), zap.Error(err))
		}
		monitoring.ObserveOperation(op, outcome, start)
		span.End()
	}
}

func selectedTargets(answers []model.Answer) []string {
	tms, _ := model.TeamMemberSelection(answers)
	if tms == nil {
		return nil
	}
	return append([]string(nil), tms.SelectedUserIDs...)
}

// assignAnswerIDs gives fresh answers the id their stored row will carry,
// so the returned submission matches what a later read yields.
func assignAnswerIDs(answers []model.Answer) {
	for _, ans := range answers {
		if b := ans.Base(); b.ID == "" {
			b.ID = model.GenerateUUID()
		}
	}
}

// scoreAnswers 并发计算每个答案得分，全部完成后按顺序求和
func scoreAnswers(ctx context.Context, a *model.AssessmentWithQuestions, answers []model.Answer) (float64, error) {
	scores := make([]float64, len(answers))
	g, gctx := errgroup.WithContext(ctx)
	for i, ans := range answers {
		i, ans := i, ans
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			q, ok := a.FindQuestion(ans.Base().QuestionID)
			if !ok {
				return util.NewBadRequestError("Question %s not found in this assessment", ans.Base().QuestionID)
			}
			score := scoring.CalculateAnswerScore(q, ans, &a.Assessment)
			ans.Base().Score = score
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0.0
	for _, sc := range scores {
		total += sc
	}
	return total, nil
}
