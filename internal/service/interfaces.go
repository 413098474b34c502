package service

import (
	"context"

	"grading_backend/internal/model"
)

type AssessmentProvider interface {
	GetAssessmentWithQuestions(ctx context.Context, id string) (*model.AssessmentWithQuestions, error)
}

type SubmissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
	Update(ctx context.Context, s *model.Submission) error
	UpdateWithAnswers(ctx context.Context, s *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)
	FindActiveByAssessment(ctx context.Context, assessmentID string) ([]model.Submission, error)
	FindActiveByAssessmentAndUser(ctx context.Context, assessmentID, userID string) ([]model.Submission, error)
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindAccountByID(ctx context.Context, id string) (*model.Account, error)
	IsCourseFaculty(ctx context.Context, courseID, userID string) (bool, error)
}

// ResultStore is the persistence behind the result ledger. UpsertMark must be atomic
// per (resultID, submissionID).
type ResultStore interface {
	FindOrCreate(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error)
	Find(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error)
	FindByID(ctx context.Context, id string) (*model.AssessmentResult, error)
	FindByAssessment(ctx context.Context, assessmentID string) ([]model.AssessmentResult, error)
	UpsertMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error
	UpdateMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error
	SaveAverage(ctx context.Context, resultID string, average float64) error
}

// ResultRecalculator is invoked after every mark entry mutation.
type ResultRecalculator interface {
	RecalculateResult(ctx context.Context, resultID string) error
}

type AssessmentCache interface {
	Invalidate(ctx context.Context, id string)
}
