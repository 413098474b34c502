package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grading_backend/internal/model"
	"grading_backend/internal/repository"
	"grading_backend/internal/scoring"
	"grading_backend/internal/util"

	"go.uber.org/zap"
)

type AssessmentService struct {
	Repo  *repository.AssessmentRepository
	Cache AssessmentCache
	Log   *zap.Logger
}

func NewAssessmentService(repo *repository.AssessmentRepository, cache AssessmentCache, log *zap.Logger) *AssessmentService {
	return &AssessmentService{Repo: repo, Cache: cache, Log: log}
}

type AssessmentRequest struct {
	CourseID               string            `json:"course" binding:"required"`
	Title                  string            `json:"title" binding:"required"`
	StartDate              time.Time         `json:"startDate" binding:"required"`
	EndDate                *time.Time        `json:"endDate"`
	Granularity            model.Granularity `json:"granularity" binding:"required,oneof=team individual"`
	MaxMarks               float64           `json:"maxMarks" binding:"gte=0"`
	ScaleToMaxMarks        bool              `json:"scaleToMaxMarks"`
	AreSubmissionsEditable bool              `json:"areSubmissionsEditable"`
}

func (s *AssessmentService) CreateAssessment(ctx context.Context, req AssessmentRequest) (*model.Assessment, error) {
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, util.NewBadRequestError("End date must not be before start date")
	}
	a := &model.Assessment{
		CourseID:               req.CourseID,
		Title:                  req.Title,
		StartDate:              req.StartDate,
		EndDate:                req.EndDate,
		Granularity:            req.Granularity,
		MaxMarks:               req.MaxMarks,
		ScaleToMaxMarks:        req.ScaleToMaxMarks,
		AreSubmissionsEditable: req.AreSubmissionsEditable,
	}
	if err := s.Repo.CreateAssessment(ctx, a); err != nil {
		return nil, err
	}
	s.Log.Info("assessment created", zap.String("assessment_id", a.ID), zap.String("course_id", a.CourseID))
	return a, nil
}

func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*model.AssessmentWithQuestions, error) {
	a, err := s.Repo.GetAssessmentWithQuestions(ctx, id)
	if errors.Is(err, repository.ErrAssessmentNotFound) {
		return nil, util.NewNotFoundError("Assessment not found")
	}
	return a, err
}

// SetQuestions replaces the question set, bumps the release number and recomputes
// questionsTotalMarks. Existing submissions keep their answers until regraded.
func (s *AssessmentService) SetQuestions(ctx context.Context, assessmentID string, questions []model.Question) (*model.AssessmentWithQuestions, error) {
	rows := make([]model.AssessmentQuestion, 0, len(questions))
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if err := model.ValidateQuestionDefinition(q); err != nil {
			return nil, util.NewBadRequestError("Question %d: %v", i+1, err)
		}
		if id := q.Base().ID; id != "" {
			if _, dup := seen[id]; dup {
				return nil, util.NewBadRequestError("Duplicate question id %s", id)
			}
			seen[id] = struct{}{}
		} else {
			q.Base().ID = model.GenerateUUID()
		}
		row, err := model.EncodeQuestion(assessmentID, i, q)
		if err != nil {
			return nil, fmt.Errorf("encode question %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}

	total := scoring.QuestionsTotalMarks(questions)
	release, err := s.Repo.ReplaceQuestions(ctx, assessmentID, rows, total)
	if errors.Is(err, repository.ErrAssessmentNotFound) {
		return nil, util.NewNotFoundError("Assessment not found")
	}
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, assessmentID)
	}

	s.Log.Info("assessment questions replaced",
		zap.String("assessment_id", assessmentID),
		zap.Int("questions", len(rows)),
		zap.Int("release_number", release),
		zap.Float64("questions_total_marks", total),
	)
	return s.GetAssessment(ctx, assessmentID)
}
