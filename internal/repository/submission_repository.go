package repository

import (
	"context"
	"errors"

	"grading_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// Create 在同一事务中写入提交及其全部答案
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	rows, err := encodeAnswers(s)
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(s).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// Update saves the submission's own fields and leaves its answers untouched.
func (r *SubmissionRepository) Update(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(s).Error
}

// UpdateWithAnswers saves the submission and replaces its answer rows with s.Answers.
// Rows of answers no longer present are removed.
func (r *SubmissionRepository) UpdateWithAnswers(ctx context.Context, s *model.Submission) error {
	rows, err := encodeAnswers(s)
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(s).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", s.ID).Delete(&model.SubmissionAnswer{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).Preload("AnswerRows").First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := decodeAnswers(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) FindActiveByAssessment(ctx context.Context, assessmentID string) ([]model.Submission, error) {
	return r.findActive(ctx, r.DB.Where("assessment_id = ?", assessmentID))
}

func (r *SubmissionRepository) FindActiveByAssessmentAndUser(ctx context.Context, assessmentID, userID string) ([]model.Submission, error) {
	return r.findActive(ctx, r.DB.Where("assessment_id = ? AND user_id = ?", assessmentID, userID))
}

func (r *SubmissionRepository) findActive(ctx context.Context, query *gorm.DB) ([]model.Submission, error) {
	var ss []model.Submission
	err := query.WithContext(ctx).
		Where("deleted = ?", false).
		Preload("AnswerRows").
		Order("submitted_at asc").
		Find(&ss).Error
	if err != nil {
		return nil, err
	}
	for i := range ss {
		if err := decodeAnswers(&ss[i]); err != nil {
			return nil, err
		}
	}
	return ss, nil
}

func encodeAnswers(s *model.Submission) ([]model.SubmissionAnswer, error) {
	rows := make([]model.SubmissionAnswer, 0, len(s.Answers))
	for _, a := range s.Answers {
		row, err := model.EncodeAnswer(s.ID, a)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeAnswers(s *model.Submission) error {
	s.Answers = make([]model.Answer, 0, len(s.AnswerRows))
	for _, row := range s.AnswerRows {
		a, err := model.DecodeAnswerRow(row)
		if err != nil {
			return err
		}
		s.Answers = append(s.Answers, a)
	}
	s.AnswerRows = nil
	return nil
}
