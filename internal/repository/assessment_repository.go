package repository

import (
	"context"
	"errors"

	"grading_backend/internal/model"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	return r.DB.WithContext(ctx).Omit("QuestionRows").Create(a).Error
}

// LoadAssessmentRows returns the assessment with its question rows in display order.
func (r *AssessmentRepository) LoadAssessmentRows(ctx context.Context, id string) (*model.Assessment, []model.AssessmentQuestion, error) {
	var a model.Assessment
	err := r.DB.WithContext(ctx).
		Preload("QuestionRows", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, created_at asc")
		}).
		First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	rows := a.QuestionRows
	a.QuestionRows = nil
	return &a, rows, nil
}

func (r *AssessmentRepository) GetAssessmentWithQuestions(ctx context.Context, id string) (*model.AssessmentWithQuestions, error) {
	a, rows, err := r.LoadAssessmentRows(ctx, id)
	if err != nil {
		return nil, err
	}
	return AssembleAssessment(a, rows)
}

// AssembleAssessment decodes question rows into typed variants.
func AssembleAssessment(a *model.Assessment, rows []model.AssessmentQuestion) (*model.AssessmentWithQuestions, error) {
	out := &model.AssessmentWithQuestions{Assessment: *a, Questions: make([]model.Question, 0, len(rows))}
	for _, row := range rows {
		q, err := model.DecodeQuestion(row)
		if err != nil {
			return nil, err
		}
		out.Questions = append(out.Questions, q)
	}
	return out, nil
}

// ReplaceQuestions swaps the question set of an assessment and bumps its release number.
func (r *AssessmentRepository) ReplaceQuestions(ctx context.Context, assessmentID string, rows []model.AssessmentQuestion, totalMarks float64) (int, error) {
	var release int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Assessment
		if err := tx.First(&a, "id = ?", assessmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssessmentNotFound
			}
			return err
		}
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&model.AssessmentQuestion{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		release = a.ReleaseNumber + 1
		return tx.Model(&model.Assessment{}).Where("id = ?", assessmentID).Updates(map[string]interface{}{
			"release_number":        release,
			"questions_total_marks": totalMarks,
		}).Error
	})
	return release, err
}
