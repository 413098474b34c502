package repository

import (
	"context"
	"errors"
	"time"

	"grading_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResultRepository 评分结果台账（关系库实现）
type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

// FindOrCreate returns the result of (assessment, student), creating an empty one when
// absent. Concurrent callers race on the unique index and all end up with the same row.
func (r *ResultRepository) FindOrCreate(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	db := r.DB.WithContext(ctx)
	fresh := model.AssessmentResult{AssessmentID: assessmentID, StudentID: studentID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Omit("Marks").Create(&fresh).Error; err != nil {
		return nil, err
	}

	var result model.AssessmentResult
	err := db.Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) Find(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	var result model.AssessmentResult
	err := r.DB.WithContext(ctx).
		Preload("Marks").
		Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) FindByID(ctx context.Context, id string) (*model.AssessmentResult, error) {
	var result model.AssessmentResult
	err := r.DB.WithContext(ctx).Preload("Marks").First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) FindByAssessment(ctx context.Context, assessmentID string) ([]model.AssessmentResult, error) {
	var results []model.AssessmentResult
	err := r.DB.WithContext(ctx).
		Preload("Marks").
		Where("assessment_id = ?", assessmentID).
		Order("student_id asc").
		Find(&results).Error
	return results, err
}

// UpsertMark inserts the mark of a submission or overwrites it in place. The unique
// index on (assessment_result_id, submission_id) keeps one entry per submission.
func (r *ResultRepository) UpsertMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error {
	entry := model.MarkEntry{
		AssessmentResultID: resultID,
		SubmissionID:       submissionID,
		MarkerID:           markerID,
		Score:              score,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assessment_result_id"}, {Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"marker_id", "score", "updated_at"}),
	}).Create(&entry).Error
}

// UpdateMark overwrites an existing mark. ErrMarkEntryNotFound when no entry exists.
func (r *ResultRepository) UpdateMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error {
	db := r.DB.WithContext(ctx)
	res := db.Model(&model.MarkEntry{}).
		Where("assessment_result_id = ? AND submission_id = ?", resultID, submissionID).
		Updates(map[string]interface{}{
			"marker_id":  markerID,
			"score":      score,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// mysql 对未变化的行返回 0，需要再确认一次是否存在
	var count int64
	if err := db.Model(&model.MarkEntry{}).
		Where("assessment_result_id = ? AND submission_id = ?", resultID, submissionID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrMarkEntryNotFound
	}
	return nil
}

func (r *ResultRepository) SaveAverage(ctx context.Context, resultID string, average float64) error {
	return r.DB.WithContext(ctx).Model(&model.AssessmentResult{}).
		Where("id = ?", resultID).
		Update("average_score", average).Error
}
