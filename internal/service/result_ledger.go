package service

import (
	"context"
	"errors"
	"fmt"

	"grading_backend/internal/model"
	"grading_backend/internal/repository"
	"grading_backend/internal/util"
	"grading_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ResultLedger reconciles submission totals into the per-student results.
type ResultLedger struct {
	Store        ResultStore
	Recalculator ResultRecalculator
	Log          *zap.Logger
}

func NewResultLedger(store ResultStore, recalculator ResultRecalculator, log *zap.Logger) *ResultLedger {
	return &ResultLedger{Store: store, Recalculator: recalculator, Log: log}
}

// RecordNewMarks 为每个目标学生创建（如不存在）结果并写入评分
func (l *ResultLedger) RecordNewMarks(ctx context.Context, assessmentID string, studentIDs []string, markerID, submissionID string, score float64) error {
	for _, studentID := range studentIDs {
		result, err := l.Store.FindOrCreate(ctx, assessmentID, studentID)
		if err != nil {
			return fmt.Errorf("find or create result for student %s: %w", studentID, err)
		}
		if err := l.Store.UpsertMark(ctx, result.ID, submissionID, markerID, score); err != nil {
			return fmt.Errorf("record mark for student %s: %w", studentID, err)
		}
		monitoring.LedgerWrites.WithLabelValues("create").Inc()
		if err := l.recalculate(ctx, result.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateExistingMarks overwrites marks written at submission time. Both the result and
// the mark entry must already exist.
func (l *ResultLedger) UpdateExistingMarks(ctx context.Context, assessmentID string, studentIDs []string, markerID, submissionID string, score float64) error {
	for _, studentID := range studentIDs {
		result, err := l.findResult(ctx, assessmentID, studentID)
		if err != nil {
			return err
		}
		err = l.Store.UpdateMark(ctx, result.ID, submissionID, markerID, score)
		if errors.Is(err, repository.ErrMarkEntryNotFound) {
			return util.NewNotFoundError("Mark entry for submission %s not found in result of student %s", submissionID, studentID)
		}
		if err != nil {
			return fmt.Errorf("update mark for student %s: %w", studentID, err)
		}
		monitoring.LedgerWrites.WithLabelValues("update").Inc()
		if err := l.recalculate(ctx, result.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpsertMarks requires the result to exist and inserts or overwrites the mark.
func (l *ResultLedger) UpsertMarks(ctx context.Context, assessmentID string, studentIDs []string, markerID, submissionID string, score float64) error {
	for _, studentID := range studentIDs {
		result, err := l.findResult(ctx, assessmentID, studentID)
		if err != nil {
			return err
		}
		if err := l.Store.UpsertMark(ctx, result.ID, submissionID, markerID, score); err != nil {
			return fmt.Errorf("upsert mark for student %s: %w", studentID, err)
		}
		monitoring.LedgerWrites.WithLabelValues("upsert").Inc()
		if err := l.recalculate(ctx, result.ID); err != nil {
			return err
		}
	}
	return nil
}

func (l *ResultLedger) findResult(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	result, err := l.Store.Find(ctx, assessmentID, studentID)
	if errors.Is(err, repository.ErrResultNotFound) {
		return nil, util.NewNotFoundError("Assessment result not found for student %s", studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find result for student %s: %w", studentID, err)
	}
	return result, nil
}

func (l *ResultLedger) recalculate(ctx context.Context, resultID string) error {
	if l.Recalculator == nil {
		return nil
	}
	if err := l.Recalculator.RecalculateResult(ctx, resultID); err != nil {
		l.Log.Error("recalculate result failed", zap.String("result_id", resultID), zap.Error(err))
		return fmt.Errorf("recalculate result %s: %w", resultID, err)
	}
	return nil
}
