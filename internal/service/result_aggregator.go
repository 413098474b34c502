package service

import (
	"context"
	"errors"

	"grading_backend/internal/model"
	"grading_backend/internal/repository"
	"grading_backend/internal/util"
)

// ResultAggregator 维护结果的平均分，重复调用结果不变
type ResultAggregator struct {
	Store ResultStore
}

func NewResultAggregator(store ResultStore) *ResultAggregator {
	return &ResultAggregator{Store: store}
}

func (a *ResultAggregator) RecalculateResult(ctx context.Context, resultID string) error {
	result, err := a.Store.FindByID(ctx, resultID)
	if errors.Is(err, repository.ErrResultNotFound) {
		return util.NewNotFoundError("Assessment result %s not found", resultID)
	}
	if err != nil {
		return err
	}
	return a.Store.SaveAverage(ctx, result.ID, AverageMark(result.Marks))
}

func AverageMark(marks []model.MarkEntry) float64 {
	if len(marks) == 0 {
		return 0
	}
	total := 0.0
	for _, m := range marks {
		total += m.Score
	}
	return total / float64(len(marks))
}

func (a *ResultAggregator) GetResultsByAssessment(ctx context.Context, assessmentID string) ([]model.AssessmentResult, error) {
	return a.Store.FindByAssessment(ctx, assessmentID)
}
