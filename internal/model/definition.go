package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var definitionValidator = validator.New()

// ValidateQuestionDefinition rejects question definitions the scorer cannot rely on.
func ValidateQuestionDefinition(q Question) error {
	if err := definitionValidator.Struct(q); err != nil {
		return fmt.Errorf("question %s: %w", q.Base().ID, err)
	}

	switch v := q.(type) {
	case *ScaleQuestion:
		for i := 1; i < len(v.Labels); i++ {
			prev, cur := v.Labels[i-1], v.Labels[i]
			if cur.Value <= prev.Value {
				return fmt.Errorf("question %s: scale label values must be unique and ascending", v.ID)
			}
			if cur.Points < prev.Points {
				return fmt.Errorf("question %s: scale label points must not decrease as value increases", v.ID)
			}
		}
	case *NumberQuestion:
		if v.MaxPoints != nil && *v.MaxPoints < 0 {
			return fmt.Errorf("question %s: maxPoints must not be negative", v.ID)
		}
		if v.ScoringMethod == ScoringMethodRange {
			if len(v.ScoringRanges) == 0 {
				return fmt.Errorf("question %s: range scoring requires at least one range", v.ID)
			}
			for _, r := range v.ScoringRanges {
				if r.MinValue > r.MaxValue {
					return fmt.Errorf("question %s: range %v-%v is inverted", v.ID, r.MinValue, r.MaxValue)
				}
			}
		}
	}
	return nil
}
