// Package scoring computes per-answer scores. Every function here is pure; answers are
// assumed to have passed validation.ValidateAnswers against the same assessment.
package scoring

import (
	"math"
	"sort"

	"grading_backend/internal/model"
)

// ScalingFactor is the ratio applied to every raw question score of an assessment.
func ScalingFactor(a *model.Assessment) float64 {
	if a.MaxMarks == 0 || !a.ScaleToMaxMarks || a.QuestionsTotalMarks == nil || *a.QuestionsTotalMarks == 0 {
		return 1
	}
	return a.MaxMarks / *a.QuestionsTotalMarks
}

// CalculateAnswerScore returns the scaled score of one answer. A question/answer pair
// whose variants do not correspond scores 0.
func CalculateAnswerScore(q model.Question, ans model.Answer, a *model.Assessment) float64 {
	return rawScore(q, ans) * ScalingFactor(a)
}

func rawScore(q model.Question, ans model.Answer) float64 {
	switch q := q.(type) {
	case *model.MultipleChoiceQuestion:
		if a, ok := ans.(*model.MultipleChoiceAnswer); ok {
			return multipleChoice(q, a)
		}
	case *model.MultipleResponseQuestion:
		if a, ok := ans.(*model.MultipleResponseAnswer); ok {
			return multipleResponse(q, a)
		}
	case *model.ScaleQuestion:
		if a, ok := ans.(*model.ScaleAnswer); ok {
			return scale(q, a)
		}
	case *model.NumberQuestion:
		if a, ok := ans.(*model.NumberAnswer); ok {
			return number(q, a)
		}
	case *model.DateQuestion, *model.TeamMemberSelectionQuestion, *model.NUSNETIDQuestion,
		*model.NUSNETEmailQuestion, *model.ShortResponseQuestion, *model.LongResponseQuestion,
		*model.UndecidedQuestion:
		return 0
	}
	return 0
}

func multipleChoice(q *model.MultipleChoiceQuestion, a *model.MultipleChoiceAnswer) float64 {
	if !q.IsScored {
		return 0
	}
	for _, opt := range q.Options {
		if opt.Text == a.Value {
			return opt.Points
		}
	}
	return 0
}

func multipleResponse(q *model.MultipleResponseQuestion, a *model.MultipleResponseAnswer) float64 {
	if !q.IsScored {
		return 0
	}

	selected := make(map[string]struct{}, len(a.Values))
	for _, v := range a.Values {
		selected[v] = struct{}{}
	}

	var sum float64
	allCorrectChosen := true
	chosenHasIncorrect := false
	for _, opt := range q.Options {
		_, chosen := selected[opt.Text]
		if chosen {
			sum += opt.Points
			if opt.Points <= 0 {
				chosenHasIncorrect = true
			}
		} else if opt.Points > 0 {
			allCorrectChosen = false
		}
	}

	if !q.AllowPartialMarks {
		if !allCorrectChosen || chosenHasIncorrect {
			return 0
		}
		return math.Max(sum, 0)
	}

	if !q.AreWrongAnswersPenalized || !q.AllowNegative {
		return math.Max(sum, 0)
	}
	return sum
}

func scale(q *model.ScaleQuestion, a *model.ScaleAnswer) float64 {
	if !q.IsScored || len(q.Labels) == 0 {
		return 0
	}

	labels := make([]model.ScaleLabel, len(q.Labels))
	copy(labels, q.Labels)
	sort.Slice(labels, func(i, j int) bool { return labels[i].Value < labels[j].Value })

	lo, hi := labels[0], labels[len(labels)-1]
	if a.Value <= lo.Value {
		return lo.Points
	}
	if a.Value >= hi.Value {
		return hi.Points
	}

	for i := 0; i < len(labels)-1; i++ {
		l0, l1 := labels[i], labels[i+1]
		if a.Value >= l0.Value && a.Value <= l1.Value {
			return interpolate(l0.Value, l0.Points, l1.Value, l1.Points, a.Value)
		}
	}
	return 0
}

func number(q *model.NumberQuestion, a *model.NumberAnswer) float64 {
	if !q.IsScored || a.Value == nil {
		return 0
	}
	value := *a.Value

	switch q.ScoringMethod {
	case model.ScoringMethodDirect:
		if q.MaxNumber == 0 || q.MaxPoints == nil {
			return 0
		}
		return value / q.MaxNumber * *q.MaxPoints
	case model.ScoringMethodRange:
		return numberRange(q.ScoringRanges, value)
	}
	return 0
}

// numberRange: an exact range match wins. Otherwise the value sits in a gap and is
// interpolated between the nearest lower range's top and the nearest higher range's
// bottom. Below every range the virtual anchor (0, 0) stands in for the lower range;
// above every range the highest range's points apply unchanged.
func numberRange(ranges []model.ScoringRange, value float64) float64 {
	for _, r := range ranges {
		if r.MinValue <= value && value <= r.MaxValue {
			return r.Points
		}
	}

	var lower, higher *model.ScoringRange
	for i := range ranges {
		r := &ranges[i]
		if r.MaxValue < value && (lower == nil || r.MaxValue > lower.MaxValue) {
			lower = r
		}
		if r.MinValue > value && (higher == nil || r.MinValue < higher.MinValue) {
			higher = r
		}
	}

	switch {
	case lower != nil && higher != nil:
		return interpolate(lower.MaxValue, lower.Points, higher.MinValue, higher.Points, value)
	case lower != nil:
		return lower.Points
	case higher != nil:
		return interpolate(0, 0, higher.MinValue, higher.Points, value)
	}
	return 0
}

func interpolate(v0, p0, v1, p1, v float64) float64 {
	if v1 == v0 {
		return p0
	}
	return p0 + (p1-p0)/(v1-v0)*(v-v0)
}

// QuestionMaxPoints is the best raw score a question can award.
func QuestionMaxPoints(q model.Question) float64 {
	switch q := q.(type) {
	case *model.MultipleChoiceQuestion:
		if !q.IsScored {
			return 0
		}
		best := 0.0
		for _, o := range q.Options {
			best = math.Max(best, o.Points)
		}
		return best
	case *model.MultipleResponseQuestion:
		if !q.IsScored {
			return 0
		}
		total := 0.0
		for _, o := range q.Options {
			if o.Points > 0 {
				total += o.Points
			}
		}
		return total
	case *model.ScaleQuestion:
		if !q.IsScored {
			return 0
		}
		best := 0.0
		for _, l := range q.Labels {
			best = math.Max(best, l.Points)
		}
		return best
	case *model.NumberQuestion:
		if !q.IsScored {
			return 0
		}
		switch q.ScoringMethod {
		case model.ScoringMethodDirect:
			if q.MaxPoints != nil {
				return *q.MaxPoints
			}
		case model.ScoringMethodRange:
			best := 0.0
			for _, r := range q.ScoringRanges {
				best = math.Max(best, r.Points)
			}
			return best
		}
	}
	return 0
}

// QuestionsTotalMarks sums QuestionMaxPoints over a question set.
func QuestionsTotalMarks(questions []model.Question) float64 {
	total := 0.0
	for _, q := range questions {
		total += QuestionMaxPoints(q)
	}
	return total
}
