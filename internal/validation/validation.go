// Package validation checks submissions against an assessment before anything is scored
// or persisted.
package validation

import (
	"context"
	"math"
	"time"

	"grading_backend/internal/model"
	"grading_backend/internal/util"
)

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", util.DateFormat}

// ValidateSubmissionPeriod fails when now is outside [startDate, endDate].
func ValidateSubmissionPeriod(a *model.Assessment, now time.Time) error {
	if now.Before(a.StartDate) {
		return util.NewBadRequestError("Assessment is not open for submissions yet")
	}
	if a.EndDate != nil && now.After(*a.EndDate) {
		return util.NewBadRequestError("Assessment is closed for submissions")
	}
	return nil
}

// ValidateAnswers checks every answer against the question it references.
func ValidateAnswers(a *model.AssessmentWithQuestions, answers []model.Answer) error {
	seen := make(map[string]struct{}, len(answers))
	selections := 0

	for _, ans := range answers {
		qid := ans.Base().QuestionID
		q, ok := a.FindQuestion(qid)
		if !ok {
			return util.NewBadRequestError("Question %s not found in this assessment", qid)
		}
		if _, dup := seen[qid]; dup {
			return util.NewBadRequestError("Question %s answered more than once", qid)
		}
		seen[qid] = struct{}{}

		expected, known := model.ExpectedAnswerType[q.QuestionType()]
		if !known || ans.AnswerType() != expected {
			return util.NewBadRequestError("Answer type %s does not match question type %s for question %s",
				ans.AnswerType(), q.QuestionType(), qid)
		}
		if err := validateAnswerValue(a, q, ans); err != nil {
			return err
		}
		if ans.AnswerType() == model.AnswerTeamMemberSelection {
			selections++
		}
	}

	if selections != 1 {
		return util.NewBadRequestError("Submission must contain exactly one Team Member Selection answer")
	}
	return nil
}

func validateAnswerValue(a *model.AssessmentWithQuestions, q model.Question, ans model.Answer) error {
	qid := q.Base().ID

	switch q := q.(type) {
	case *model.TeamMemberSelectionQuestion:
		tms := ans.(*model.TeamMemberSelectionAnswer)
		if a.Granularity == model.GranularityIndividual && len(tms.SelectedUserIDs) > 1 {
			return util.NewBadRequestError("Only one team member can be selected for question %s", qid)
		}

	case *model.MultipleChoiceQuestion:
		mc := ans.(*model.MultipleChoiceAnswer)
		if !hasOption(q.Options, mc.Value) {
			return util.NewBadRequestError("Invalid option %q for question %s", mc.Value, qid)
		}

	case *model.MultipleResponseQuestion:
		mr := ans.(*model.MultipleResponseAnswer)
		if mr.Values == nil {
			return util.NewBadRequestError("Answer values for question %s must be an array", qid)
		}
		for _, v := range mr.Values {
			if !hasOption(q.Options, v) {
				return util.NewBadRequestError("Invalid option %q for question %s", v, qid)
			}
		}

	case *model.ScaleQuestion:
		sc := ans.(*model.ScaleAnswer)
		if sc.Value < 1 || sc.Value > q.ScaleMax {
			return util.NewBadRequestError("Answer for question %s must be between 1 and %v", qid, q.ScaleMax)
		}

	case *model.DateQuestion:
		d := ans.(*model.DateAnswer)
		if q.IsRange {
			if !parseableDate(d.StartDate) || !parseableDate(d.EndDate) {
				return util.NewBadRequestError("Both start and end dates are required for question %s", qid)
			}
		} else if !parseableDate(d.Value) {
			return util.NewBadRequestError("A valid date is required for question %s", qid)
		}

	case *model.NumberQuestion:
		n := ans.(*model.NumberAnswer)
		if n.Value == nil || math.IsNaN(*n.Value) {
			return util.NewBadRequestError("Answer for question %s must be a number", qid)
		}
		if *n.Value < 0 || *n.Value > q.MaxNumber {
			return util.NewBadRequestError("Answer for question %s must be between 0 and %v", qid, q.MaxNumber)
		}

	case *model.NUSNETIDQuestion, *model.NUSNETEmailQuestion, *model.ShortResponseQuestion,
		*model.LongResponseQuestion, *model.UndecidedQuestion:
		// 无取值约束

	default:
		return util.NewBadRequestError("Unsupported question type %s for question %s", q.QuestionType(), qid)
	}
	return nil
}

func hasOption(options []model.Option, text string) bool {
	for _, o := range options {
		if o.Text == text {
			return true
		}
	}
	return false
}

func parseableDate(s *string) bool {
	if s == nil || *s == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, *s); err == nil {
			return true
		}
	}
	return false
}

// SubmissionLister lists the non-deleted submissions of one grader for one assessment.
type SubmissionLister interface {
	FindActiveByAssessmentAndUser(ctx context.Context, assessmentID, userID string) ([]model.Submission, error)
}

// CheckSubmissionUniqueness reports false when any target already appears in another
// non-deleted submission by the same grader. excludeID skips the submission being edited.
func CheckSubmissionUniqueness(ctx context.Context, lister SubmissionLister, assessmentID, userID string, targets []string, excludeID string) (bool, error) {
	existing, err := lister.FindActiveByAssessmentAndUser(ctx, assessmentID, userID)
	if err != nil {
		return false, err
	}

	prior := make(map[string]struct{})
	for _, s := range existing {
		if s.ID == excludeID {
			continue
		}
		if tms, _ := model.TeamMemberSelection(s.Answers); tms != nil {
			for _, id := range tms.SelectedUserIDs {
				prior[id] = struct{}{}
			}
		}
	}

	for _, id := range targets {
		if _, taken := prior[id]; taken {
			return false, nil
		}
	}
	return true, nil
}
