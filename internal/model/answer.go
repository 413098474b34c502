package model

// Answer is one of the *XxxAnswer variants below. The set is sealed and mirrors Question.
type Answer interface {
	Base() *AnswerBase
	AnswerType() AnswerType
	isAnswer()
}

// AnswerBase 答案公共字段；Score 只由评分器写入
type AnswerBase struct {
	ID         string     `json:"id,omitempty"`
	QuestionID string     `json:"question"`
	Type       AnswerType `json:"type"`
	Score      float64    `json:"score"`
}

func (b *AnswerBase) Base() *AnswerBase { return b }

type MultipleChoiceAnswer struct {
	AnswerBase
	Value string `json:"value"`
}

type MultipleResponseAnswer struct {
	AnswerBase
	Values []string `json:"values"`
}

type ScaleAnswer struct {
	AnswerBase
	Value float64 `json:"value"`
}

type NumberAnswer struct {
	AnswerBase
	Value *float64 `json:"value"`
}

type DateAnswer struct {
	AnswerBase
	Value     *string `json:"value,omitempty"`
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
}

type TeamMemberSelectionAnswer struct {
	AnswerBase
	SelectedUserIDs []string `json:"selectedUserIds"`
}

type NUSNETIDAnswer struct {
	AnswerBase
	Value string `json:"value"`
}

type NUSNETEmailAnswer struct {
	AnswerBase
	Value string `json:"value"`
}

type ShortResponseAnswer struct {
	AnswerBase
	Value string `json:"value"`
}

type LongResponseAnswer struct {
	AnswerBase
	Value string `json:"value"`
}

type UndecidedAnswer struct{ AnswerBase }

func (*MultipleChoiceAnswer) AnswerType() AnswerType      { return AnswerMultipleChoice }
func (*MultipleResponseAnswer) AnswerType() AnswerType    { return AnswerMultipleResponse }
func (*ScaleAnswer) AnswerType() AnswerType               { return AnswerScale }
func (*NumberAnswer) AnswerType() AnswerType              { return AnswerNumber }
func (*DateAnswer) AnswerType() AnswerType                { return AnswerDate }
func (*TeamMemberSelectionAnswer) AnswerType() AnswerType { return AnswerTeamMemberSelection }
func (*NUSNETIDAnswer) AnswerType() AnswerType            { return AnswerNUSNETID }
func (*NUSNETEmailAnswer) AnswerType() AnswerType         { return AnswerNUSNETEmail }
func (*ShortResponseAnswer) AnswerType() AnswerType       { return AnswerShortResponse }
func (*LongResponseAnswer) AnswerType() AnswerType        { return AnswerLongResponse }
func (*UndecidedAnswer) AnswerType() AnswerType           { return AnswerUndecided }

func (*MultipleChoiceAnswer) isAnswer()      {}
func (*MultipleResponseAnswer) isAnswer()    {}
func (*ScaleAnswer) isAnswer()               {}
func (*NumberAnswer) isAnswer()              {}
func (*DateAnswer) isAnswer()                {}
func (*TeamMemberSelectionAnswer) isAnswer() {}
func (*NUSNETIDAnswer) isAnswer()            {}
func (*NUSNETEmailAnswer) isAnswer()         {}
func (*ShortResponseAnswer) isAnswer()       {}
func (*LongResponseAnswer) isAnswer()        {}
func (*UndecidedAnswer) isAnswer()           {}

// NewAnswer returns an empty variant for the given tag.
func NewAnswer(t AnswerType) (Answer, bool) {
	var a Answer
	switch t {
	case AnswerMultipleChoice:
		a = &MultipleChoiceAnswer{}
	case AnswerMultipleResponse:
		a = &MultipleResponseAnswer{}
	case AnswerScale:
		a = &ScaleAnswer{}
	case AnswerNumber:
		a = &NumberAnswer{}
	case AnswerDate:
		a = &DateAnswer{}
	case AnswerTeamMemberSelection:
		a = &TeamMemberSelectionAnswer{}
	case AnswerNUSNETID:
		a = &NUSNETIDAnswer{}
	case AnswerNUSNETEmail:
		a = &NUSNETEmailAnswer{}
	case AnswerShortResponse:
		a = &ShortResponseAnswer{}
	case AnswerLongResponse:
		a = &LongResponseAnswer{}
	case AnswerUndecided:
		a = &UndecidedAnswer{}
	default:
		return nil, false
	}
	a.Base().Type = t
	return a, true
}

// TeamMemberSelection returns the single team member selection answer, if any.
func TeamMemberSelection(answers []Answer) (*TeamMemberSelectionAnswer, int) {
	var found *TeamMemberSelectionAnswer
	count := 0
	for _, a := range answers {
		if tms, ok := a.(*TeamMemberSelectionAnswer); ok {
			if found == nil {
				found = tms
			}
			count++
		}
	}
	return found, count
}
