package model

// QuestionType 题目类型标签（封闭集合）
type QuestionType string

const (
	TypeMultipleChoice      QuestionType = "Multiple Choice"
	TypeMultipleResponse    QuestionType = "Multiple Response"
	TypeScale               QuestionType = "Scale"
	TypeNumber              QuestionType = "Number"
	TypeDate                QuestionType = "Date"
	TypeTeamMemberSelection QuestionType = "Team Member Selection"
	TypeNUSNETID            QuestionType = "NUSNET ID"
	TypeNUSNETEmail         QuestionType = "NUSNET Email"
	TypeShortResponse       QuestionType = "Short Response"
	TypeLongResponse        QuestionType = "Long Response"
	TypeUndecided           QuestionType = "Undecided"
)

// AnswerType 答案类型标签
type AnswerType string

const (
	AnswerMultipleChoice      AnswerType = "Multiple Choice Answer"
	AnswerMultipleResponse    AnswerType = "Multiple Response Answer"
	AnswerScale               AnswerType = "Scale Answer"
	AnswerNumber              AnswerType = "Number Answer"
	AnswerDate                AnswerType = "Date Answer"
	AnswerTeamMemberSelection AnswerType = "Team Member Selection Answer"
	AnswerNUSNETID            AnswerType = "NUSNET ID Answer"
	AnswerNUSNETEmail         AnswerType = "NUSNET Email Answer"
	AnswerShortResponse       AnswerType = "Short Response Answer"
	AnswerLongResponse        AnswerType = "Long Response Answer"
	AnswerUndecided           AnswerType = "Undecided Answer"
)

// ExpectedAnswerType maps each question type to the only answer type it accepts.
var ExpectedAnswerType = map[QuestionType]AnswerType{
	TypeMultipleChoice:      AnswerMultipleChoice,
	TypeMultipleResponse:    AnswerMultipleResponse,
	TypeScale:               AnswerScale,
	TypeNumber:              AnswerNumber,
	TypeDate:                AnswerDate,
	TypeTeamMemberSelection: AnswerTeamMemberSelection,
	TypeNUSNETID:            AnswerNUSNETID,
	TypeNUSNETEmail:         AnswerNUSNETEmail,
	TypeShortResponse:       AnswerShortResponse,
	TypeLongResponse:        AnswerLongResponse,
	TypeUndecided:           AnswerUndecided,
}

type NumberScoringMethod string

const (
	ScoringMethodDirect NumberScoringMethod = "direct"
	ScoringMethodRange  NumberScoringMethod = "range"
	ScoringMethodNone   NumberScoringMethod = "None"
)

// Question is one of the *XxxQuestion variants below. The set is sealed.
type Question interface {
	Base() *QuestionBase
	QuestionType() QuestionType
	isQuestion()
}

type QuestionBase struct {
	ID                string       `json:"id"`
	Type              QuestionType `json:"type"`
	Text              string       `json:"text" validate:"required"`
	IsRequired        bool         `json:"isRequired"`
	IsLocked          bool         `json:"isLocked"`
	CustomInstruction *string      `json:"customInstruction,omitempty"`
}

func (b *QuestionBase) Base() *QuestionBase { return b }

type Option struct {
	Text   string  `json:"text" validate:"required"`
	Points float64 `json:"points"`
}

type ScaleLabel struct {
	Value  float64 `json:"value"`
	Label  string  `json:"label"`
	Points float64 `json:"points"`
}

type ScoringRange struct {
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`
	Points   float64 `json:"points"`
}

type MultipleChoiceQuestion struct {
	QuestionBase
	Options  []Option `json:"options" validate:"min=1,dive"`
	IsScored bool     `json:"isScored"`
}

type MultipleResponseQuestion struct {
	QuestionBase
	Options                  []Option `json:"options" validate:"min=1,dive"`
	IsScored                 bool     `json:"isScored"`
	AllowPartialMarks        bool     `json:"allowPartialMarks"`
	AllowNegative            bool     `json:"allowNegative"`
	AreWrongAnswersPenalized bool     `json:"areWrongAnswersPenalized"`
}

type ScaleQuestion struct {
	QuestionBase
	ScaleMax float64      `json:"scaleMax" validate:"gte=1"`
	Labels   []ScaleLabel `json:"labels" validate:"min=2"`
	IsScored bool         `json:"isScored"`
}

type NumberQuestion struct {
	QuestionBase
	MaxNumber     float64             `json:"maxNumber" validate:"gte=0"`
	IsScored      bool                `json:"isScored"`
	ScoringMethod NumberScoringMethod `json:"scoringMethod" validate:"omitempty,oneof=direct range None"`
	MaxPoints     *float64            `json:"maxPoints,omitempty"`
	ScoringRanges []ScoringRange      `json:"scoringRanges,omitempty"`
}

type DatePickerRestrictions struct {
	MinDate *string `json:"minDate,omitempty"`
	MaxDate *string `json:"maxDate,omitempty"`
}

type DateQuestion struct {
	QuestionBase
	IsRange                bool                    `json:"isRange"`
	DatePickerRestrictions *DatePickerRestrictions `json:"datePickerRestrictions,omitempty"`
}

type TeamMemberSelectionQuestion struct{ QuestionBase }

type NUSNETIDQuestion struct {
	QuestionBase
	ShortResponsePlaceholder string `json:"shortResponsePlaceholder,omitempty"`
}

type NUSNETEmailQuestion struct {
	QuestionBase
	ShortResponsePlaceholder string `json:"shortResponsePlaceholder,omitempty"`
}

type ShortResponseQuestion struct {
	QuestionBase
	ShortResponsePlaceholder string `json:"shortResponsePlaceholder,omitempty"`
}

type LongResponseQuestion struct {
	QuestionBase
	LongResponsePlaceholder string `json:"longResponsePlaceholder,omitempty"`
}

type UndecidedQuestion struct{ QuestionBase }

func (*MultipleChoiceQuestion) QuestionType() QuestionType      { return TypeMultipleChoice }
func (*MultipleResponseQuestion) QuestionType() QuestionType    { return TypeMultipleResponse }
func (*ScaleQuestion) QuestionType() QuestionType               { return TypeScale }
func (*NumberQuestion) QuestionType() QuestionType              { return TypeNumber }
func (*DateQuestion) QuestionType() QuestionType                { return TypeDate }
func (*TeamMemberSelectionQuestion) QuestionType() QuestionType { return TypeTeamMemberSelection }
func (*NUSNETIDQuestion) QuestionType() QuestionType            { return TypeNUSNETID }
func (*NUSNETEmailQuestion) QuestionType() QuestionType         { return TypeNUSNETEmail }
func (*ShortResponseQuestion) QuestionType() QuestionType       { return TypeShortResponse }
func (*LongResponseQuestion) QuestionType() QuestionType        { return TypeLongResponse }
func (*UndecidedQuestion) QuestionType() QuestionType           { return TypeUndecided }

func (*MultipleChoiceQuestion) isQuestion()      {}
func (*MultipleResponseQuestion) isQuestion()    {}
func (*ScaleQuestion) isQuestion()               {}
func (*NumberQuestion) isQuestion()              {}
func (*DateQuestion) isQuestion()                {}
func (*TeamMemberSelectionQuestion) isQuestion() {}
func (*NUSNETIDQuestion) isQuestion()            {}
func (*NUSNETEmailQuestion) isQuestion()         {}
func (*ShortResponseQuestion) isQuestion()       {}
func (*LongResponseQuestion) isQuestion()        {}
func (*UndecidedQuestion) isQuestion()           {}

// NewQuestion returns an empty variant for the given tag.
func NewQuestion(t QuestionType) (Question, bool) {
	var q Question
	switch t {
	case TypeMultipleChoice:
		q = &MultipleChoiceQuestion{}
	case TypeMultipleResponse:
		q = &MultipleResponseQuestion{}
	case TypeScale:
		q = &ScaleQuestion{}
	case TypeNumber:
		q = &NumberQuestion{}
	case TypeDate:
		q = &DateQuestion{}
	case TypeTeamMemberSelection:
		q = &TeamMemberSelectionQuestion{}
	case TypeNUSNETID:
		q = &NUSNETIDQuestion{}
	case TypeNUSNETEmail:
		q = &NUSNETEmailQuestion{}
	case TypeShortResponse:
		q = &ShortResponseQuestion{}
	case TypeLongResponse:
		q = &LongResponseQuestion{}
	case TypeUndecided:
		q = &UndecidedQuestion{}
	default:
		return nil, false
	}
	q.Base().Type = t
	return q, true
}
