package model

import (
	"time"

	"gorm.io/datatypes"
)

type Granularity string

const (
	GranularityTeam       Granularity = "team"
	GranularityIndividual Granularity = "individual"
)

// swagger:model Assessment
type Assessment struct {
	UUIDBase
	CourseID               string      `gorm:"index;type:varchar(36)" json:"course"`
	Title                  string      `gorm:"size:255;not null" json:"title"`
	StartDate              time.Time   `json:"startDate"`
	EndDate                *time.Time  `json:"endDate,omitempty"`
	Granularity            Granularity `gorm:"size:20;default:'team'" json:"granularity"`
	MaxMarks               float64     `gorm:"default:0" json:"maxMarks"`
	ScaleToMaxMarks        bool        `gorm:"default:false" json:"scaleToMaxMarks"`
	QuestionsTotalMarks    *float64    `json:"questionsTotalMarks,omitempty"`
	AreSubmissionsEditable bool        `gorm:"not null" json:"areSubmissionsEditable"`
	ReleaseNumber          int         `gorm:"default:0" json:"releaseNumber"`

	QuestionRows []AssessmentQuestion `gorm:"foreignKey:AssessmentID" json:"-"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// AssessmentQuestion 题目行，变体相关字段以 JSON 存放在 Config 中
type AssessmentQuestion struct {
	UUIDBase
	AssessmentID      string         `gorm:"index;type:varchar(36)" json:"assessmentId"`
	Type              QuestionType   `gorm:"size:50;not null" json:"type"`
	Text              string         `gorm:"type:text;not null" json:"text"`
	IsRequired        bool           `gorm:"default:false" json:"isRequired"`
	IsLocked          bool           `gorm:"default:false" json:"isLocked"`
	CustomInstruction *string        `gorm:"type:text" json:"customInstruction,omitempty"`
	Order             int            `gorm:"column:position;default:0" json:"order"`
	Config            datatypes.JSON `json:"config"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

// AssessmentWithQuestions is an assessment with its question rows decoded into variants.
type AssessmentWithQuestions struct {
	Assessment
	Questions []Question `json:"questions"`
}

func (a *AssessmentWithQuestions) FindQuestion(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.Base().ID == id {
			return q, true
		}
	}
	return nil, false
}
