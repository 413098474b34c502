package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Submission
type Submission struct {
	UUIDBase
	AssessmentID            string     `gorm:"index;type:varchar(36)" json:"assessment"`
	UserID                  string     `gorm:"index;type:varchar(36)" json:"user"`
	SubmittedAt             time.Time  `json:"submittedAt"`
	Score                   float64    `gorm:"default:0" json:"score"`
	AdjustedScore           *float64   `json:"adjustedScore,omitempty"`
	SubmissionReleaseNumber int        `gorm:"default:0" json:"submissionReleaseNumber"`
	IsDraft                 bool       `gorm:"default:false" json:"isDraft"`
	Deleted                 bool       `gorm:"index;default:false" json:"deleted"`
	DeletedAt               *time.Time `json:"deletedAt,omitempty"`

	AnswerRows []SubmissionAnswer `gorm:"foreignKey:SubmissionID" json:"-"`
	Answers    []Answer           `gorm:"-" json:"answers"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionAnswer 答案行，按类型存放 JSON 负载
type SubmissionAnswer struct {
	UUIDBase
	SubmissionID string         `gorm:"index;type:varchar(36)" json:"submissionId"`
	QuestionID   string         `gorm:"index;type:varchar(36)" json:"question"`
	Type         AnswerType     `gorm:"size:60;not null" json:"type"`
	Payload      datatypes.JSON `json:"payload"`
	Score        float64        `gorm:"default:0" json:"score"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}
