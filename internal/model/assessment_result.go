package model

// swagger:model AssessmentResult
type AssessmentResult struct {
	UUIDBase
	AssessmentID string      `gorm:"uniqueIndex:idx_result_assessment_student;type:varchar(36)" json:"assessment"`
	StudentID    string      `gorm:"uniqueIndex:idx_result_assessment_student;type:varchar(36)" json:"student"`
	AverageScore float64     `gorm:"default:0" json:"averageScore"`
	Marks        []MarkEntry `gorm:"foreignKey:AssessmentResultID" json:"marks"`
}

func (AssessmentResult) TableName() string {
	return "assessment_results"
}

// MarkEntry 一位评分者对一名学生的一次评分
type MarkEntry struct {
	UUIDBase
	AssessmentResultID string  `gorm:"uniqueIndex:idx_mark_result_submission;type:varchar(36)" json:"-"`
	SubmissionID       string  `gorm:"uniqueIndex:idx_mark_result_submission;type:varchar(36)" json:"submission"`
	MarkerID           string  `gorm:"index;type:varchar(36)" json:"marker"`
	Score              float64 `gorm:"default:0" json:"score"`
}

func (MarkEntry) TableName() string {
	return "mark_entries"
}
