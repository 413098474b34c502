package model

type UserRole string

const (
	Student UserRole = "student"
	TA      UserRole = "teaching assistant"
	Faculty UserRole = "faculty member"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	UUIDBase
	Name       string `gorm:"size:100;not null" json:"name"`
	Email      string `gorm:"size:100;index" json:"email,omitempty"`
	Identifier string `gorm:"size:50;index" json:"identifier,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// swagger:model Account
type Account struct {
	UUIDBase
	UserID     string   `gorm:"uniqueIndex;type:varchar(36)" json:"user"`
	Email      string   `gorm:"size:100;unique;not null" json:"email"`
	Role       UserRole `gorm:"size:30;default:'student'" json:"role"`
	IsApproved bool     `gorm:"default:false" json:"isApproved"`
}

func (Account) TableName() string {
	return "accounts"
}

// CourseFaculty 课程教师名册（只读，由课程管理模块维护）
type CourseFaculty struct {
	CourseID string `gorm:"primaryKey;type:varchar(36)" json:"course"`
	UserID   string `gorm:"primaryKey;type:varchar(36)" json:"user"`
}

func (CourseFaculty) TableName() string {
	return "course_faculty"
}
