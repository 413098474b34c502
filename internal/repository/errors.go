package repository

import "errors"

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrResultNotFound     = errors.New("assessment result not found")
	ErrMarkEntryNotFound  = errors.New("mark entry not found")
)
