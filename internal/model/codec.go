package model

import (
	"encoding/json"
	"fmt"
)

// DecodeQuestion turns a stored question row into its typed variant.
func DecodeQuestion(row AssessmentQuestion) (Question, error) {
	q, ok := NewQuestion(row.Type)
	if !ok {
		return nil, fmt.Errorf("question %s: unknown type %q", row.ID, row.Type)
	}
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, q); err != nil {
			return nil, fmt.Errorf("question %s: decode config: %w", row.ID, err)
		}
	}
	b := q.Base()
	b.ID = row.ID
	b.Type = row.Type
	b.Text = row.Text
	b.IsRequired = row.IsRequired
	b.IsLocked = row.IsLocked
	b.CustomInstruction = row.CustomInstruction
	return q, nil
}

// DecodeQuestionJSON decodes a question definition from its wire shape, dispatching on "type".
func DecodeQuestionJSON(raw []byte) (Question, error) {
	var head struct {
		Type QuestionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("invalid question: %w", err)
	}
	q, ok := NewQuestion(head.Type)
	if !ok {
		return nil, fmt.Errorf("unknown question type %q", head.Type)
	}
	if err := json.Unmarshal(raw, q); err != nil {
		return nil, fmt.Errorf("invalid %s question: %w", head.Type, err)
	}
	return q, nil
}

// EncodeQuestion is the inverse of DecodeQuestion.
func EncodeQuestion(assessmentID string, order int, q Question) (AssessmentQuestion, error) {
	q.Base().Type = q.QuestionType()
	cfg, err := json.Marshal(q)
	if err != nil {
		return AssessmentQuestion{}, err
	}
	b := q.Base()
	return AssessmentQuestion{
		UUIDBase:          UUIDBase{ID: b.ID},
		AssessmentID:      assessmentID,
		Type:              q.QuestionType(),
		Text:              b.Text,
		IsRequired:        b.IsRequired,
		IsLocked:          b.IsLocked,
		CustomInstruction: b.CustomInstruction,
		Order:             order,
		Config:            cfg,
	}, nil
}

// DecodeAnswerJSON decodes one answer from its wire shape, dispatching on "type".
// Client supplied id and score are dropped.
func DecodeAnswerJSON(raw []byte) (Answer, error) {
	var head struct {
		Type AnswerType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("invalid answer: %w", err)
	}
	a, ok := NewAnswer(head.Type)
	if !ok {
		return nil, fmt.Errorf("unknown answer type %q", head.Type)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
	}
	b := a.Base()
	b.ID = ""
	b.Score = 0
	b.Type = head.Type
	return a, nil
}

// EncodeAnswer builds the row persisted for an answer of the given submission.
func EncodeAnswer(submissionID string, a Answer) (SubmissionAnswer, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return SubmissionAnswer{}, err
	}
	b := a.Base()
	return SubmissionAnswer{
		UUIDBase:     UUIDBase{ID: b.ID},
		SubmissionID: submissionID,
		QuestionID:   b.QuestionID,
		Type:         a.AnswerType(),
		Payload:      payload,
		Score:        b.Score,
	}, nil
}

// DecodeAnswerRow turns a stored answer row back into its typed variant.
func DecodeAnswerRow(row SubmissionAnswer) (Answer, error) {
	a, ok := NewAnswer(row.Type)
	if !ok {
		return nil, fmt.Errorf("answer %s: unknown type %q", row.ID, row.Type)
	}
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, a); err != nil {
			return nil, fmt.Errorf("answer %s: decode payload: %w", row.ID, err)
		}
	}
	b := a.Base()
	b.ID = row.ID
	b.QuestionID = row.QuestionID
	b.Type = row.Type
	b.Score = row.Score
	return a, nil
}
