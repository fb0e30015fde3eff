package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Result is one completed test attempt. Answers, Scores and the two
// comment maps are keyed by the question index rendered as a decimal
// string, matching how the results file has always stored them.
type Result struct {
	ID          uuid.UUID `json:"id"`
	TestID      uuid.UUID `json:"test_id"`
	StudentInfo string    `json:"student_info"`
	// Answers holds the raw student answer per question index. Skipped
	// questions have no entry.
	Answers map[string]string `json:"answers"`
	// Scores holds the 0..10 score per question index.
	Scores map[string]float64 `json:"scores"`
	// ModelComments holds the automated grader's remark per open
	// question index.
	ModelComments map[string]string `json:"Comment_LLM,omitempty"`
	// TeacherComments holds remarks added by the teacher during review.
	TeacherComments map[string]string `json:"comments,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	Appeals         []Appeal          `json:"appeals"`

	// UserID identifies the student owning this result. It is the key
	// of the results file, not stored inside the record, and is filled
	// in when results are loaded in bulk.
	UserID string `json:"user_id,omitempty"`
}

// QuestionKey renders a question index the way the result maps key it.
func QuestionKey(idx int) string {
	return strconv.Itoa(idx)
}

// Score returns the stored score for a question, or 0 when absent.
func (r *Result) Score(idx int) float64 {
	return r.Scores[QuestionKey(idx)]
}

// Answer returns the stored answer for a question and whether the
// student answered it at all.
func (r *Result) Answer(idx int) (string, bool) {
	a, ok := r.Answers[QuestionKey(idx)]
	return a, ok
}

// AppealFor returns the appeal filed for a question index, if any.
func (r *Result) AppealFor(idx int) *Appeal {
	for i := range r.Appeals {
		if r.Appeals[i].QuestionIdx == idx {
			return &r.Appeals[i]
		}
	}
	return nil
}

// SubmitResultRequest is the payload for recording a finished attempt
// over HTTP.
type SubmitResultRequest struct {
	TestID      uuid.UUID         `json:"test_id" binding:"required"`
	StudentInfo string            `json:"student_info" binding:"required"`
	Answers     map[string]string `json:"answers" binding:"required"`
}

// UpdateScoreRequest is the payload for a teacher re-scoring one
// question of a result.
type UpdateScoreRequest struct {
	QuestionIdx *int    `json:"question_idx" binding:"required,min=0"`
	Score       float64 `json:"score" binding:"min=0,max=10"`
	Comment     string  `json:"comment" binding:"omitempty,max=1000"`
}
