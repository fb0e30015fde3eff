package model

import (
	"time"

	"github.com/google/uuid"
)

// AppealStatus enumerates the states of a score appeal.
type AppealStatus string

const (
	AppealPending   AppealStatus = "pending"
	AppealResponded AppealStatus = "responded"
)

// AppealWindow is how long after finishing a test a student may still
// file an appeal.
const AppealWindow = 24 * time.Hour

// MaxAppealCommentLen caps the student's appeal text.
const MaxAppealCommentLen = 500

// Appeal is a student's challenge of the score on one question. A
// result carries at most one appeal per question index; re-filing
// replaces the text but keeps the original id.
type Appeal struct {
	ID                uuid.UUID    `json:"id"`
	QuestionIdx       int          `json:"question_idx"`
	StudentComment    string       `json:"student_comment"`
	Status            AppealStatus `json:"status"`
	Timestamp         time.Time    `json:"timestamp"`
	TeacherComment    string       `json:"teacher_comment,omitempty"`
	ResponseTimestamp *time.Time   `json:"response_timestamp,omitempty"`

	// UserID and TestID locate the appeal's result. They are filled in
	// when appeals are loaded in bulk, not stored with the record.
	UserID string    `json:"user_id,omitempty"`
	TestID uuid.UUID `json:"test_id,omitempty"`
}

// SubmitAppealRequest is the payload for filing an appeal over HTTP.
type SubmitAppealRequest struct {
	QuestionIdx    *int   `json:"question_idx" binding:"required,min=0"`
	StudentComment string `json:"student_comment" binding:"required,max=500"`
}

// RespondAppealRequest is the payload for a teacher answering an appeal.
type RespondAppealRequest struct {
	QuestionIdx    *int   `json:"question_idx" binding:"required,min=0"`
	TeacherComment string `json:"teacher_comment" binding:"required,max=1000"`
}
