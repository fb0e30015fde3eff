package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	// QuestionClosed is a multiple-choice question checked by exact match.
	QuestionClosed QuestionType = "test"
	// QuestionOpen is a free-text question scored by answer similarity.
	QuestionOpen QuestionType = "open"
)

// MaxQuestions caps how many questions a single test may carry.
const MaxQuestions = 20

// Subjects lists the subjects a teacher can pick when authoring a test.
var Subjects = []string{"Математика", "Физика", "История", "Информатика"}

// Classes lists the school classes a test can be assigned to.
var Classes = []string{"5", "6", "7", "8", "9", "10", "11"}

// Question is a single authored question inside a test. For closed
// questions Options holds every choice shown to the student, with the
// correct answer appended last before shuffling on display. For open
// questions Options is empty and CheckComment optionally carries the
// author's grading hint.
type Question struct {
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	CorrectAnswer string       `json:"correct_answer"`
	Options       []string     `json:"options,omitempty"`
	CheckComment  string       `json:"check_comment,omitempty"`
}

// Test is a teacher-authored test assigned to one or more classes.
type Test struct {
	ID            uuid.UUID  `json:"id"`
	TeacherID     string     `json:"teacher_id"`
	Subject       string     `json:"subject"`
	Classes       []string   `json:"classes"`
	Name          string     `json:"name"`
	Questions     []Question `json:"questions"`
	GlobalComment string     `json:"global_comment,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CreateTestRequest is the payload for creating a test over HTTP.
type CreateTestRequest struct {
	TeacherID     string     `json:"teacher_id" binding:"required"`
	Subject       string     `json:"subject" binding:"required"`
	Classes       []string   `json:"classes" binding:"required,min=1,dive,oneof=5 6 7 8 9 10 11"`
	Name          string     `json:"name" binding:"required,max=100"`
	Questions     []Question `json:"questions" binding:"required,min=1,max=20"`
	GlobalComment string     `json:"global_comment" binding:"omitempty"`
}
