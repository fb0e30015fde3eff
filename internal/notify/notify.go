package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
)

// Kind names what a grading change touched.
type Kind string

const (
	KindScore   Kind = "score"
	KindComment Kind = "comment"
	KindAppeal  Kind = "appeal"
)

// Change is one grading change a student should hear about. Changes
// queue up per test while the teacher reviews it and are flushed as
// messages when the teacher leaves that test's review context.
type Change struct {
	ID           uuid.UUID
	Kind         Kind
	StudentID    string
	TestID       uuid.UUID
	TestName     string
	QuestionIdx  int
	QuestionText string
	Score        float64
	Comment      string
}

// Notifier queues grading changes per reviewing teacher and test and
// delivers them to students on flush. Changes whose student could not
// be resolved are counted rather than silently dropped.
type Notifier struct {
	sender *chat.Sender
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]map[uuid.UUID][]Change

	lost atomic.Int64
}

// New returns a notifier delivering through sender.
func New(sender *chat.Sender, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		logger:  logger.With().Str("component", "notify").Logger(),
		pending: map[string]map[uuid.UUID][]Change{},
	}
}

// Add queues a change under the reviewing teacher and the change's
// test. Changes without a student are not deliverable and are counted
// as lost instead.
func (n *Notifier) Add(teacherID string, change Change) {
	if change.StudentID == "" {
		n.RecordLost(change)
		return
	}
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	byTest, ok := n.pending[teacherID]
	if !ok {
		byTest = map[uuid.UUID][]Change{}
		n.pending[teacherID] = byTest
	}
	byTest[change.TestID] = append(byTest[change.TestID], change)
	n.logger.Debug().
		Str("teacher_id", teacherID).
		Str("test_id", change.TestID.String()).
		Str("kind", string(change.Kind)).
		Msg("change queued")
}

// FlushTest sends every queued change for one test of one teacher and
// clears the queue. Delivery failures are logged per change; the queue
// is cleared regardless so a broken chat cannot wedge the review flow.
func (n *Notifier) FlushTest(ctx context.Context, teacherID string, testID uuid.UUID) {
	n.mu.Lock()
	byTest := n.pending[teacherID]
	changes := byTest[testID]
	delete(byTest, testID)
	n.mu.Unlock()

	for _, c := range changes {
		if _, err := n.sender.Send(ctx, c.StudentID, formatChange(c), nil); err != nil {
			n.logger.Error().Err(err).
				Str("student_id", c.StudentID).
				Str("kind", string(c.Kind)).
				Msg("failed to deliver notification")
			continue
		}
		n.logger.Info().
			Str("student_id", c.StudentID).
			Str("kind", string(c.Kind)).
			Msg("notification sent")
	}
}

// RecordLost counts a change that could not be attributed to any
// student, so operators can see notifications going missing.
func (n *Notifier) RecordLost(change Change) {
	n.lost.Add(1)
	n.logger.Warn().
		Str("test_id", change.TestID.String()).
		Int("question_idx", change.QuestionIdx).
		Str("kind", string(change.Kind)).
		Msg("notification lost, student could not be resolved")
}

// Lost returns how many changes were dropped for lack of a student.
func (n *Notifier) Lost() int64 {
	return n.lost.Load()
}

// Pending returns how many changes are queued for one teacher's test.
func (n *Notifier) Pending(teacherID string, testID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending[teacherID][testID])
}

func formatChange(c Change) string {
	var action string
	switch c.Kind {
	case KindScore:
		action = "Изменена оценка"
	case KindComment:
		action = "Добавлен/изменён комментарий"
	default:
		action = "Получен ответ на апелляцию"
	}
	scoreLine := fmt.Sprintf("Оценка: %g", c.Score)
	if c.Kind == KindScore {
		scoreLine = fmt.Sprintf("Новая оценка: %g", c.Score)
	}
	return fmt.Sprintf(
		"%s по тесту '%s', вопрос #%d: %s\n%s\nКомментарий преподавателя: %s",
		action, c.TestName, c.QuestionIdx, c.QuestionText, scoreLine, c.Comment,
	)
}
