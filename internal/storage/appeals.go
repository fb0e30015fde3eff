package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schooltest/quizbot/internal/model"
)

// SaveAppeal records a student's appeal on one question of a result.
// A result keeps at most one appeal per question index: re-filing
// replaces the text and resets the status but preserves the original
// appeal id.
func (s *Store) SaveAppeal(ctx context.Context, userID string, resultID uuid.UUID, appeal *model.Appeal) error {
	if appeal.ID == uuid.Nil {
		appeal.ID = uuid.New()
	}
	if appeal.Timestamp.IsZero() {
		appeal.Timestamp = time.Now()
	}
	if appeal.Status == "" {
		appeal.Status = model.AppealPending
	}
	return s.enqueue(ctx, func() error {
		data := s.loadResults()
		r, err := findResult(data, userID, resultID)
		if err != nil {
			return err
		}
		replaced := false
		for i := range r.Appeals {
			if r.Appeals[i].QuestionIdx == appeal.QuestionIdx {
				appeal.ID = r.Appeals[i].ID
				r.Appeals[i] = *appeal
				replaced = true
				break
			}
		}
		if !replaced {
			r.Appeals = append(r.Appeals, *appeal)
		}
		if err := s.writeFile(resultsFile, data); err != nil {
			return err
		}
		s.logger.Info().
			Str("appeal_id", appeal.ID.String()).
			Str("result_id", resultID.String()).
			Int("question_idx", appeal.QuestionIdx).
			Bool("replaced", replaced).
			Msg("appeal saved")
		return nil
	})
}

// RespondAppeal records the teacher's answer on an existing appeal and
// marks it responded.
func (s *Store) RespondAppeal(ctx context.Context, userID string, resultID uuid.UUID, questionIdx int, teacherComment string) error {
	return s.enqueue(ctx, func() error {
		data := s.loadResults()
		r, err := findResult(data, userID, resultID)
		if err != nil {
			return err
		}
		appeal := r.AppealFor(questionIdx)
		if appeal == nil {
			return ErrNotFound
		}
		now := time.Now()
		appeal.Status = model.AppealResponded
		appeal.TeacherComment = teacherComment
		appeal.ResponseTimestamp = &now
		if err := s.writeFile(resultsFile, data); err != nil {
			return err
		}
		s.logger.Info().
			Str("appeal_id", appeal.ID.String()).
			Str("result_id", resultID.String()).
			Int("question_idx", questionIdx).
			Msg("appeal responded")
		return nil
	})
}

// AllAppeals returns every appeal across all users and results, with
// UserID and TestID filled in from the owning records.
func (s *Store) AllAppeals(_ context.Context) ([]model.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var appeals []model.Appeal
	for userID, bucket := range s.loadResults() {
		for _, r := range bucket.Tests {
			for _, a := range r.Appeals {
				a.UserID = userID
				a.TestID = r.TestID
				appeals = append(appeals, a)
			}
		}
	}
	return appeals, nil
}
