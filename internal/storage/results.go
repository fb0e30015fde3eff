package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schooltest/quizbot/internal/model"
)

// resultBucket is the results.json value stored per user id.
type resultBucket struct {
	Tests []model.Result `json:"tests"`
}

func (s *Store) loadResults() map[string]resultBucket {
	data := map[string]resultBucket{}
	s.readFile(resultsFile, &data)
	return data
}

// findResult locates a result inside loaded data, or returns ErrNotFound.
func findResult(data map[string]resultBucket, userID string, resultID uuid.UUID) (*model.Result, error) {
	bucket, ok := data[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	for i := range bucket.Tests {
		if bucket.Tests[i].ID == resultID {
			return &bucket.Tests[i], nil
		}
	}
	return nil, fmt.Errorf("result %s for user %s: %w", resultID, userID, ErrNotFound)
}

// SaveResult appends a completed attempt under the student's user id,
// assigning an id and timestamp when unset.
func (s *Store) SaveResult(ctx context.Context, userID string, result *model.Result) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	if result.Appeals == nil {
		result.Appeals = []model.Appeal{}
	}
	return s.enqueue(ctx, func() error {
		data := s.loadResults()
		bucket := data[userID]
		bucket.Tests = append(bucket.Tests, *result)
		data[userID] = bucket
		if err := s.writeFile(resultsFile, data); err != nil {
			return err
		}
		s.logger.Info().
			Str("result_id", result.ID.String()).
			Str("user_id", userID).
			Str("test_id", result.TestID.String()).
			Msg("result saved")
		return nil
	})
}

// StudentResults returns every attempt stored for the given user.
func (s *Store) StudentResults(_ context.Context, userID string) ([]model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadResults()[userID].Tests, nil
}

// AllResults returns every stored attempt across all users, with
// UserID filled in from the owning key.
func (s *Store) AllResults(_ context.Context) ([]model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []model.Result
	for userID, bucket := range s.loadResults() {
		for _, r := range bucket.Tests {
			r.UserID = userID
			results = append(results, r)
		}
	}
	return results, nil
}

// ResultByID scans all users for the result with the given id. UserID
// is filled in on the returned record.
func (s *Store) ResultByID(_ context.Context, resultID uuid.UUID) (*model.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for userID, bucket := range s.loadResults() {
		for i := range bucket.Tests {
			if bucket.Tests[i].ID == resultID {
				r := bucket.Tests[i]
				r.UserID = userID
				return &r, nil
			}
		}
	}
	return nil, fmt.Errorf("result %s: %w", resultID, ErrNotFound)
}

// UpdateScore sets the score for one question of a stored result.
func (s *Store) UpdateScore(ctx context.Context, userID string, resultID uuid.UUID, questionIdx int, score float64) error {
	return s.enqueue(ctx, func() error {
		data := s.loadResults()
		r, err := findResult(data, userID, resultID)
		if err != nil {
			return err
		}
		if r.Scores == nil {
			r.Scores = map[string]float64{}
		}
		r.Scores[model.QuestionKey(questionIdx)] = score
		if err := s.writeFile(resultsFile, data); err != nil {
			return err
		}
		s.logger.Info().
			Str("result_id", resultID.String()).
			Int("question_idx", questionIdx).
			Float64("score", score).
			Msg("score updated")
		return nil
	})
}

// UpdateTeacherComment sets the teacher's remark for one question of a
// stored result.
func (s *Store) UpdateTeacherComment(ctx context.Context, userID string, resultID uuid.UUID, questionIdx int, comment string) error {
	return s.enqueue(ctx, func() error {
		data := s.loadResults()
		r, err := findResult(data, userID, resultID)
		if err != nil {
			return err
		}
		if r.TeacherComments == nil {
			r.TeacherComments = map[string]string{}
		}
		r.TeacherComments[model.QuestionKey(questionIdx)] = comment
		if err := s.writeFile(resultsFile, data); err != nil {
			return err
		}
		s.logger.Info().
			Str("result_id", resultID.String()).
			Int("question_idx", questionIdx).
			Msg("teacher comment updated")
		return nil
	})
}
