package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schooltest/quizbot/internal/model"
)

// testBucket is the tests.json value stored per teacher id.
type testBucket struct {
	Tests []model.Test `json:"tests"`
}

func (s *Store) loadTests() map[string]testBucket {
	data := map[string]testBucket{}
	s.readFile(testsFile, &data)
	return data
}

// SaveTest appends a test under its teacher id, assigning an id and
// creation time when they are unset.
func (s *Store) SaveTest(ctx context.Context, test *model.Test) error {
	if test.ID == uuid.Nil {
		test.ID = uuid.New()
	}
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now()
	}
	return s.enqueue(ctx, func() error {
		data := s.loadTests()
		bucket := data[test.TeacherID]
		bucket.Tests = append(bucket.Tests, *test)
		data[test.TeacherID] = bucket
		if err := s.writeFile(testsFile, data); err != nil {
			return err
		}
		s.logger.Info().
			Str("test_id", test.ID.String()).
			Str("teacher_id", test.TeacherID).
			Msg("test saved")
		return nil
	})
}

// TeacherTests returns every test authored by the given teacher, in
// creation order.
func (s *Store) TeacherTests(_ context.Context, teacherID string) ([]model.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadTests()[teacherID].Tests, nil
}

// TestByID scans all teachers' tests for the given id.
func (s *Store) TestByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bucket := range s.loadTests() {
		for i := range bucket.Tests {
			if bucket.Tests[i].ID == id {
				t := bucket.Tests[i]
				return &t, nil
			}
		}
	}
	return nil, fmt.Errorf("test %s: %w", id, ErrNotFound)
}

// AllTests returns every stored test across all teachers.
func (s *Store) AllTests(_ context.Context) ([]model.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tests []model.Test
	for _, bucket := range s.loadTests() {
		tests = append(tests, bucket.Tests...)
	}
	return tests, nil
}
