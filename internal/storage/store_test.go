package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func sampleTest(teacherID string) *model.Test {
	return &model.Test{
		TeacherID: teacherID,
		Subject:   "Математика",
		Classes:   []string{"7"},
		Name:      "Дроби",
		Questions: []model.Question{
			{Type: model.QuestionClosed, Text: "1/2 + 1/2?", CorrectAnswer: "1", Options: []string{"1", "2"}},
		},
	}
}

func TestSaveTestAssignsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	test := sampleTest("t1")
	if err := s.SaveTest(ctx, test); err != nil {
		t.Fatalf("SaveTest: %v", err)
	}
	if test.ID == uuid.Nil {
		t.Error("SaveTest must assign an id")
	}
	if test.CreatedAt.IsZero() {
		t.Error("SaveTest must assign a creation time")
	}

	got, err := s.TestByID(ctx, test.ID)
	if err != nil {
		t.Fatalf("TestByID: %v", err)
	}
	if got.Name != "Дроби" || got.TeacherID != "t1" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestTeacherTestsIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveTest(ctx, sampleTest("t1")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTest(ctx, sampleTest("t1")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTest(ctx, sampleTest("t2")); err != nil {
		t.Fatal(err)
	}

	own, err := s.TeacherTests(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 2 {
		t.Errorf("t1 has %d tests, want 2", len(own))
	}

	all, err := s.AllTests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("AllTests returned %d, want 3", len(all))
	}
}

func TestTestByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.TestByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func saveSampleResult(t *testing.T, s *Store, userID string) *model.Result {
	t.Helper()
	r := &model.Result{
		TestID:      uuid.New(),
		StudentInfo: "Иванов Иван, 7А",
		Answers:     map[string]string{"0": "1"},
		Scores:      map[string]float64{"0": 10},
	}
	if err := s.SaveResult(context.Background(), userID, r); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	return r
}

func TestResultRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := saveSampleResult(t, s, "student1")
	if r.ID == uuid.Nil {
		t.Fatal("SaveResult must assign an id")
	}

	got, err := s.ResultByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("ResultByID: %v", err)
	}
	if got.UserID != "student1" {
		t.Errorf("UserID = %q, want student1", got.UserID)
	}
	if got.Scores["0"] != 10 {
		t.Errorf("Scores = %v", got.Scores)
	}

	mine, err := s.StudentResults(ctx, "student1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 {
		t.Fatalf("StudentResults returned %d, want 1", len(mine))
	}
}

func TestUpdateScoreAndComment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := saveSampleResult(t, s, "student1")

	if err := s.UpdateScore(ctx, "student1", r.ID, 0, 7.5); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	if err := s.UpdateTeacherComment(ctx, "student1", r.ID, 0, "Почти верно"); err != nil {
		t.Fatalf("UpdateTeacherComment: %v", err)
	}

	got, err := s.ResultByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scores["0"] != 7.5 {
		t.Errorf("score = %v, want 7.5", got.Scores["0"])
	}
	if got.TeacherComments["0"] != "Почти верно" {
		t.Errorf("comment = %q", got.TeacherComments["0"])
	}

	if err := s.UpdateScore(ctx, "student1", uuid.New(), 0, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown result err = %v, want ErrNotFound", err)
	}
}

func TestSaveAppealUpsertKeepsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := saveSampleResult(t, s, "student1")

	first := &model.Appeal{QuestionIdx: 0, StudentComment: "Не согласен"}
	if err := s.SaveAppeal(ctx, "student1", r.ID, first); err != nil {
		t.Fatalf("SaveAppeal: %v", err)
	}
	if first.ID == uuid.Nil || first.Status != model.AppealPending {
		t.Fatalf("appeal missing defaults: %+v", first)
	}

	// Re-filing on the same question replaces the text but keeps the id.
	second := &model.Appeal{QuestionIdx: 0, StudentComment: "Всё ещё не согласен"}
	if err := s.SaveAppeal(ctx, "student1", r.ID, second); err != nil {
		t.Fatalf("SaveAppeal replace: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("replacement id = %s, want original %s", second.ID, first.ID)
	}

	got, err := s.ResultByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Appeals) != 1 {
		t.Fatalf("appeals = %d, want 1", len(got.Appeals))
	}
	if got.Appeals[0].StudentComment != "Всё ещё не согласен" {
		t.Errorf("comment = %q", got.Appeals[0].StudentComment)
	}
}

func TestRespondAppeal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := saveSampleResult(t, s, "student1")

	if err := s.RespondAppeal(ctx, "student1", r.ID, 0, "ответ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("responding without an appeal: err = %v, want ErrNotFound", err)
	}

	appeal := &model.Appeal{QuestionIdx: 0, StudentComment: "Не согласен"}
	if err := s.SaveAppeal(ctx, "student1", r.ID, appeal); err != nil {
		t.Fatal(err)
	}
	if err := s.RespondAppeal(ctx, "student1", r.ID, 0, "Оценка пересмотрена"); err != nil {
		t.Fatalf("RespondAppeal: %v", err)
	}

	appeals, err := s.AllAppeals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(appeals) != 1 {
		t.Fatalf("appeals = %d, want 1", len(appeals))
	}
	a := appeals[0]
	if a.Status != model.AppealResponded {
		t.Errorf("status = %q", a.Status)
	}
	if a.TeacherComment != "Оценка пересмотрена" || a.ResponseTimestamp == nil {
		t.Errorf("response not recorded: %+v", a)
	}
	if a.UserID != "student1" || a.TestID != r.TestID {
		t.Errorf("appeal not denormalized: %+v", a)
	}
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, testsFile), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	tests, err := s.AllTests(context.Background())
	if err != nil {
		t.Fatalf("AllTests: %v", err)
	}
	if len(tests) != 0 {
		t.Errorf("corrupt file should read as empty, got %d tests", len(tests))
	}

	// Writes must still succeed and replace the corrupt file.
	if err := s.SaveTest(context.Background(), sampleTest("t1")); err != nil {
		t.Fatalf("SaveTest after corruption: %v", err)
	}
}

func TestStoresShareDataDir(t *testing.T) {
	dir := t.TempDir()

	writer, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	reader, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	test := sampleTest("t1")
	if err := writer.SaveTest(context.Background(), test); err != nil {
		t.Fatal(err)
	}

	// The second store reads the file on every call, so it sees the
	// write without any cache invalidation.
	got, err := reader.TestByID(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("TestByID via second store: %v", err)
	}
	if got.Name != test.Name {
		t.Errorf("name = %q, want %q", got.Name, test.Name)
	}
}
