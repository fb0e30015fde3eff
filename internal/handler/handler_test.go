package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/storage"
	"github.com/schooltest/quizbot/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// newTestAPI wires the handlers onto a bare engine with the same
// routes the server registers.
func newTestAPI(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)

	log := zerolog.Nop()
	tests := NewTestHandler(store, log)
	results := NewResultHandler(store, log)
	appeals := NewAppealHandler(store, log)

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/tests", tests.ListTests)
	api.GET("/users/:id/results", results.UserResults)
	api.POST("/results/:id", results.SubmitResult)
	api.PUT("/results/:id/:result_id/score", results.UpdateScore)
	api.GET("/appeals", appeals.ListAppeals)
	api.POST("/appeals/:id/:result_id", appeals.SubmitAppeal)
	api.POST("/appeals/:id/:result_id/response", appeals.RespondAppeal)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return w, envelope
}

func seedAPITest(t *testing.T, store *storage.Store) *model.Test {
	t.Helper()
	test := &model.Test{
		TeacherID: "teacher1",
		Subject:   "Математика",
		Classes:   []string{"7"},
		Name:      "Дроби",
		Questions: []model.Question{
			{Type: model.QuestionClosed, Text: "1/2 + 1/2?", CorrectAnswer: "1", Options: []string{"1", "2"}},
			{Type: model.QuestionOpen, Text: "Что такое дробь?", CorrectAnswer: "Число из числителя и знаменателя"},
		},
	}
	if err := store.SaveTest(context.Background(), test); err != nil {
		t.Fatal(err)
	}
	return test
}

func TestSubmitResultGradesAnswers(t *testing.T) {
	r, store := newTestAPI(t)
	test := seedAPITest(t, store)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/results/u1", gin.H{
		"test_id":      test.ID,
		"student_info": "Иванов Иван, 7А",
		"answers": map[string]string{
			"0": "1",
			"1": "Число из числителя и знаменателя",
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	results, err := store.StudentResults(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("stored results = %d, want 1", len(results))
	}
	got := results[0]
	if got.Scores["0"] != 10 || got.Scores["1"] != 10 {
		t.Errorf("scores = %v", got.Scores)
	}
	if got.StudentInfo != "Иванов Иван, 7А" {
		t.Errorf("student info = %q", got.StudentInfo)
	}
}

func TestSubmitResultUnknownTest(t *testing.T) {
	r, _ := newTestAPI(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/results/u1", gin.H{
		"test_id":      uuid.New(),
		"student_info": "Иванов Иван, 7А",
		"answers":      map[string]string{},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSubmitResultValidation(t *testing.T) {
	r, _ := newTestAPI(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/results/u1", gin.H{
		"student_info": "Иванов Иван, 7А",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSubmitAppealLifecycle(t *testing.T) {
	r, store := newTestAPI(t)
	test := seedAPITest(t, store)
	ctx := context.Background()

	result := &model.Result{
		TestID:      test.ID,
		StudentInfo: "Иванов Иван, 7А",
		Scores:      map[string]float64{"0": 0},
	}
	if err := store.SaveResult(ctx, "u1", result); err != nil {
		t.Fatal(err)
	}
	path := "/api/v1/appeals/u1/" + result.ID.String()

	w, _ := doJSON(t, r, http.MethodPost, path, gin.H{
		"question_idx":    0,
		"student_comment": "Не согласен с оценкой",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	stored, err := store.ResultByID(ctx, result.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Appeals) != 1 || stored.Appeals[0].Status != model.AppealPending {
		t.Fatalf("appeals = %+v", stored.Appeals)
	}
	firstID := stored.Appeals[0].ID

	// Re-filing the same question keeps a single appeal with the
	// original id.
	w, _ = doJSON(t, r, http.MethodPost, path, gin.H{
		"question_idx":    0,
		"student_comment": "Уточнение к апелляции",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("refile status = %d", w.Code)
	}
	stored, err = store.ResultByID(ctx, result.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Appeals) != 1 || stored.Appeals[0].ID != firstID {
		t.Fatalf("refiled appeals = %+v", stored.Appeals)
	}
	if stored.Appeals[0].StudentComment != "Уточнение к апелляции" {
		t.Errorf("comment = %q", stored.Appeals[0].StudentComment)
	}

	// The teacher answers it.
	w, _ = doJSON(t, r, http.MethodPost, path+"/response", gin.H{
		"question_idx":    0,
		"teacher_comment": "Оценка выставлена верно",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("respond status = %d, body %s", w.Code, w.Body.String())
	}
	stored, err = store.ResultByID(ctx, result.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Appeals[0].Status != model.AppealResponded {
		t.Errorf("status = %q", stored.Appeals[0].Status)
	}

	// Responding where no appeal exists is a 404.
	w, _ = doJSON(t, r, http.MethodPost, path+"/response", gin.H{
		"question_idx":    1,
		"teacher_comment": "Оценка выставлена верно",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("respond without appeal status = %d, want 404", w.Code)
	}
}

func TestSubmitAppealWindowClosed(t *testing.T) {
	r, store := newTestAPI(t)
	test := seedAPITest(t, store)

	result := &model.Result{
		TestID:      test.ID,
		StudentInfo: "Иванов Иван, 7А",
		Timestamp:   time.Now().Add(-model.AppealWindow - time.Hour),
	}
	if err := store.SaveResult(context.Background(), "u1", result); err != nil {
		t.Fatal(err)
	}

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/appeals/u1/"+result.ID.String(), gin.H{
		"question_idx":    0,
		"student_comment": "Не согласен с оценкой",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	stored, err := store.ResultByID(context.Background(), result.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Appeals) != 0 {
		t.Fatalf("appeals = %+v, want none", stored.Appeals)
	}
}

func TestSubmitAppealForeignResult(t *testing.T) {
	r, store := newTestAPI(t)
	test := seedAPITest(t, store)

	result := &model.Result{TestID: test.ID, StudentInfo: "Иванов Иван, 7А"}
	if err := store.SaveResult(context.Background(), "u1", result); err != nil {
		t.Fatal(err)
	}

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/appeals/u2/"+result.ID.String(), gin.H{
		"question_idx":    0,
		"student_comment": "Не согласен с оценкой",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestUpdateScoreEndpoint(t *testing.T) {
	r, store := newTestAPI(t)
	test := seedAPITest(t, store)
	ctx := context.Background()

	result := &model.Result{
		TestID:      test.ID,
		StudentInfo: "Иванов Иван, 7А",
		Scores:      map[string]float64{"0": 10, "1": 4},
	}
	if err := store.SaveResult(ctx, "u1", result); err != nil {
		t.Fatal(err)
	}

	w, _ := doJSON(t, r, http.MethodPut, "/api/v1/results/u1/"+result.ID.String()+"/score", gin.H{
		"question_idx": 1,
		"score":        7.5,
		"comment":      "Ответ раскрыт лучше, чем оценила модель",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	stored, err := store.ResultByID(ctx, result.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Score(1) != 7.5 {
		t.Errorf("score = %g, want 7.5", stored.Score(1))
	}
	if stored.TeacherComments[model.QuestionKey(1)] != "Ответ раскрыт лучше, чем оценила модель" {
		t.Errorf("comment = %q", stored.TeacherComments[model.QuestionKey(1)])
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/results/u1/"+uuid.NewString()+"/score", gin.H{
		"question_idx": 0,
		"score":        5.0,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown result status = %d, want 404", w.Code)
	}
}

func TestListTestsPagination(t *testing.T) {
	r, store := newTestAPI(t)
	for i := 0; i < 12; i++ {
		seedAPITest(t, store)
	}

	w, envelope := doJSON(t, r, http.MethodGet, "/api/v1/tests?page=3&per_page=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	}
	if err := json.Unmarshal(envelope["pagination"], &pagination); err != nil {
		t.Fatalf("pagination block missing: %s", w.Body.String())
	}
	if pagination.TotalItems != 12 || pagination.TotalPages != 3 || pagination.Page != 3 {
		t.Errorf("pagination = %+v", pagination)
	}

	var data struct {
		Tests []model.Test `json:"tests"`
	}
	if err := json.Unmarshal(envelope["data"], &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Tests) != 2 {
		t.Errorf("page 3 size = %d, want 2", len(data.Tests))
	}
}
