//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schooltest/quizbot/internal/model"
)

const defaultBaseURL = "http://localhost:8080/api/v1"

var (
	baseURL   string
	teacherID string
	testID    string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// Every run works against its own teacher id so reruns do not see
	// each other's tests.
	teacherID = uuid.NewString()

	code := m.Run()
	os.Exit(code)
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Create a test
	t.Run("CreateTest", func(t *testing.T) {
		reqBody := model.CreateTestRequest{
			TeacherID: teacherID,
			Subject:   "Математика",
			Classes:   []string{"7"},
			Name:      "E2E Дроби",
			Questions: []model.Question{
				{Type: model.QuestionClosed, Text: "1/2 + 1/2?", CorrectAnswer: "1", Options: []string{"1", "2"}},
				{Type: model.QuestionOpen, Text: "Что такое дробь?", CorrectAnswer: "Число из числителя и знаменателя"},
			},
		}
		resp, err := post("/tests", reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Test model.Test `json:"test"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Test.ID == uuid.Nil {
			t.Fatal("test id missing")
		}
		testID = body.Data.Test.ID.String()
		t.Logf("Test created: %s", testID)
	})

	// Step 2: Reject an invalid test
	t.Run("CreateTestValidation", func(t *testing.T) {
		reqBody := model.CreateTestRequest{
			TeacherID: teacherID,
			Subject:   "Математика",
			Classes:   []string{"13"}, // Not a valid class
			Name:      "Кривой тест",
			Questions: []model.Question{
				{Type: model.QuestionOpen, Text: "q", CorrectAnswer: "a"},
			},
		}
		resp, err := post("/tests", reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 3: Fetch it back by id
	t.Run("GetTest", func(t *testing.T) {
		resp, err := get("/tests/" + testID)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Test model.Test `json:"test"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Test.Name != "E2E Дроби" {
			t.Errorf("name = %q", body.Data.Test.Name)
		}
		if len(body.Data.Test.Questions) != 2 {
			t.Errorf("questions = %d, want 2", len(body.Data.Test.Questions))
		}
	})

	// Step 4: The teacher's list includes it
	t.Run("TeacherTests", func(t *testing.T) {
		resp, err := get("/teachers/" + teacherID + "/tests")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Tests []model.Test `json:"tests"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if len(body.Data.Tests) != 1 {
			t.Errorf("teacher has %d tests, want 1", len(body.Data.Tests))
		}
	})

	// Step 5: Unknown test id yields 404
	t.Run("GetMissingTest", func(t *testing.T) {
		resp, err := get("/tests/" + uuid.NewString())
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 6: Score an open answer through the grader
	t.Run("ScoreOpenAnswer", func(t *testing.T) {
		reqBody := map[string]string{
			"answer":    "Число из числителя и знаменателя",
			"reference": "Число из числителя и знаменателя",
			"type":      string(model.QuestionOpen),
		}
		resp, err := post("/score", reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Score   int    `json:"score"`
				Comment string `json:"comment"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Score != 10 {
			t.Errorf("score = %d, want 10", body.Data.Score)
		}
		if body.Data.Comment == "" {
			t.Error("comment missing")
		}
	})

	// Step 7: Unknown question type is rejected
	t.Run("ScoreUnknownType", func(t *testing.T) {
		reqBody := map[string]string{
			"answer":    "a",
			"reference": "a",
			"type":      "riddle",
		}
		resp, err := post("/score", reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 8: Submit a finished attempt; the server grades it
	studentID := uuid.NewString()
	var resultID string
	t.Run("SubmitResult", func(t *testing.T) {
		reqBody := model.SubmitResultRequest{
			TestID:      uuid.MustParse(testID),
			StudentInfo: "Иванов Иван, 7А",
			Answers: map[string]string{
				"0": "1",
				"1": "Число из числителя и знаменателя",
			},
		}
		resp, err := post("/results/"+studentID, reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Result model.Result `json:"result"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Result.ID == uuid.Nil {
			t.Fatal("result id missing")
		}
		if body.Data.Result.Scores["0"] != 10 || body.Data.Result.Scores["1"] != 10 {
			t.Errorf("scores = %v", body.Data.Result.Scores)
		}
		resultID = body.Data.Result.ID.String()
	})

	// Step 9: File an appeal on the graded result
	t.Run("SubmitAppeal", func(t *testing.T) {
		idx := 1
		reqBody := model.SubmitAppealRequest{
			QuestionIdx:    &idx,
			StudentComment: "Не согласен с оценкой",
		}
		resp, err := post("/appeals/"+studentID+"/"+resultID, reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 10: Appealing a result that is not the student's is a 404
	t.Run("SubmitAppealMissingResult", func(t *testing.T) {
		idx := 0
		reqBody := model.SubmitAppealRequest{
			QuestionIdx:    &idx,
			StudentComment: "Не согласен с оценкой",
		}
		resp, err := post("/appeals/"+uuid.NewString()+"/"+resultID, reqBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 11: The teacher re-scores and answers the appeal
	t.Run("UpdateScoreAndRespond", func(t *testing.T) {
		idx := 1
		scoreBody := model.UpdateScoreRequest{
			QuestionIdx: &idx,
			Score:       8,
			Comment:     "Засчитано после апелляции",
		}
		resp, err := put("/results/"+studentID+"/"+resultID+"/score", scoreBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("score status %d", resp.StatusCode)
		}

		respondBody := model.RespondAppealRequest{
			QuestionIdx:    &idx,
			TeacherComment: "Оценка пересмотрена",
		}
		resp, err = post("/appeals/"+studentID+"/"+resultID+"/response", respondBody)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("respond status %d: %s", resp.StatusCode, readBody(resp))
		}

		resp2, err := get("/users/" + studentID + "/results")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp2.Body.Close()
		var body struct {
			Data struct {
				Results []model.Result `json:"results"`
			} `json:"data"`
		}
		decodeJSON(t, resp2, &body)
		if len(body.Data.Results) != 1 {
			t.Fatalf("results = %d, want 1", len(body.Data.Results))
		}
		r := body.Data.Results[0]
		if r.Scores["1"] != 8 {
			t.Errorf("score after update = %v", r.Scores["1"])
		}
		if len(r.Appeals) != 1 || r.Appeals[0].Status != model.AppealResponded {
			t.Errorf("appeals = %+v", r.Appeals)
		}
	})

	// Step 12: A fresh student has no results
	t.Run("EmptyUserResults", func(t *testing.T) {
		resp, err := get("/users/" + uuid.NewString() + "/results")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Results []model.Result `json:"results"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if len(body.Data.Results) != 0 {
			t.Errorf("results = %d, want 0", len(body.Data.Results))
		}
	})

	// Step 13: Appeals endpoint answers, filtered or not
	t.Run("ListAppeals", func(t *testing.T) {
		resp, err := get("/appeals?status=pending")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})
}

// Helpers

func post(path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func put(path string, body interface{}) (*http.Response, error) {
	jsonBytes, _ := json.Marshal(body)
	req, err := http.NewRequest("PUT", baseURL+path, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
