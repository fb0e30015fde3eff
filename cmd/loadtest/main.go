package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schooltest/quizbot/internal/logger"
	"github.com/schooltest/quizbot/internal/model"
)

// loadtest hammers the API server with a weighted mix of the calls a
// real deployment sees: teachers creating tests, students finishing
// attempts, reviewers browsing results.

type stats struct {
	requests int64
	failures int64
}

type worker struct {
	base      string
	client    *http.Client
	log       zerolog.Logger
	stats     *stats
	rng       *rand.Rand
	teacherID string
	userID    string
	testID    uuid.UUID
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "base URL of the API server")
	workers := flag.Int("workers", 10, "number of concurrent simulated users")
	duration := flag.Duration("duration", 30*time.Second, "how long to run")
	flag.Parse()

	log := logger.Setup("info", "pretty")
	log.Info().
		Str("addr", *addr).
		Int("workers", *workers).
		Dur("duration", *duration).
		Msg("Starting load test")

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	st := &stats{}
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			w := &worker{
				base:      *addr,
				client:    &http.Client{Timeout: 10 * time.Second},
				log:       log,
				stats:     st,
				rng:       rand.New(rand.NewSource(seed)),
				teacherID: uuid.NewString(),
				userID:    uuid.NewString(),
			}
			w.run(ctx)
		}(time.Now().UnixNano() + int64(i))
	}

	wg.Wait()

	elapsed := time.Since(start)
	total := atomic.LoadInt64(&st.requests)
	failed := atomic.LoadInt64(&st.failures)
	log.Info().
		Int64("requests", total).
		Int64("failures", failed).
		Float64("rps", float64(total)/elapsed.Seconds()).
		Msg("Load test finished")
}

func (w *worker) run(ctx context.Context) {
	// Seed one test up front so the read tasks have something to hit.
	w.createTest(ctx)

	for {
		// Weighted task mix: writes are rarer than reads.
		switch w.rng.Intn(10) {
		case 0, 1, 2:
			w.createTest(ctx)
		case 3, 4:
			w.teacherTests(ctx)
		case 5:
			w.getTest(ctx)
		case 6, 7:
			w.scoreAnswer(ctx)
		case 8:
			w.userResults(ctx)
		case 9:
			w.listAppeals(ctx)
		}

		wait := time.Duration(1+w.rng.Intn(4)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (w *worker) createTest(ctx context.Context) {
	req := model.CreateTestRequest{
		TeacherID: w.teacherID,
		Subject:   model.Subjects[w.rng.Intn(len(model.Subjects))],
		Classes:   []string{model.Classes[w.rng.Intn(len(model.Classes))]},
		Name:      fmt.Sprintf("Нагрузочный тест %d", w.rng.Intn(1000)),
		Questions: []model.Question{
			{
				Type:          model.QuestionClosed,
				Text:          "Сколько будет 2+2?",
				CorrectAnswer: "4",
				Options:       []string{"3", "4", "5"},
			},
			{
				Type:          model.QuestionOpen,
				Text:          "Опишите закон Ома.",
				CorrectAnswer: "Сила тока прямо пропорциональна напряжению.",
			},
		},
	}

	var out struct {
		Data struct {
			Test model.Test `json:"test"`
		} `json:"data"`
	}
	if w.do(ctx, http.MethodPost, "/api/v1/tests", req, &out) {
		w.testID = out.Data.Test.ID
	}
}

func (w *worker) teacherTests(ctx context.Context) {
	w.do(ctx, http.MethodGet, "/api/v1/teachers/"+w.teacherID+"/tests", nil, nil)
}

func (w *worker) getTest(ctx context.Context) {
	if w.testID == uuid.Nil {
		return
	}
	w.do(ctx, http.MethodGet, "/api/v1/tests/"+w.testID.String(), nil, nil)
}

func (w *worker) scoreAnswer(ctx context.Context) {
	req := map[string]string{
		"answer":    "Сила тока пропорциональна напряжению.",
		"reference": "Сила тока прямо пропорциональна напряжению.",
		"type":      string(model.QuestionOpen),
	}
	w.do(ctx, http.MethodPost, "/api/v1/score", req, nil)
}

func (w *worker) userResults(ctx context.Context) {
	w.do(ctx, http.MethodGet, "/api/v1/users/"+w.userID+"/results", nil, nil)
}

func (w *worker) listAppeals(ctx context.Context) {
	w.do(ctx, http.MethodGet, "/api/v1/appeals", nil, nil)
}

// do issues one request and records the outcome. Returns true when the
// server answered with a 2xx and out (if given) decoded cleanly.
func (w *worker) do(ctx context.Context, method, path string, body, out any) bool {
	atomic.AddInt64(&w.stats.requests, 1)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			atomic.AddInt64(&w.stats.failures, 1)
			return false
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.base+path, reader)
	if err != nil {
		atomic.AddInt64(&w.stats.failures, 1)
		return false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&w.stats.failures, 1)
			w.log.Warn().Err(err).Str("path", path).Msg("Request failed")
		}
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		atomic.AddInt64(&w.stats.failures, 1)
		w.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("Unexpected status")
		io.Copy(io.Discard, resp.Body)
		return false
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			atomic.AddInt64(&w.stats.failures, 1)
			return false
		}
		return true
	}

	io.Copy(io.Discard, resp.Body)
	return true
}
