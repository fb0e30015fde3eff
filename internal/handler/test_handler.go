package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/response"
	"github.com/schooltest/quizbot/internal/storage"
	"github.com/schooltest/quizbot/internal/validator"
)

// TestHandler serves the test catalog endpoints.
type TestHandler struct {
	store *storage.Store
	log   zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(store *storage.Store, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		store: store,
		log:   log.With().Str("component", "test_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/tests
// Lists authored tests with pagination.
func (h *TestHandler) ListTests(c *gin.Context) {
	page, perPage := pageParams(c)

	tests, err := h.store.AllTests(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List tests failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	tests, pagination := paginate(tests, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// GetTest godoc
// GET /api/v1/tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.store.TestByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("test_id", id.String()).Msg("Get test failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// TeacherTests godoc
// GET /api/v1/teachers/:id/tests
// Returns the tests authored by one teacher.
func (h *TestHandler) TeacherTests(c *gin.Context) {
	teacherID := c.Param("id")
	if teacherID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	tests, err := h.store.TeacherTests(c.Request.Context(), teacherID)
	if err != nil {
		h.log.Error().Err(err).Str("teacher_id", teacherID).Msg("List teacher tests failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// CreateTest godoc
// POST /api/v1/tests
// Persists a new test authored outside the chat flow.
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if fields := validateQuestions(req.Questions); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test := &model.Test{
		ID:            uuid.New(),
		TeacherID:     req.TeacherID,
		Subject:       req.Subject,
		Classes:       req.Classes,
		Name:          req.Name,
		Questions:     req.Questions,
		GlobalComment: req.GlobalComment,
		CreatedAt:     time.Now(),
	}

	if err := h.store.SaveTest(c.Request.Context(), test); err != nil {
		h.log.Error().Err(err).Msg("Save test failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().
		Str("test_id", test.ID.String()).
		Str("teacher_id", test.TeacherID).
		Int("questions", len(test.Questions)).
		Msg("Test created")

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// validateQuestions checks the per-question rules binding tags cannot
// express. Closed questions need at least two options and the correct
// answer among them.
func validateQuestions(questions []model.Question) map[string]string {
	for i, q := range questions {
		key := "questions[" + model.QuestionKey(i) + "]"
		if q.Text == "" {
			return map[string]string{key: "question text is required"}
		}
		if q.CorrectAnswer == "" {
			return map[string]string{key: "correct answer is required"}
		}
		switch q.Type {
		case model.QuestionClosed:
			if len(q.Options) < 2 {
				return map[string]string{key: "closed question needs at least two options"}
			}
			found := false
			for _, opt := range q.Options {
				if opt == q.CorrectAnswer {
					found = true
					break
				}
			}
			if !found {
				return map[string]string{key: "options must include the correct answer"}
			}
		case model.QuestionOpen:
			// No option rules for open questions.
		default:
			return map[string]string{key: "unknown question type: " + string(q.Type)}
		}
	}
	return nil
}
