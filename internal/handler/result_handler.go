package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/response"
	"github.com/schooltest/quizbot/internal/scoring"
	"github.com/schooltest/quizbot/internal/storage"
	"github.com/schooltest/quizbot/internal/validator"
)

// ResultHandler serves completed attempt endpoints.
type ResultHandler struct {
	store *storage.Store
	log   zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(store *storage.Store, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		store: store,
		log:   log.With().Str("component", "result_handler").Logger(),
	}
}

// SubmitResult godoc
// POST /api/v1/results/:id
// Records a finished attempt for the student in the path. Answers are
// graded against the referenced test before the result is stored, so
// the scores a client reads back are always the server's own.
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.store.TestByID(c.Request.Context(), req.TestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("test_id", req.TestID.String()).Msg("Submit result failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	report := scoring.Generate(test, req.Answers)
	result := &model.Result{
		TestID:        test.ID,
		StudentInfo:   req.StudentInfo,
		Answers:       req.Answers,
		Scores:        report.Scores,
		ModelComments: report.ModelComments,
	}
	if err := h.store.SaveResult(c.Request.Context(), userID, result); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Save result failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"result": result})
}

// UpdateScore godoc
// PUT /api/v1/results/:id/:result_id/score
// Re-scores one question of a student's result, optionally replacing
// the teacher comment alongside.
func (h *ResultHandler) UpdateScore(c *gin.Context) {
	userID := c.Param("id")
	resultID, err := uuid.Parse(c.Param("result_id"))
	if userID == "" || err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.UpdateScore(ctx, userID, resultID, *req.QuestionIdx, req.Score); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Update score failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if req.Comment != "" {
		if err := h.store.UpdateTeacherComment(ctx, userID, resultID, *req.QuestionIdx, req.Comment); err != nil {
			h.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Update teacher comment failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"message": "score updated"})
}

// UserResults godoc
// GET /api/v1/users/:id/results
// Lists the completed attempts of one student, appeals included.
func (h *ResultHandler) UserResults(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	page, perPage := pageParams(c)

	results, err := h.store.StudentResults(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("List user results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	results, pagination := paginate(results, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// GetResult godoc
// GET /api/v1/results/:id
func (h *ResultHandler) GetResult(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.store.ResultByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("result_id", id.String()).Msg("Get result failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
