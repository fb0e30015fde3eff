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

// AppealHandler serves score appeal endpoints.
type AppealHandler struct {
	store *storage.Store
	log   zerolog.Logger
}

// NewAppealHandler creates a new AppealHandler.
func NewAppealHandler(store *storage.Store, log zerolog.Logger) *AppealHandler {
	return &AppealHandler{
		store: store,
		log:   log.With().Str("component", "appeal_handler").Logger(),
	}
}

// SubmitAppeal godoc
// POST /api/v1/appeals/:id/:result_id
// Files an appeal on one question of the student's result. A result
// keeps one appeal per question: re-filing replaces the text but
// keeps the original appeal id. Filing is refused once the appeal
// window after the attempt has passed.
func (h *AppealHandler) SubmitAppeal(c *gin.Context) {
	userID := c.Param("id")
	resultID, err := uuid.Parse(c.Param("result_id"))
	if userID == "" || err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAppealRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	result, err := h.store.ResultByID(ctx, resultID)
	if err != nil || result.UserID != userID {
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Submit appeal failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if time.Since(result.Timestamp) > model.AppealWindow {
		response.Fail(c, http.StatusForbidden, response.ErrAppealWindowClosed)
		return
	}

	appeal := &model.Appeal{
		QuestionIdx:    *req.QuestionIdx,
		StudentComment: req.StudentComment,
	}
	if err := h.store.SaveAppeal(ctx, userID, resultID, appeal); err != nil {
		h.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Save appeal failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"appeal": appeal})
}

// RespondAppeal godoc
// POST /api/v1/appeals/:id/:result_id/response
// Records the teacher's answer on a pending appeal and marks it
// responded.
func (h *AppealHandler) RespondAppeal(c *gin.Context) {
	userID := c.Param("id")
	resultID, err := uuid.Parse(c.Param("result_id"))
	if userID == "" || err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RespondAppealRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.store.RespondAppeal(c.Request.Context(), userID, resultID, *req.QuestionIdx, req.TeacherComment); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Str("result_id", resultID.String()).Msg("Respond appeal failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "appeal responded"})
}

// ListAppeals godoc
// GET /api/v1/appeals
// Lists filed appeals across all results with pagination. The
// optional status query filters by pending/responded.
func (h *AppealHandler) ListAppeals(c *gin.Context) {
	page, perPage := pageParams(c)

	appeals, err := h.store.AllAppeals(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List appeals failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if status := c.Query("status"); status != "" {
		filtered := make([]model.Appeal, 0, len(appeals))
		for _, a := range appeals {
			if string(a.Status) == status {
				filtered = append(filtered, a)
			}
		}
		appeals = filtered
	}

	appeals, pagination := paginate(appeals, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"appeals": appeals}, pagination)
}
