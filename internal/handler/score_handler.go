package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/schooltest/quizbot/internal/model"
	"github.com/schooltest/quizbot/internal/response"
	"github.com/schooltest/quizbot/internal/scoring"
	"github.com/schooltest/quizbot/internal/validator"
)

// ScoreRequest asks the grader to score one answer against a reference.
type ScoreRequest struct {
	Answer    string `json:"answer" binding:"required"`
	Reference string `json:"reference" binding:"required"`
	Type      string `json:"type" binding:"required"`
}

// ScoreHandler exposes the automated grader over HTTP.
type ScoreHandler struct {
	log zerolog.Logger
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(log zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		log: log.With().Str("component", "score_handler").Logger(),
	}
}

// Score godoc
// POST /api/v1/score
// Scores a single answer. Closed answers score all-or-nothing, open
// answers get a similarity band score plus the grader's comment.
func (h *ScoreHandler) Score(c *gin.Context) {
	var req ScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var (
		score   int
		comment string
	)
	switch model.QuestionType(req.Type) {
	case model.QuestionClosed:
		score = scoring.ScoreClosed(req.Answer, req.Reference)
	case model.QuestionOpen:
		score, comment = scoring.ScoreOpen(req.Answer, req.Reference)
	default:
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswerType)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"score":   score,
		"comment": comment,
	})
}
