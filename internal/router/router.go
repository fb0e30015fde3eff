package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/schooltest/quizbot/internal/config"
	"github.com/schooltest/quizbot/internal/handler"
	"github.com/schooltest/quizbot/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Test   *handler.TestHandler
	Result *handler.ResultHandler
	Appeal *handler.AppealHandler
	Score  *handler.ScoreHandler
}

// newEngine builds a Gin engine with the shared middleware stack.
func newEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// SetupRouter configures the API server routes.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	router := newEngine(cfg)

	// ─── API Group ─────────────────────────────────────────────────────
	api := router.Group("/api/v1")
	{
		api.GET("/tests", handlers.Test.ListTests)
		api.POST("/tests", handlers.Test.CreateTest)
		api.GET("/tests/:id", handlers.Test.GetTest)
		api.GET("/teachers/:id/tests", handlers.Test.TeacherTests)

		api.GET("/users/:id/results", handlers.Result.UserResults)
		api.GET("/results/:id", handlers.Result.GetResult)
		api.POST("/results/:id", handlers.Result.SubmitResult)
		api.PUT("/results/:id/:result_id/score", handlers.Result.UpdateScore)

		api.GET("/appeals", handlers.Appeal.ListAppeals)
		api.POST("/appeals/:id/:result_id", handlers.Appeal.SubmitAppeal)
		api.POST("/appeals/:id/:result_id/response", handlers.Appeal.RespondAppeal)

		api.POST("/score", handlers.Score.Score)
	}

	return router
}

// SetupBotRouter configures the bot process routes: the gateway
// WebSocket endpoint plus the shared health check.
func SetupBotRouter(chat *handler.ChatHandler, cfg *config.Config) *gin.Engine {
	router := newEngine(cfg)

	// ─── WebSocket Group ───────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/gateway", chat.Stream)
	}

	return router
}
