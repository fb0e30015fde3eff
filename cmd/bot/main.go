package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schooltest/quizbot/internal/chat"
	"github.com/schooltest/quizbot/internal/config"
	"github.com/schooltest/quizbot/internal/flow"
	"github.com/schooltest/quizbot/internal/handler"
	"github.com/schooltest/quizbot/internal/logger"
	"github.com/schooltest/quizbot/internal/notify"
	"github.com/schooltest/quizbot/internal/router"
	"github.com/schooltest/quizbot/internal/session"
	"github.com/schooltest/quizbot/internal/storage"
	"github.com/schooltest/quizbot/internal/transport"
	"github.com/schooltest/quizbot/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.BotPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting quiz bot")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Open Store ────────────────────────────────────────────────────
	store, err := storage.New(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open data store")
	}
	defer store.Close()

	// ─── Wire the Chat Pipeline ────────────────────────────────────────
	// Gateway connections land in the hub, the sender retries delivery
	// through it, and the flow engine drives every conversation.
	hub := transport.NewHub(log)
	sender := chat.NewSender(hub, log)
	notifier := notify.New(sender, log)
	sessions := session.NewManager()
	engine := flow.NewEngine(store, sender, notifier, sessions, log)

	chatHandler := handler.NewChatHandler(hub, engine.Dispatch, log, cfg.AllowedOrigins)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupBotRouter(chatHandler, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.BotPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.BotPort).Msg("Bot listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
