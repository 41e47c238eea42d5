package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/course"
	"github.com/p-n-ai/pai-course/internal/diagnostics"
	"github.com/p-n-ai/pai-course/internal/intent"
	"github.com/p-n-ai/pai-course/internal/normalize"
	"github.com/p-n-ai/pai-course/internal/platform/cache"
	"github.com/p-n-ai/pai-course/internal/platform/config"
	"github.com/p-n-ai/pai-course/internal/platform/database"
	"github.com/p-n-ai/pai-course/internal/session"
	"github.com/p-n-ai/pai-course/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	catalog, err := intent.Load(cfg.IntentsPath)
	if err != nil {
		return err
	}
	catalog.Override(ai.IntentSpeech, cfg.AI.Google.SpeechModel, cfg.AI.Google.Voice)

	router := newRouter(cfg.AI)
	for _, m := range unknownModels(catalog, router.Models()) {
		slog.Warn("intent model is not offered by any provider", "intent", m.intent.String(), "model", m.model)
	}
	budget := ai.NewSessionBudget(int64(cfg.AI.SessionBudget))
	webOpts := []web.Option{web.WithReadinessCheck("ai", router.HealthCheck)}

	var lessons course.LessonCache = course.NewMemoryLessonCache(cfg.Cache.LessonTTL)
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connecting to cache: %w", err)
		}
		defer c.Close()
		lessons = course.NewRedisLessonCache(c, cfg.Cache.LessonTTL)
		webOpts = append(webOpts, web.WithReadinessCheck("cache", c.HealthCheck))
		slog.Info("lesson cache connected")
	}

	var failures diagnostics.Store = diagnostics.NewMemoryLogger()
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx, diagnostics.Schema); err != nil {
			return err
		}
		failures = diagnostics.NewPostgresLogger(db.Pool)
		webOpts = append(webOpts, web.WithReadinessCheck("database", db.HealthCheck))
		slog.Info("diagnostics database connected")
	}
	webOpts = append(webOpts, web.WithFailureStore(failures))

	orch, err := course.New(course.Config{
		AI:               router,
		Catalog:          catalog,
		Normalizer:       normalize.New(catalog, normalize.Policy{Repair: cfg.Normalizer.Repair, Strict: cfg.Normalizer.Strict}),
		Budget:           budget,
		Lessons:          lessons,
		Failures:         failures,
		SpeechMaxChars:   cfg.Limits.SpeechChars,
		ChatContextChars: cfg.Limits.ChatContextChars,
		ChatHistoryLimit: cfg.Limits.ChatHistory,
		ExamQuestions:    cfg.Limits.ExamQuestions,
	})
	if err != nil {
		return err
	}

	sess := session.New(orch, session.WithResetHook(budget.Reset))
	sessCtx, cancelSession := context.WithCancel(context.Background())
	sessDone := make(chan error, 1)
	go func() { sessDone <- sess.Run(sessCtx) }()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           web.NewServer(sess, webConfig(cfg), webOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// No WriteTimeout: graph websockets stay open for the whole visit.
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		cancelSession()
		<-sessDone
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	cancelSession()
	return <-sessDone
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newRouter registers the configured Gemini model, then the fallback model
// when one is set.
func newRouter(cfg config.AIConfig) *ai.Router {
	opts := []ai.GoogleOption{
		ai.WithGoogleModel(cfg.Google.Model),
		ai.WithGoogleMaxRetries(cfg.Google.MaxRetries),
	}
	if cfg.Google.BaseURL != "" {
		opts = append(opts, ai.WithGoogleBaseURL(cfg.Google.BaseURL))
	}

	router := ai.NewRouter()
	router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, opts...))
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Google.Model {
		fallback := append(slices.Clone(opts), ai.WithGoogleModel(cfg.FallbackModel))
		router.Register("google-fallback", ai.NewGoogleProvider(cfg.Google.APIKey, fallback...))
		slog.Info("fallback model registered", "model", cfg.FallbackModel)
	}
	return router
}

type intentModel struct {
	intent ai.Intent
	model  string
}

// unknownModels lists catalog intents that name a model missing from models.
// Intents without a model use the provider's default and are skipped.
func unknownModels(catalog *intent.Catalog, models []ai.ModelInfo) []intentModel {
	offered := make(map[string]bool, len(models))
	for _, m := range models {
		offered[m.ID] = true
	}
	var out []intentModel
	for _, i := range ai.Intents {
		if model := catalog.Get(i).Model; model != "" && !offered[model] {
			out = append(out, intentModel{intent: i, model: model})
		}
	}
	return out
}

func webConfig(cfg *config.Config) web.Config {
	return web.Config{
		MaxUploadBytes: cfg.Limits.UploadBytes,
		GraphWidth:     cfg.Graph.Width,
		GraphHeight:    cfg.Graph.Height,
		TickInterval:   cfg.Graph.TickInterval,
	}
}
