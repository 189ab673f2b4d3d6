// Command server runs the promotional-offers backend: it ingests messaging
// gateway webhooks, extracts and enriches offers, and redistributes them to
// subscriber groups.
//
// Configuration comes from the environment (optionally a .env file). The
// server boots with upstreams unconfigured: the gateway, the LLM providers
// and the photo storage are optional, and endpoints that need a missing
// upstream answer with a clean error instead of panicking.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/promopipe/go-offers-backend/internal/config"
	"github.com/promopipe/go-offers-backend/internal/evolution"
	httpapi "github.com/promopipe/go-offers-backend/internal/http"
	"github.com/promopipe/go-offers-backend/internal/llm"
	"github.com/promopipe/go-offers-backend/internal/media"
	"github.com/promopipe/go-offers-backend/internal/observability"
	"github.com/promopipe/go-offers-backend/internal/repo"
	"github.com/promopipe/go-offers-backend/internal/scraper"
	"github.com/promopipe/go-offers-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	deps := httpapi.Deps{
		DB:      db,
		Scraper: scraper.NewClient(cfg.ScraperBase, nil),
	}

	if gw, err := evolution.NewClient(evolution.Config{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
	}); err == nil {
		deps.Gateway = gw
	} else {
		log.Warn().Msg("messaging gateway not configured; dispatch and sync endpoints disabled")
	}

	if st, err := media.NewStorage(media.StorageConfig{
		BaseURL:    cfg.Storage.BaseURL,
		ServiceKey: cfg.Storage.ServiceKey,
		Bucket:     cfg.Storage.Bucket,
	}); err == nil {
		deps.Photos = st
	} else {
		log.Warn().Msg("photo storage not configured; offers will park as sem_foto")
	}

	if cfg.LLM.GeminiAPIKey != "" || cfg.LLM.OpenAIAPIKey != "" {
		chain := llm.NewChain(
			llm.NewGemini(llm.GeminiConfig{APIKey: cfg.LLM.GeminiAPIKey, Model: cfg.LLM.GeminiModel}),
			llm.NewOpenAI(llm.OpenAIConfig{APIKey: cfg.LLM.OpenAIAPIKey, Model: cfg.LLM.OpenAIModel}),
		)
		deps.Parser = chain
		deps.Matcher = chain
	} else {
		log.Warn().Msg("no LLM provider configured; extraction is deterministic only")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
