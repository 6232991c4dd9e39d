package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamlens/catchup/cmd/server/internal/api"
	"github.com/streamlens/catchup/cmd/server/internal/audit"
	"github.com/streamlens/catchup/cmd/server/internal/catchup"
	"github.com/streamlens/catchup/cmd/server/internal/config"
	"github.com/streamlens/catchup/cmd/server/internal/credit"
	"github.com/streamlens/catchup/cmd/server/internal/extract"
	"github.com/streamlens/catchup/cmd/server/internal/platform"
	"github.com/streamlens/catchup/cmd/server/internal/summarize"
	"github.com/streamlens/catchup/cmd/server/internal/transcribe"
	"github.com/streamlens/catchup/cmd/server/internal/upload"
	"github.com/streamlens/catchup/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		WithSource:  cfg.Log.WithSource,
	})
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	downloader := platform.NewYtDlpDownloader("")
	platforms := []platform.SourcePlatform{
		platform.NewTwitch(platform.TwitchConfig{
			ClientID:     cfg.Twitch.ClientID,
			ClientSecret: cfg.Twitch.ClientSecret,
			APIBaseURL:   cfg.Twitch.APIBaseURL,
			AuthURL:      cfg.Twitch.AuthURL,
			ClipWaitSecs: cfg.Twitch.ClipWaitSecs,
		}),
		platform.NewYouTube(downloader),
		platform.NewKick(downloader),
	}
	extractor := extract.New(platforms)

	speechClient := transcribe.NewHTTPSpeechClient(cfg.Transcribe.APIKey, cfg.Transcribe.BaseURL)
	engine := transcribe.NewEngine(speechClient, transcribe.EngineConfig{
		Concurrency:  cfg.Transcribe.Concurrency,
		BatchPause:   config.MustDuration(cfg.Transcribe.BatchPause),
		PollInterval: config.MustDuration(cfg.Transcribe.PollInterval),
		PollBudget:   config.MustDuration(cfg.Transcribe.PollBudget),
	})

	var summarizer summarize.Summarizer
	switch cfg.Summarize.Backend {
	case "openai":
		summarizer = summarize.NewOpenAI(cfg.Summarize.OpenAIKey, cfg.Summarize.OpenAIURL, cfg.Summarize.OpenAIModel)
	case "gemini":
		summarizer = summarize.NewGemini(cfg.Summarize.GeminiKeys, cfg.Summarize.GeminiModel)
	default:
		// no backend, the local fallback summary is used directly
	}

	var gate credit.Gate = credit.AllowAll{}
	if cfg.Credit.Endpoint != "" {
		gate = credit.NewHTTPGate(cfg.Credit.Endpoint)
	}

	auditLog := audit.NewLogger(cfg.Audit.Path)
	registry := catchup.NewRegistry()
	uploads := upload.NewStore()

	orchestrator := catchup.NewOrchestrator(catchup.Config{
		AllowedWindows: cfg.Catchup.AllowedWindows,
		PhaseTimeout:   config.MustDuration(cfg.Catchup.PhaseTimeout),
		CostForWindow:  cfg.CreditCost,
	}, registry, extractor, engine, summarizer, gate, uploads, auditLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention := time.Duration(cfg.Catchup.RetentionMinutes) * time.Minute
	registry.StartReaper(ctx, config.MustDuration(cfg.Catchup.ReaperInterval), retention, uploads.ReapOlderThan)

	router := api.NewRouter(api.Deps{
		Orchestrator: orchestrator,
		Registry:     registry,
		Uploads:      uploads,
		Audit:        auditLog,
	})

	server := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: router,
	}

	go func() {
		log.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
