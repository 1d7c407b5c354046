package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okhmat/lumen/internal/assets"
	"github.com/okhmat/lumen/internal/chat"
	"github.com/okhmat/lumen/internal/config"
	"github.com/okhmat/lumen/internal/gemini"
	"github.com/okhmat/lumen/internal/history"
	"github.com/okhmat/lumen/internal/httpapi"
	"github.com/okhmat/lumen/internal/observability"
	"github.com/okhmat/lumen/internal/telegram"
	"github.com/okhmat/lumen/internal/throttle"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer store.Close()

	storeMode := "memory"
	if cfg.DatabaseURL != "" {
		storeMode = "postgres"
	}
	log.Printf("history store: %s", storeMode)

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("gemini client init failed: %v", err)
	}

	limiter := throttle.NewLimiter(map[throttle.Category]time.Duration{
		throttle.CategoryText:     cfg.CooldownText,
		throttle.CategoryFact:     cfg.CooldownFact,
		throttle.CategoryPhoto:    cfg.CooldownPhoto,
		throttle.CategoryVoice:    cfg.CooldownVoice,
		throttle.CategoryVideo:    cfg.CooldownVideo,
		throttle.CategorySettings: cfg.CooldownSettings,
	}, cfg.CooldownDefault)

	assetCfg := assets.DefaultConfig()
	assetCfg.TempDir = cfg.MediaTempDir
	assetCfg.MaxBytes = cfg.MediaMaxBytes
	assetCfg.ProcessingTimeout = cfg.MediaProcessingTimeout
	for kind, interval := range map[assets.Kind]time.Duration{
		assets.KindPhoto: cfg.PhotoPollInterval,
		assets.KindVoice: cfg.VoicePollInterval,
		assets.KindVideo: cfg.VideoPollInterval,
	} {
		kc := assetCfg.Kinds[kind]
		kc.PollInterval = interval
		assetCfg.Kinds[kind] = kc
	}
	manager := assets.NewManager(client, assetCfg, metrics)

	svc := chat.New(limiter, store, chat.PrepareFunc(manager.Prepare), client, metrics)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if cfg.TelegramBotToken == "" {
		log.Printf("TELEGRAM_BOT_TOKEN not set, telegram surface disabled")
	} else {
		tg := telegram.NewClient(cfg.TelegramAPIBaseURL, cfg.TelegramBotToken, cfg.TelegramPollTimeout+10*time.Second)
		bot := telegram.NewBot(tg, svc, cfg.TelegramPollTimeout, cfg.ReplyChunkLimit, cfg.ReplyPacing)
		go func() {
			if err := bot.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("telegram loop stopped: %v", err)
			}
		}()
	}

	api := httpapi.New(cfg, svc, storeMode, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
