package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MediaMaxBytes != 20<<20 {
		t.Fatalf("MediaMaxBytes = %d, want %d", cfg.MediaMaxBytes, 20<<20)
	}
	if cfg.ReplyChunkLimit != 4096 {
		t.Fatalf("ReplyChunkLimit = %d, want 4096", cfg.ReplyChunkLimit)
	}
	if cfg.CooldownVoice != 15*time.Second {
		t.Fatalf("CooldownVoice = %s, want 15s", cfg.CooldownVoice)
	}
	if cfg.VideoPollInterval != 5*time.Second {
		t.Fatalf("VideoPollInterval = %s, want 5s", cfg.VideoPollInterval)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("GeminiModel = %q, want default model", cfg.GeminiModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("COOLDOWN_TEXT", "7s")
	t.Setenv("MEDIA_MAX_BYTES", "1048576")
	t.Setenv("MEDIA_POLL_INTERVAL_VIDEO", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.CooldownText != 7*time.Second {
		t.Fatalf("CooldownText = %s, want 7s", cfg.CooldownText)
	}
	if cfg.MediaMaxBytes != 1<<20 {
		t.Fatalf("MediaMaxBytes = %d, want %d", cfg.MediaMaxBytes, 1<<20)
	}
	if cfg.VideoPollInterval != 250*time.Millisecond {
		t.Fatalf("VideoPollInterval = %s, want 250ms", cfg.VideoPollInterval)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COOLDOWN_VOICE", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should fail on invalid duration")
	}

	setCoreEnvEmpty(t)
	t.Setenv("MEDIA_MAX_BYTES", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should fail on non-positive media size limit")
	}

	setCoreEnvEmpty(t)
	t.Setenv("MEDIA_POLL_INTERVAL_PHOTO", "0s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should fail on zero poll interval")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_API_BASE_URL",
		"TELEGRAM_POLL_TIMEOUT",
		"REPLY_CHUNK_LIMIT",
		"REPLY_PACING",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"DATABASE_URL",
		"MEDIA_MAX_BYTES",
		"MEDIA_TEMP_DIR",
		"MEDIA_PROCESSING_TIMEOUT",
		"MEDIA_POLL_INTERVAL_PHOTO",
		"MEDIA_POLL_INTERVAL_VOICE",
		"MEDIA_POLL_INTERVAL_VIDEO",
		"COOLDOWN_TEXT",
		"COOLDOWN_FACT",
		"COOLDOWN_PHOTO",
		"COOLDOWN_VOICE",
		"COOLDOWN_VIDEO",
		"COOLDOWN_SETTINGS",
		"COOLDOWN_DEFAULT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
