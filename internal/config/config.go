package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	TelegramBotToken    string
	TelegramAPIBaseURL  string
	TelegramPollTimeout time.Duration
	ReplyChunkLimit     int
	ReplyPacing         time.Duration

	GeminiAPIKey string
	GeminiModel  string

	DatabaseURL string

	MediaMaxBytes          int64
	MediaTempDir           string
	MediaProcessingTimeout time.Duration
	PhotoPollInterval      time.Duration
	VoicePollInterval      time.Duration
	VideoPollInterval      time.Duration

	CooldownText     time.Duration
	CooldownFact     time.Duration
	CooldownPhoto    time.Duration
	CooldownVoice    time.Duration
	CooldownVideo    time.Duration
	CooldownSettings time.Duration
	CooldownDefault  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "lumen"),
		AllowAnyOrigin:   false,

		TelegramBotToken:    trimmedEnv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBaseURL:  envOrDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		TelegramPollTimeout: 30 * time.Second,
		// Telegram rejects messages longer than 4096 characters.
		ReplyChunkLimit: 4096,
		ReplyPacing:     500 * time.Millisecond,

		GeminiAPIKey: trimmedEnv("GEMINI_API_KEY"),
		GeminiModel:  envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),

		DatabaseURL: trimmedEnv("DATABASE_URL"),

		MediaMaxBytes:          20 << 20,
		MediaTempDir:           trimmedEnv("MEDIA_TEMP_DIR"),
		MediaProcessingTimeout: 2 * time.Minute,
		PhotoPollInterval:      time.Second,
		VoicePollInterval:      2 * time.Second,
		VideoPollInterval:      5 * time.Second,

		CooldownText:     3 * time.Second,
		CooldownFact:     5 * time.Second,
		CooldownPhoto:    10 * time.Second,
		CooldownVoice:    15 * time.Second,
		CooldownVideo:    20 * time.Second,
		CooldownSettings: 2 * time.Second,
		CooldownDefault:  2 * time.Second,

		ShutdownTimeout: 15 * time.Second,
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"TELEGRAM_POLL_TIMEOUT", &cfg.TelegramPollTimeout},
		{"REPLY_PACING", &cfg.ReplyPacing},
		{"MEDIA_PROCESSING_TIMEOUT", &cfg.MediaProcessingTimeout},
		{"MEDIA_POLL_INTERVAL_PHOTO", &cfg.PhotoPollInterval},
		{"MEDIA_POLL_INTERVAL_VOICE", &cfg.VoicePollInterval},
		{"MEDIA_POLL_INTERVAL_VIDEO", &cfg.VideoPollInterval},
		{"COOLDOWN_TEXT", &cfg.CooldownText},
		{"COOLDOWN_FACT", &cfg.CooldownFact},
		{"COOLDOWN_PHOTO", &cfg.CooldownPhoto},
		{"COOLDOWN_VOICE", &cfg.CooldownVoice},
		{"COOLDOWN_VIDEO", &cfg.CooldownVideo},
		{"COOLDOWN_SETTINGS", &cfg.CooldownSettings},
		{"COOLDOWN_DEFAULT", &cfg.CooldownDefault},
	}
	for _, d := range durations {
		v, err := durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	var err error
	cfg.ReplyChunkLimit, err = intFromEnv("REPLY_CHUNK_LIMIT", cfg.ReplyChunkLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.MediaMaxBytes, err = int64FromEnv("MEDIA_MAX_BYTES", cfg.MediaMaxBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ReplyChunkLimit <= 0 {
		return Config{}, fmt.Errorf("REPLY_CHUNK_LIMIT must be positive")
	}
	if cfg.MediaMaxBytes <= 0 {
		return Config{}, fmt.Errorf("MEDIA_MAX_BYTES must be positive")
	}
	if cfg.MediaProcessingTimeout <= 0 {
		return Config{}, fmt.Errorf("MEDIA_PROCESSING_TIMEOUT must be positive")
	}
	intervals := []struct {
		key string
		d   time.Duration
	}{
		{"MEDIA_POLL_INTERVAL_PHOTO", cfg.PhotoPollInterval},
		{"MEDIA_POLL_INTERVAL_VOICE", cfg.VoicePollInterval},
		{"MEDIA_POLL_INTERVAL_VIDEO", cfg.VideoPollInterval},
	}
	for _, iv := range intervals {
		if iv.d <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", iv.key)
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
