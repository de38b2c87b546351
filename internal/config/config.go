package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Config contains all runtime settings for the bootcamp service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	FirstAudioSLO            time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// DataDir holds the local key-value store. Empty keeps data in memory.
	DataDir     string
	DatabaseURL string

	// VoiceProvider is "gemini", "mock" or "auto" (gemini when a key is set).
	VoiceProvider string
	GeminiAPIKey  string
	TextModel     string
	ImageModel    string
	LiveModel     string
	LiveVoice     string

	StartDate time.Time
	ExamDate  time.Time

	CaptureQueueFrames int
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "bootcamp"),
		AllowAnyOrigin:   false,
		DataDir:          envOrDefault("APP_DATA_DIR", "data"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		VoiceProvider:    envOrDefault("VOICE_PROVIDER", "auto"),
		// API_KEY is the name the browser build used.
		GeminiAPIKey:             firstNonEmpty(stringsTrimSpace("GEMINI_API_KEY"), stringsTrimSpace("API_KEY")),
		TextModel:                envOrDefault("GEMINI_TEXT_MODEL", "gemini-3-flash-preview"),
		ImageModel:               envOrDefault("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		LiveModel:                envOrDefault("GEMINI_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		LiveVoice:                envOrDefault("GEMINI_LIVE_VOICE", "Zephyr"),
		StartDate:                time.Date(2026, time.February, 1, 0, 0, 0, 0, time.Local),
		ExamDate:                 time.Date(2026, time.February, 20, 0, 0, 0, 0, time.Local),
		CaptureQueueFrames:       8,
		RetryMaxAttempts:         3,
		RetryBaseDelay:           time.Second,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		FirstAudioSLO:            1200 * time.Millisecond,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FirstAudioSLO, err = durationFromEnv("APP_FIRST_AUDIO_SLO", cfg.FirstAudioSLO)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.StartDate, err = dateFromEnv("BOOTCAMP_START_DATE", cfg.StartDate)
	if err != nil {
		return Config{}, err
	}
	cfg.ExamDate, err = dateFromEnv("BOOTCAMP_EXAM_DATE", cfg.ExamDate)
	if err != nil {
		return Config{}, err
	}
	cfg.CaptureQueueFrames, err = intFromEnv("CAPTURE_QUEUE_FRAMES", cfg.CaptureQueueFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryMaxAttempts, err = intFromEnv("RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBaseDelay, err = durationFromEnv("RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	switch cfg.VoiceProvider {
	case "auto", "gemini", "mock":
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER must be one of auto, gemini, mock")
	}
	if cfg.CaptureQueueFrames <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_QUEUE_FRAMES must be positive")
	}
	if cfg.RetryMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if cfg.RetryBaseDelay < 0 {
		return Config{}, fmt.Errorf("RETRY_BASE_DELAY must be >= 0")
	}
	if !cfg.ExamDate.After(cfg.StartDate) {
		return Config{}, fmt.Errorf("BOOTCAMP_EXAM_DATE must be after BOOTCAMP_START_DATE")
	}

	return cfg, nil
}

// ResolvedVoiceProvider turns "auto" into "gemini" or "mock" depending on
// whether a key is configured.
func (c Config) ResolvedVoiceProvider() string {
	if c.VoiceProvider != "auto" {
		return c.VoiceProvider
	}
	if c.GeminiAPIKey != "" {
		return "gemini"
	}
	return "mock"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

// dateFromEnv accepts YYYY-MM-DD (local midnight) or RFC 3339.
func dateFromEnv(key string, fallback time.Time) (time.Time, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseInLocation(dateLayout, v, time.Local); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s parse error: want YYYY-MM-DD or RFC 3339", key)
	}
	return d, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
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
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
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
