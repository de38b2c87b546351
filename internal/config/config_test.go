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
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryBaseDelay != time.Second {
		t.Fatalf("retry = %d/%v, want 3/1s", cfg.RetryMaxAttempts, cfg.RetryBaseDelay)
	}
	if got := cfg.StartDate.Format(dateLayout); got != "2026-02-01" {
		t.Fatalf("StartDate = %s, want 2026-02-01", got)
	}
	if cfg.ResolvedVoiceProvider() != "mock" {
		t.Fatalf("ResolvedVoiceProvider() = %q, want mock without a key", cfg.ResolvedVoiceProvider())
	}
}

func TestLoadFallsBackToAPIKey(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("API_KEY", " legacy-key ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GeminiAPIKey != "legacy-key" {
		t.Fatalf("GeminiAPIKey = %q, want legacy-key", cfg.GeminiAPIKey)
	}
	if cfg.ResolvedVoiceProvider() != "gemini" {
		t.Fatalf("ResolvedVoiceProvider() = %q, want gemini", cfg.ResolvedVoiceProvider())
	}

	t.Setenv("GEMINI_API_KEY", "primary")
	cfg, _ = Load()
	if cfg.GeminiAPIKey != "primary" {
		t.Fatalf("GeminiAPIKey = %q, want primary", cfg.GeminiAPIKey)
	}
}

func TestLoadDates(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("BOOTCAMP_START_DATE", "2026-03-01")
	t.Setenv("BOOTCAMP_EXAM_DATE", "2026-03-20T09:30:00Z")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StartDate.Month() != time.March || cfg.StartDate.Day() != 1 {
		t.Fatalf("StartDate = %v", cfg.StartDate)
	}
	if !cfg.ExamDate.Equal(time.Date(2026, time.March, 20, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("ExamDate = %v", cfg.ExamDate)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"VOICE_PROVIDER":       "elevenlabs",
		"CAPTURE_QUEUE_FRAMES": "0",
		"RETRY_MAX_ATTEMPTS":   "x",
		"BOOTCAMP_EXAM_DATE":   "2020-01-01",
		"BOOTCAMP_START_DATE":  "tomorrow",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q error = nil, want error", key, val)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_FIRST_AUDIO_SLO",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_DATA_DIR",
		"DATABASE_URL",
		"VOICE_PROVIDER",
		"GEMINI_API_KEY",
		"API_KEY",
		"GEMINI_TEXT_MODEL",
		"GEMINI_IMAGE_MODEL",
		"GEMINI_LIVE_MODEL",
		"GEMINI_LIVE_VOICE",
		"BOOTCAMP_START_DATE",
		"BOOTCAMP_EXAM_DATE",
		"CAPTURE_QUEUE_FRAMES",
		"RETRY_MAX_ATTEMPTS",
		"RETRY_BASE_DELAY",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
