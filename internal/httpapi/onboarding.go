package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antoniostano/bootcamp/internal/toolkit"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	VoiceProvider   string            `json:"voice_provider"`
	TranscriptStore string            `json:"transcript_store"`
	StartDate       string            `json:"start_date"`
	ExamDate        string            `json:"exam_date"`
	Countdown       toolkit.Countdown `json:"countdown"`
	Checks          []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	provider := s.cfg.ResolvedVoiceProvider()
	checks := make([]onboardingCheck, 0, 6)

	checks = append(checks, s.keyCheck())
	switch provider {
	case "gemini":
		checks = append(checks, onboardingCheck{
			ID:     "voice_provider",
			Status: "ok",
			Label:  "Voice backend",
			Detail: fmt.Sprintf("gemini live (%s, voice %s)", s.cfg.LiveModel, s.cfg.LiveVoice),
		})
	case "mock":
		checks = append(checks, onboardingCheck{
			ID:     "voice_provider",
			Status: "warn",
			Label:  "Voice backend is mock",
			Detail: "Replies are synthetic tones.",
			Fix:    "Set GEMINI_API_KEY and VOICE_PROVIDER=gemini.",
		})
	}

	switch s.storeMode() {
	case "postgres":
		checks = append(checks, onboardingCheck{
			ID:     "transcript_store",
			Status: "ok",
			Label:  "Transcript persistence",
			Detail: "postgres",
		})
	default:
		checks = append(checks, onboardingCheck{
			ID:     "transcript_store",
			Status: "warn",
			Label:  "Transcript persistence",
			Detail: "in-memory only",
			Fix:    "Set DATABASE_URL to keep chat history across restarts.",
		})
	}
	checks = append(checks, s.dataDirCheck())

	resp := onboardingStatusResponse{
		VoiceProvider:   provider,
		TranscriptStore: s.storeMode(),
		StartDate:       s.cfg.StartDate.Format(time.DateOnly),
		ExamDate:        s.cfg.ExamDate.Format(time.DateOnly),
		Checks:          checks,
	}
	if s.deps.Toolkit != nil {
		resp.Countdown = s.deps.Toolkit.Countdown()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) keyCheck() onboardingCheck {
	if strings.TrimSpace(s.cfg.GeminiAPIKey) == "" {
		return onboardingCheck{
			ID:     "gemini_key",
			Status: "error",
			Label:  "Gemini API key",
			Detail: "GEMINI_API_KEY is not set",
			Fix:    "Set GEMINI_API_KEY (or API_KEY). Chat answers fail with configuration_missing until then.",
		}
	}
	return onboardingCheck{
		ID:     "gemini_key",
		Status: "ok",
		Label:  "Gemini API key",
		Detail: "present",
	}
}

func (s *Server) dataDirCheck() onboardingCheck {
	dir := strings.TrimSpace(s.cfg.DataDir)
	if dir == "" {
		return onboardingCheck{
			ID:     "data_dir",
			Status: "warn",
			Label:  "Study data",
			Detail: "kept in memory",
			Fix:    "Set APP_DATA_DIR to keep progress and toolkit data.",
		}
	}
	if !filepath.IsAbs(dir) {
		if wd, err := os.Getwd(); err == nil {
			dir = filepath.Join(wd, dir)
		}
	}
	if _, err := os.Stat(dir); err != nil {
		return onboardingCheck{
			ID:     "data_dir",
			Status: "error",
			Label:  "Study data",
			Detail: "data directory missing",
			Fix:    "Create " + dir + " or point APP_DATA_DIR elsewhere.",
		}
	}
	return onboardingCheck{
		ID:     "data_dir",
		Status: "ok",
		Label:  "Study data",
		Detail: dir,
	}
}
