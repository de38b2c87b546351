package app

import (
	"fmt"

	"github.com/antoniostano/bootcamp/internal/config"
	"github.com/antoniostano/bootcamp/internal/live"
)

type voiceSetup struct {
	remote           live.Remote
	resolvedProvider string
	detail           string
}

// resolveVoiceRemote picks the live backend. "auto" uses Gemini when a key is
// configured and the synthetic mock otherwise.
func resolveVoiceRemote(cfg config.Config) (voiceSetup, error) {
	switch provider := cfg.ResolvedVoiceProvider(); provider {
	case "gemini":
		detail := fmt.Sprintf("gemini live (%s, voice %s)", cfg.LiveModel, cfg.LiveVoice)
		if cfg.GeminiAPIKey == "" {
			// Connect reports configuration_missing per session.
			detail += ", no API key"
		}
		return voiceSetup{
			remote:           live.NewGeminiRemote(cfg.GeminiAPIKey),
			resolvedProvider: provider,
			detail:           detail,
		}, nil
	case "mock":
		detail := "mock"
		if cfg.VoiceProvider == "auto" {
			detail = "mock (no GEMINI_API_KEY)"
		}
		return voiceSetup{
			remote:           live.NewMockRemote(),
			resolvedProvider: provider,
			detail:           detail,
		}, nil
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected auto|gemini|mock)", cfg.VoiceProvider)
	}
}

func liveConfig(cfg config.Config) live.Config {
	return live.Config{
		Model:      cfg.LiveModel,
		Voice:      cfg.LiveVoice,
		Transcribe: true,
	}
}
