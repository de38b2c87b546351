package httpapi

import (
	"net/http"
	"strings"
)

type voiceSummary struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
	Style   string `json:"style,omitempty"`
}

type listVoicesResponse struct {
	DefaultVoiceID string         `json:"default_voice_id"`
	Recommended    []voiceSummary `json:"recommended"`
	Voices         []voiceSummary `json:"voices"`
}

// liveVoices are the prebuilt voices of the Gemini native-audio models.
var liveVoices = []voiceSummary{
	{VoiceID: "Zephyr", Name: "Zephyr", Style: "bright"},
	{VoiceID: "Puck", Name: "Puck", Style: "upbeat"},
	{VoiceID: "Charon", Name: "Charon", Style: "informative"},
	{VoiceID: "Kore", Name: "Kore", Style: "firm"},
	{VoiceID: "Fenrir", Name: "Fenrir", Style: "excitable"},
	{VoiceID: "Leda", Name: "Leda", Style: "youthful"},
	{VoiceID: "Orus", Name: "Orus", Style: "firm"},
	{VoiceID: "Aoede", Name: "Aoede", Style: "breezy"},
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	defaultID := strings.TrimSpace(s.cfg.LiveVoice)
	if defaultID == "" {
		defaultID = liveVoices[0].VoiceID
	}
	respondJSON(w, http.StatusOK, listVoicesResponse{
		DefaultVoiceID: defaultID,
		Recommended:    []voiceSummary{liveVoices[0], liveVoices[2], liveVoices[3]},
		Voices:         liveVoices,
	})
}
