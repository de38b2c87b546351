package httpapi

import "net/http"

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	snap := s.metrics.StageSnapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"generated_at":          snap.GeneratedAt,
		"window_size":           snap.WindowSize,
		"stages":                snap.Stages,
		"indicators":            snap.Indicators,
		"first_audio_slo_ms":    s.cfg.FirstAudioSLO.Milliseconds(),
		"active_voice_sessions": s.deps.Sessions.ActiveCount(),
	})
}
