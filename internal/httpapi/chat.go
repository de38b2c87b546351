package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/bootcamp/internal/memory"
	"github.com/antoniostano/bootcamp/internal/tutor"
)

type chatRequest struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
}

func (s *Server) chatRoutes(r chi.Router) {
	r.Use(available(s.deps.Tutor != nil, "chat"))
	r.Post("/consultant", s.handleChat((*tutor.Tutor).Consult))
	r.Post("/sidekick", s.handleChat((*tutor.Tutor).Chat))
	r.Get("/history", s.handleChatHistory)
}

func (s *Server) handleChat(ask func(*tutor.Tutor, context.Context, string, string) (tutor.Answer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		uid := strings.TrimSpace(req.UserID)
		if uid == "" {
			uid = userID(r)
		}
		ans, err := ask(s.deps.Tutor, r.Context(), uid, req.Prompt)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ans)
	}
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	switch channel {
	case "", memory.ChannelConsultant, memory.ChannelSidekick, memory.ChannelVoice:
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown channel "+strconv.Quote(channel))
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	turns, err := s.deps.Tutor.History(r.Context(), userID(r), channel, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	if turns == nil {
		turns = []memory.TurnRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

// available answers 501 for every route of a service that is not configured.
func available(ok bool, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if ok {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusNotImplemented, "unavailable", name+" not configured")
		})
	}
}
