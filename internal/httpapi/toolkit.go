package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/bootcamp/internal/toolkit"
)

func (s *Server) toolkitRoutes(r chi.Router) {
	r.Use(available(s.deps.Toolkit != nil, "toolkit"))
	r.Post("/calc", handleCalc)
	r.Get("/formulas", s.handleFormulas)
	r.Get("/quote", s.handleQuote)
	r.Get("/countdown", s.handleCountdown)

	r.Get("/notes", s.handleNotes)
	r.Put("/notes", s.handleSetNotes)

	r.Get("/deck", s.deckMove((*toolkit.Service).Card))
	r.Post("/deck/next", s.deckMove((*toolkit.Service).NextCard))
	r.Post("/deck/prev", s.deckMove((*toolkit.Service).PrevCard))
	r.Post("/deck/flip", s.deckMove((*toolkit.Service).FlipCard))

	r.Get("/ledger", s.handleLedger)
	r.Post("/ledger", s.handlePostEntry)
	r.Delete("/ledger", s.handleClearLedger)
	r.Delete("/ledger/{id}", s.handleRemoveEntry)

	r.Get("/chapters", s.handleChapters)
	r.Post("/chapters/toggle", s.handleToggleChapter)
}

func handleCalc(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression string `json:"expression"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	resp := map[string]any{
		"expression": toolkit.Sanitize(req.Expression),
		"display":    toolkit.Calculate(req.Expression),
	}
	if v, err := toolkit.Evaluate(req.Expression); err != nil {
		resp["error"] = err.Error()
	} else {
		resp["result"] = v
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFormulas(w http.ResponseWriter, r *http.Request) {
	found := s.deps.Toolkit.Content().SearchFormulas(r.URL.Query().Get("q"))
	if found == nil {
		found = []toolkit.Formula{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"formulas": found})
}

func (s *Server) handleQuote(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"quote": s.deps.Toolkit.Content().RandomQuote()})
}

func (s *Server) handleCountdown(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Toolkit.Countdown())
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Toolkit.Notes(r.Context(), userID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.deps.Toolkit.SetNotes(r.Context(), userID(r), req.Text); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": req.Text})
}

func (s *Server) deckMove(fn func(*toolkit.Service, context.Context, string) (toolkit.Card, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := fn(s.deps.Toolkit, r.Context(), userID(r))
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, card)
	}
}

type ledgerResponse struct {
	Entries []toolkit.Entry `json:"entries"`
	Balance toolkit.Balance `json:"balance"`
}

func respondLedger(w http.ResponseWriter, l toolkit.Ledger) {
	entries := l.Entries
	if entries == nil {
		entries = []toolkit.Entry{}
	}
	respondJSON(w, http.StatusOK, ledgerResponse{Entries: entries, Balance: l.Balance()})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	l, err := s.deps.Toolkit.Ledger(r.Context(), userID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondLedger(w, l)
}

func (s *Server) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Side   toolkit.Side `json:"side"`
		Amount float64      `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	side := toolkit.Side(strings.ToLower(strings.TrimSpace(string(req.Side))))
	l, err := s.deps.Toolkit.Post(r.Context(), userID(r), side, req.Amount)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondLedger(w, l)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	l, err := s.deps.Toolkit.RemoveEntry(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondLedger(w, l)
}

func (s *Server) handleClearLedger(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Toolkit.ClearLedger(r.Context(), userID(r)); err != nil {
		respondErr(w, err)
		return
	}
	respondLedger(w, toolkit.Ledger{})
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	done, err := s.deps.Toolkit.Chapters(r.Context(), userID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	s.respondChapters(w, done)
}

func (s *Server) handleToggleChapter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Chapter string `json:"chapter"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	done, err := s.deps.Toolkit.ToggleChapter(r.Context(), userID(r), req.Chapter)
	if err != nil {
		respondErr(w, err)
		return
	}
	s.respondChapters(w, done)
}

func (s *Server) respondChapters(w http.ResponseWriter, done []string) {
	if done == nil {
		done = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"chapters":  s.deps.Toolkit.Content().Chapters,
		"completed": done,
	})
}
