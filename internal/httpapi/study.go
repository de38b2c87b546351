package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/bootcamp/internal/appstate"
	"github.com/antoniostano/bootcamp/internal/progress"
)

func (s *Server) progressRoutes(r chi.Router) {
	r.Use(available(s.deps.Progress != nil, "progress"))
	r.Get("/", s.handleProgress)
	r.Delete("/", s.handleResetProgress)
	r.Post("/touch", s.progressUpdate(func(r *http.Request) (progress.Progress, error) {
		return s.deps.Progress.Touch(r.Context(), userID(r))
	}))
	r.Patch("/vitals", s.handleUpdateVitals)
	r.Post("/hydration", s.handleAddHydration)
	r.Put("/days/{day}/mistakes", s.handleUpdateMistakes)
	r.Post("/days/{day}/sessions/{session}/tasks/{task}/toggle", s.handleToggleTask)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Progress.Load(r.Context(), userID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Progress.Reset(r.Context(), userID(r)); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) progressUpdate(fn func(r *http.Request) (progress.Progress, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := fn(r)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleUpdateVitals(w http.ResponseWriter, r *http.Request) {
	var patch progress.VitalsPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.progressUpdate(func(r *http.Request) (progress.Progress, error) {
		return s.deps.Progress.UpdateVitals(r.Context(), userID(r), patch)
	})(w, r)
}

func (s *Server) handleAddHydration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.progressUpdate(func(r *http.Request) (progress.Progress, error) {
		return s.deps.Progress.AddHydration(r.Context(), userID(r), req.Delta)
	})(w, r)
}

func (s *Server) handleUpdateMistakes(w http.ResponseWriter, r *http.Request) {
	day, ok := dayParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.progressUpdate(func(r *http.Request) (progress.Progress, error) {
		return s.deps.Progress.UpdateMistakes(r.Context(), userID(r), day, req.Text)
	})(w, r)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	day, ok := dayParam(w, r)
	if !ok {
		return
	}
	sessionID, taskID := chi.URLParam(r, "session"), chi.URLParam(r, "task")
	s.progressUpdate(func(r *http.Request) (progress.Progress, error) {
		return s.deps.Progress.ToggleTask(r.Context(), userID(r), day, sessionID, taskID)
	})(w, r)
}

func dayParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil || day < 1 {
		respondError(w, http.StatusBadRequest, "invalid_request", "day must be a positive integer")
		return 0, false
	}
	return day, true
}

func (s *Server) appRoutes(r chi.Router) {
	r.Use(available(s.deps.App != nil, "app state"))
	r.Get("/", s.appUpdate((*appstate.Manager).Init))
	r.Post("/signin", s.appUpdate((*appstate.Manager).SignIn))
	r.Post("/signout", s.appUpdate((*appstate.Manager).SignOut))
	r.Put("/theme", s.handleSetTheme)
	r.Post("/reset", s.handleAppReset)
}

func (s *Server) appUpdate(fn func(*appstate.Manager, context.Context, string) (appstate.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := fn(s.deps.App, r.Context(), userID(r))
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DarkMode bool `json:"dark_mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	st, err := s.deps.App.SetTheme(r.Context(), userID(r), req.DarkMode)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleAppReset wipes every record of the caller, including voice sessions.
func (s *Server) handleAppReset(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if sess, err := s.deps.Sessions.ActiveForUser(uid); err == nil {
		if _, err := s.deps.Sessions.End(sess.ID); err == nil && s.deps.Voice != nil {
			s.deps.Voice.Stop(sess.ID)
		}
	}
	if err := s.deps.App.Reset(r.Context(), uid); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
