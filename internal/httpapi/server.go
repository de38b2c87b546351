package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/bootcamp/internal/appstate"
	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/config"
	"github.com/antoniostano/bootcamp/internal/failure"
	"github.com/antoniostano/bootcamp/internal/live"
	"github.com/antoniostano/bootcamp/internal/observability"
	"github.com/antoniostano/bootcamp/internal/progress"
	"github.com/antoniostano/bootcamp/internal/protocol"
	"github.com/antoniostano/bootcamp/internal/session"
	"github.com/antoniostano/bootcamp/internal/store"
	"github.com/antoniostano/bootcamp/internal/toolkit"
	"github.com/antoniostano/bootcamp/internal/tutor"
	"github.com/antoniostano/bootcamp/internal/voice"
)

// VoiceBridge runs browser websocket connections against a live session.
type VoiceBridge interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
	Stats(sessionID string) (live.Stats, bool)
	Stop(sessionID string)
}

// Deps are the services behind the API. Nil services disable their routes'
// handlers with 501; a nil Metrics disables instrumentation.
type Deps struct {
	Sessions *session.Manager
	Voice    VoiceBridge
	Tutor    *tutor.Tutor
	Progress *progress.Tracker
	Toolkit  *toolkit.Service
	App      *appstate.Manager
	Metrics  *observability.Metrics
	// StoreMode describes where transcripts persist ("postgres" or "in-memory").
	StoreMode string
}

type Server struct {
	cfg      config.Config
	deps     Deps
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:     cfg,
		deps:    deps,
		metrics: deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a microphone session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/voice/session", s.handleCreateSession)
	r.Post("/v1/voice/session/{id}/end", s.handleEndSession)
	r.Get("/v1/voice/session/{id}/stats", s.handleSessionStats)
	r.Get("/v1/voice/session/ws", s.handleSessionWS)
	r.Get("/v1/voice/voices", s.handleListVoices)

	r.Route("/v1/chat", s.chatRoutes)
	r.Route("/v1/progress", s.progressRoutes)
	r.Route("/v1/app", s.appRoutes)
	r.Route("/v1/toolkit", s.toolkitRoutes)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"voice_provider": s.cfg.ResolvedVoiceProvider(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"voice_provider":   s.cfg.ResolvedVoiceProvider(),
		"transcript_store": s.storeMode(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = userID(r)
	}
	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = s.cfg.LiveVoice
	}

	sess, replaced := s.deps.Sessions.Create(req.UserID, req.Voice)
	s.sessionEvent("created")

	resp := session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		Voice:           sess.Voice,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	}
	if replaced != nil {
		resp.ReplacedSession = replaced.ID
		s.sessionEvent("replaced")
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.deps.Sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.deps.Voice != nil {
		s.deps.Voice.Stop(id)
	}
	s.sessionEvent("ended")
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	resp := map[string]any{"session": sess}
	if s.deps.Voice != nil {
		if st, ok := s.deps.Voice.Stats(id); ok {
			resp["live"] = st
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.deps.Voice == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "voice bridge not configured")
		return
	}

	sess, err := s.deps.Sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusGone, "session_ended", "session has ended")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.sessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.deps.Voice.RunConnection(ctx, sess, inbound, outbound)
		// The bridge also returns when the session is ended, replaced or
		// expired; close the socket so the reader stops too.
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.sessionEvent("ws_write_error")
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.wsMessage("outbound", string(t))
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var parsed any
		switch msgType {
		case websocket.BinaryMessage:
			samples, derr := audio.DecodeFloat32LE(data)
			if derr != nil {
				s.rejectInbound(outbound, sessionID, string(failure.KindMalformedPayload), derr)
				continue
			}
			parsed = voice.MicFrame{Samples: samples}
			s.wsMessage("inbound", "binary_audio")
		case websocket.TextMessage:
			parsed, err = protocol.ParseClientMessage(data)
			if err != nil {
				s.rejectInbound(outbound, sessionID, "invalid_client_message", err)
				continue
			}
			if t, ok := messageTypeOf(parsed); ok {
				s.wsMessage("inbound", string(t))
			}
		default:
			continue
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.sessionEvent("ws_disconnected")
}

func (s *Server) sessionEvent(name string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

func (s *Server) wsMessage(direction, typ string) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, typ).Inc()
	}
}

// rejectInbound reports a bad client message without blocking the reader.
func (s *Server) rejectInbound(outbound chan<- any, sessionID, code string, err error) {
	ev := protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    "gateway",
		Detail:    err.Error(),
	}
	select {
	case outbound <- ev:
	default:
		// Keep websocket writes single-threaded; drop if the queue is saturated.
		s.sessionEvent("error_event_dropped")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondErr maps service errors to a status and code.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progress.ErrNotFound), errors.Is(err, store.ErrNotFound),
		errors.Is(err, toolkit.ErrUnknownChapter), errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, progress.ErrDayLocked):
		respondError(w, http.StatusConflict, "day_locked", err.Error())
	case errors.Is(err, tutor.ErrPromptRejected):
		respondError(w, http.StatusBadRequest, "prompt_rejected", err.Error())
	case errors.Is(err, toolkit.ErrBadEntry):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		kind := failure.KindOf(err)
		respondError(w, statusForKind(kind), string(kind), err.Error())
	}
}

func statusForKind(kind failure.Kind) int {
	switch kind {
	case failure.KindPermissionDenied:
		return http.StatusForbidden
	case failure.KindConfigurationMissing:
		return http.StatusServiceUnavailable
	case failure.KindRateLimited:
		return http.StatusTooManyRequests
	case failure.KindServerError, failure.KindConnectivity, failure.KindMalformedPayload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userID identifies the caller by the X-User-ID header or the user_id query
// parameter.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" {
		return id
	}
	return "anonymous"
}

func (s *Server) storeMode() string {
	if s.deps.StoreMode == "" {
		return "in-memory"
	}
	return s.deps.StoreMode
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.SessionState:
		return m.Type, true
	case protocol.AssistantAudioChunk:
		return m.Type, true
	case protocol.AssistantAudioStop:
		return m.Type, true
	case protocol.PlaybackInterrupted:
		return m.Type, true
	case protocol.Transcript:
		return m.Type, true
	case protocol.AssistantTurnEnd:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
