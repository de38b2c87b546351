// Package app wires configuration into the running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/antoniostano/bootcamp/internal/appstate"
	"github.com/antoniostano/bootcamp/internal/config"
	"github.com/antoniostano/bootcamp/internal/httpapi"
	"github.com/antoniostano/bootcamp/internal/memory"
	"github.com/antoniostano/bootcamp/internal/observability"
	"github.com/antoniostano/bootcamp/internal/progress"
	"github.com/antoniostano/bootcamp/internal/reliability"
	"github.com/antoniostano/bootcamp/internal/session"
	"github.com/antoniostano/bootcamp/internal/store"
	"github.com/antoniostano/bootcamp/internal/toolkit"
	"github.com/antoniostano/bootcamp/internal/tutor"
	"github.com/antoniostano/bootcamp/internal/voice"
)

type VoiceInfo struct {
	Provider string
	Detail   string
	Voice    string
	Model    string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Bridge   *voice.Bridge
	Tutor    *tutor.Tutor
	Progress *progress.Tracker
	Toolkit  *toolkit.Service
	App      *appstate.Manager
	Metrics  *observability.Metrics
	Voice    VoiceInfo

	// Cleanup releases the stores on shutdown.
	Cleanup func() error
}

// RetryPolicy builds the consultant retry policy from cfg.
func RetryPolicy(cfg config.Config) reliability.RetryPolicy {
	p := reliability.DefaultRetryPolicy()
	p.MaxAttempts = cfg.RetryMaxAttempts
	p.BaseDelay = cfg.RetryBaseDelay
	return p
}

// OpenStore opens the badger store under cfg.DataDir, or in memory when the
// directory is empty.
func OpenStore(cfg config.Config) (*store.Store, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return store.OpenInMemory()
	}
	return store.Open(store.Options{Dir: cfg.DataDir})
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	kv, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	transcripts, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}
	storeMode := "in-memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		storeMode = "postgres"
	}
	closeStores := func() error {
		return errors.Join(transcripts.Close(), kv.Close())
	}

	setup, err := resolveVoiceRemote(cfg)
	if err != nil {
		_ = closeStores()
		return nil, err
	}
	// Handlers report the backend actually in use.
	cfg.VoiceProvider = setup.resolvedProvider

	curriculum, err := progress.DefaultCurriculum()
	if err != nil {
		_ = closeStores()
		return nil, fmt.Errorf("curriculum: %w", err)
	}
	content, err := toolkit.DefaultContent()
	if err != nil {
		_ = closeStores()
		return nil, fmt.Errorf("toolkit content: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	bridge := voice.NewBridge(setup.remote, sessions, metrics, voice.Options{
		Live:        liveConfig(cfg),
		QueueFrames: cfg.CaptureQueueFrames,
		Transcripts: transcripts,
	})
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		bridge.Stop(s.ID)
	})

	tut := tutor.New(tutor.NewGeminiGenerator(cfg.GeminiAPIKey), tutor.Options{
		TextModel:   cfg.TextModel,
		ImageModel:  cfg.ImageModel,
		Retry:       RetryPolicy(cfg),
		Transcripts: transcripts,
		Metrics:     metrics,
	})
	tracker := progress.NewTracker(kv, curriculum, cfg.StartDate)
	tools := toolkit.NewService(kv, content, cfg.ExamDate)
	apps := appstate.NewManager(kv, transcripts)

	api := httpapi.New(cfg, httpapi.Deps{
		Sessions:  sessions,
		Voice:     bridge,
		Tutor:     tut,
		Progress:  tracker,
		Toolkit:   tools,
		App:       apps,
		Metrics:   metrics,
		StoreMode: storeMode,
	})

	log.Printf("voice provider: %s", setup.detail)
	log.Printf("transcript store: %s, study data: %s", storeMode, dataLabel(cfg.DataDir))

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Bridge:   bridge,
		Tutor:    tut,
		Progress: tracker,
		Toolkit:  tools,
		App:      apps,
		Metrics:  metrics,
		Voice: VoiceInfo{
			Provider: setup.resolvedProvider,
			Detail:   setup.detail,
			Voice:    cfg.LiveVoice,
			Model:    cfg.LiveModel,
		},
		Cleanup: closeStores,
	}, nil
}

func dataLabel(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return "in-memory"
	}
	return dir
}
