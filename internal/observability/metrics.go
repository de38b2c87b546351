package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions        prometheus.Gauge
	SessionEvents         *prometheus.CounterVec
	WSMessages            *prometheus.CounterVec
	ProviderErrors        *prometheus.CounterVec
	RetryAttempts         *prometheus.CounterVec
	ChatRequests          *prometheus.CounterVec
	CaptureDrops          *prometheus.CounterVec
	CaptureChunks         prometheus.Counter
	PlaybackChunks        prometheus.Counter
	PlaybackInterruptions prometheus.Counter
	FirstAudioLatency     prometheus.Histogram
	ConnectLatency        prometheus.Histogram

	stages *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active live voice sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Voice session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Generative provider errors by operation and failure kind.",
		}, []string{"operation", "kind"}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries scheduled by the retry policy, by operation.",
		}, []string{"operation"}),
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by channel and outcome.",
		}, []string{"channel", "outcome"}),
		CaptureDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_dropped_chunks_total",
			Help:      "Microphone chunks dropped before reaching the remote session, by reason.",
		}, []string{"reason"}),
		CaptureChunks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sent_chunks_total",
			Help:      "Microphone chunks forwarded to the remote session.",
		}),
		PlaybackChunks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_scheduled_chunks_total",
			Help:      "Assistant audio chunks scheduled for playback.",
		}),
		PlaybackInterruptions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_interruptions_total",
			Help:      "Barge-in interruptions that cleared scheduled playback.",
		}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency from session open to first assistant audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
		ConnectLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_latency_ms",
			Help:      "Latency to open the remote live session in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1600, 3200},
		}),
		stages: newLatencyWindow(256),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe(StageFirstAudio, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveConnectLatency(d time.Duration) {
	m.ConnectLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe(StageConnect, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveCaptureDrop(reason string) {
	m.CaptureDrops.WithLabelValues(reason).Inc()
	m.stages.Mark("capture_drop_" + reason)
}

func (m *Metrics) ObserveInterruption() {
	m.PlaybackInterruptions.Inc()
	m.stages.Mark(IndicatorInterrupted)
}

func (m *Metrics) ObserveChatLatency(channel string, d time.Duration) {
	m.stages.Observe("chat_"+channel, float64(d.Milliseconds()))
}

// StageSnapshot summarises the recent latency window for the stats endpoint.
func (m *Metrics) StageSnapshot() LatencySnapshot {
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
