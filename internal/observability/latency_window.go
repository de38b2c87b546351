package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StageConnect    = "connect"
	StageFirstAudio = "first_audio"

	IndicatorInterrupted = "interrupted"
)

// StageStats summarises one latency stage over the rolling window.
type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// latencyWindow keeps the last maxSamples observations per stage in a ring.
type latencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	rings      map[string]*ring
	marks      map[string]int
}

type ring struct {
	values []float64
	next   int
	full   bool
	last   float64
}

func (r *ring) samples() []float64 {
	n := r.next
	if r.full {
		n = len(r.values)
	}
	out := make([]float64, n)
	copy(out, r.values[:n])
	return out
}

func newLatencyWindow(maxSamples int) *latencyWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &latencyWindow{
		maxSamples: maxSamples,
		rings:      make(map[string]*ring),
		marks:      make(map[string]int),
	}
}

func (w *latencyWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.rings[stage]
	if !ok {
		r = &ring{values: make([]float64, w.maxSamples)}
		w.rings[stage] = r
	}
	r.values[r.next] = ms
	r.last = ms
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.full = true
	}
}

// Mark counts an event that has no duration.
func (w *latencyWindow) Mark(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.marks[name]++
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, stage := range sortedKeys(w.rings) {
		r := w.rings[stage]
		samples := r.samples()
		if len(samples) == 0 {
			continue
		}
		sort.Float64s(samples)
		var sum float64
		for _, v := range samples {
			sum += v
		}
		snap.Stages = append(snap.Stages, StageStats{
			Stage:       stage,
			Samples:     len(samples),
			LastMS:      round2(r.last),
			AvgMS:       round2(sum / float64(len(samples))),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			TargetP95MS: targetP95MS(stage),
		})
	}
	for _, name := range sortedKeys(w.marks) {
		if n := w.marks[name]; n > 0 {
			snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: n})
		}
	}
	return snap
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func targetP95MS(stage string) float64 {
	switch stage {
	case StageConnect:
		return 800
	case StageFirstAudio:
		return 1200
	case "chat_consultant", "chat_casual":
		return 4000
	default:
		return 0
	}
}
