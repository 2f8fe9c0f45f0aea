package telemetry

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	MetricTotalCalls         = "total_calls"
	MetricLLMCalls           = "llm_calls"
	MetricToolCalls          = "tool_calls"
	MetricToolCacheHits      = "tool_cache_hits"
	MetricErrors             = "errors"
	MetricTotalAgentDuration = "total_agent_duration_ms"
)

// Metrics holds process-wide running counters shared by every turn.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]float64
	logger   zerolog.Logger
}

type Snapshot struct {
	TotalCalls           int64   `json:"total_calls"`
	LLMCalls             int64   `json:"llm_calls"`
	ToolCalls            int64   `json:"tool_calls"`
	ToolCacheHits        int64   `json:"tool_cache_hits"`
	Errors               int64   `json:"errors"`
	TotalAgentDurationMs float64 `json:"total_agent_duration_ms"`
	AvgAgentDurationMs   float64 `json:"avg_agent_duration_ms"`
}

func NewMetrics(logger ...zerolog.Logger) *Metrics {
	l := log.Logger
	if len(logger) > 0 {
		l = logger[0]
	}
	return &Metrics{
		counters: map[string]float64{
			MetricTotalCalls:         0,
			MetricLLMCalls:           0,
			MetricToolCalls:          0,
			MetricToolCacheHits:      0,
			MetricErrors:             0,
			MetricTotalAgentDuration: 0,
		},
		logger: l,
	}
}

// Update adds delta to a known counter. Unknown names are logged and ignored.
func (m *Metrics) Update(name string, delta float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.counters[name]; !ok {
		m.logger.Warn().Str("metric", name).Msg("telemetry: unknown metric")
		return false
	}
	m.counters[name] += delta
	return true
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalCalls:           int64(m.counters[MetricTotalCalls]),
		LLMCalls:             int64(m.counters[MetricLLMCalls]),
		ToolCalls:            int64(m.counters[MetricToolCalls]),
		ToolCacheHits:        int64(m.counters[MetricToolCacheHits]),
		Errors:               int64(m.counters[MetricErrors]),
		TotalAgentDurationMs: m.counters[MetricTotalAgentDuration],
	}
	if s.TotalCalls > 0 {
		s.AvgAgentDurationMs = round2(s.TotalAgentDurationMs / float64(s.TotalCalls))
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
