package telemetry

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestMetricsUnknownName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := NewMetrics(zerolog.New(&buf))
	if m.Update("bogus", 1) {
		t.Fatal("unknown metric must be rejected")
	}
	if !strings.Contains(buf.String(), "telemetry: unknown metric") {
		t.Fatalf("expected warning, got %s", buf.String())
	}
	if m.Snapshot() != (Snapshot{}) {
		t.Fatalf("counters must be unchanged: %+v", m.Snapshot())
	}
}

func TestMetricsAverage(t *testing.T) {
	t.Parallel()

	m := NewMetrics(zerolog.Nop())
	if got := m.Snapshot().AvgAgentDurationMs; got != 0 {
		t.Fatalf("expected 0 average without calls, got %v", got)
	}
	m.Update(MetricTotalCalls, 3)
	m.Update(MetricTotalAgentDuration, 100)
	if got := m.Snapshot().AvgAgentDurationMs; got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
}

func TestMetricsConcurrentUpdates(t *testing.T) {
	t.Parallel()

	m := NewMetrics(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.Update(MetricToolCalls, 1)
			}
		}()
	}
	wg.Wait()
	if got := m.Snapshot().ToolCalls; got != 1000 {
		t.Fatalf("expected 1000, got %d", got)
	}
}
