package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewAddsServiceAndFiltersDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Service: "sales-test"})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered at info level: %s", out)
	}
	if !strings.Contains(out, `"service":"sales-test"`) || !strings.Contains(out, `"message":"visible"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestNewDebugLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Debug: true})
	logger.Debug().Msg("shown")

	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
	if strings.Contains(buf.String(), `"service"`) {
		t.Fatalf("empty service must be omitted: %s", buf.String())
	}
}
