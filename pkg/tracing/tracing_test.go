package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

// Tests here replace the global tracer provider and do not run in parallel.

func restoreProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestSetupDisabledLeavesProvider(t *testing.T) {
	restoreProvider(t)
	before := otel.GetTracerProvider()

	rt, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if rt.Tracer == nil {
		t.Fatal("expected a tracer")
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("disabled tracing must not replace the global provider")
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	restoreProvider(t)
	before := otel.GetTracerProvider()

	var buf bytes.Buffer
	rt, err := Setup(context.Background(), Config{Enabled: true, ServiceName: "sales-test", SampleRatio: 1}, WithWriter(&buf))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if otel.GetTracerProvider() == before {
		t.Fatal("expected the global provider to be replaced")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "tool:search_product")
	span.End()
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "tool:search_product") {
		t.Fatalf("span not exported: %s", out)
	}
	if !strings.Contains(out, "sales-test") {
		t.Fatalf("service name missing from exported resource: %s", out)
	}
}
