package observability

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/fdtd-bridge/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("FDTD_TRACING_ENABLED", "TRUE")
	t.Setenv("FDTD_TRACING_EXPORTER", "OTLP")
	t.Setenv("FDTD_TRACING_SERVICE_NAME", "")
	t.Setenv("FDTD_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("FDTD_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("FDTD_TRACING_FILE", "spans.json")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled {
		t.Fatalf("expected tracing enabled")
	}
	if cfg.Exporter != "otlp" {
		t.Fatalf("Exporter = %q, want otlp", cfg.Exporter)
	}
	if cfg.ServiceName != "fdtd-setup" {
		t.Fatalf("ServiceName = %q, want fdtd-setup", cfg.ServiceName)
	}
	if cfg.SampleRatio != 0.5 {
		t.Fatalf("SampleRatio = %v, want 0.5", cfg.SampleRatio)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Fatalf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.File != "spans.json" {
		t.Fatalf("File = %q", cfg.File)
	}
}

func TestTracingConfigRejectsBadRatio(t *testing.T) {
	t.Setenv("FDTD_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("SampleRatio = %v, want default 1", got)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	_, span := Tracer().Start(context.Background(), "fdtd.plan")
	if span.SpanContext().IsSampled() {
		t.Fatalf("noop tracer produced a sampled span")
	}
	span.End()
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestInitTracingStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "fdtd-test",
		SampleRatio: 1,
		Writer:      &buf,
	}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(ctx, TracingConfig{}, nil)
	})

	_, span := Tracer().Start(ctx, "solver.prepare")
	EndSpan(span, errors.New("script rejected"))
	ShutdownWithTimeout(ctx, shutdown, logging.Noop())

	out := buf.String()
	for _, want := range []string{`"Name": "solver.prepare"`, "script rejected", "fdtd-test"} {
		if !strings.Contains(out, want) {
			t.Fatalf("exported spans missing %q:\n%s", want, out)
		}
	}
}

func TestInitTracingFileExporter(t *testing.T) {
	ctx := context.Background()
	if _, err := InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "file"}, nil); err == nil {
		t.Fatalf("expected error without a span file")
	}

	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "file", File: path, SampleRatio: 1}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(ctx, TracingConfig{}, nil)
	})

	_, span := Tracer().Start(ctx, "fdtd.run")
	EndSpan(span, nil)
	ShutdownWithTimeout(ctx, shutdown, nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read span file: %v", err)
	}
	if !strings.Contains(string(data), `"Name":"fdtd.run"`) {
		t.Fatalf("span file missing fdtd.run: %s", data)
	}
}
