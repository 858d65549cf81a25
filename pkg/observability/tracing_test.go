package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing should produce invalid span contexts")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() { _, _ = InitTracing(context.Background(), TracingConfig{}, nil) })

	_, span := Tracer().Start(context.Background(), "watershed.breach")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), "watershed.breach") {
		t.Errorf("exported spans missing span name:\n%s", buf.String())
	}
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported tracing exporter") {
		t.Errorf("err = %v, want unsupported exporter", err)
	}
}

func TestShutdownWithTimeoutLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{})

	ShutdownWithTimeout(context.Background(), nil, logger)
	if buf.Len() != 0 {
		t.Errorf("nil shutdown should log nothing, got %q", buf.String())
	}

	ShutdownWithTimeout(context.Background(), func(context.Context) error {
		return errors.New("flush failed")
	}, logger)
	if !strings.Contains(buf.String(), "flush failed") {
		t.Errorf("log = %q, want shutdown failure", buf.String())
	}
}
