package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitWithoutEndpointKeepsNoop(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if p.Enabled() {
		t.Fatal("expected tracing to be disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitStdoutExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var out bytes.Buffer
	p, err := Init(context.Background(), Config{Endpoint: StdoutEndpoint, ServiceName: "portal-test", Output: &out})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !p.Enabled() {
		t.Fatal("expected tracing to be enabled")
	}

	_, span := otel.Tracer("portal-test").Start(context.Background(), "shop.Purchase")
	if !span.IsRecording() {
		t.Fatal("span from the installed provider is not recording")
	}
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(out.String(), "shop.Purchase") || !strings.Contains(out.String(), "portal-test") {
		t.Fatalf("exported output missing span: %s", out.String())
	}
}
