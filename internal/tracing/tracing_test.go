package tracing

import (
	"context"
	"testing"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.IsEnabled() {
		t.Error("Expected provider to report disabled")
	}
	if p.Tracer("test") == nil {
		t.Error("Expected a noop tracer even when disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown of disabled provider failed: %v", err)
	}
}

func TestNewProvider_MissingServiceName(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, SamplingRate: 0.5})
	if err == nil {
		t.Error("Expected error for missing service name")
	}
}

func TestNewProvider_InvalidSamplingRate(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, ServiceName: "galleria", SamplingRate: 1.5})
	if err == nil {
		t.Error("Expected error for sampling rate > 1")
	}
}
