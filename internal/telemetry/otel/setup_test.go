package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(ctx, Config{Endpoint: endpoint, ServiceName: "test-service"}, nil)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) returned nil providers: %+v", endpoint, p)
		}
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("second shutdown: %v", err)
		}
	}
}

func TestGRPCTarget(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{name: "bare host", cfg: Config{Endpoint: "localhost:4317"}, wantTarget: "localhost:4317", wantInsecure: true},
		{name: "http", cfg: Config{Endpoint: "http://collector:4317"}, wantTarget: "collector:4317", wantInsecure: true},
		{name: "https", cfg: Config{Endpoint: "https://collector:4317"}, wantTarget: "collector:4317"},
		{name: "https forced insecure", cfg: Config{Endpoint: "https://collector:4317", Insecure: true}, wantTarget: "collector:4317", wantInsecure: true},
		{name: "path ignored", cfg: Config{Endpoint: "http://collector:4317/v1/traces"}, wantTarget: "collector:4317", wantInsecure: true},
		{name: "missing host", cfg: Config{Endpoint: "http://"}, wantErr: true},
		{name: "malformed", cfg: Config{Endpoint: "http://[invalid"}, wantErr: true},
		{name: "no scheme", cfg: Config{Endpoint: "://invalid"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, insecure, err := tt.cfg.grpcTarget()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("grpcTarget(%q) = %q, want error", tt.cfg.Endpoint, target)
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcTarget(%q): %v", tt.cfg.Endpoint, err)
			}
			if target != tt.wantTarget || insecure != tt.wantInsecure {
				t.Errorf("grpcTarget(%q) = (%q, %v), want (%q, %v)", tt.cfg.Endpoint, target, insecure, tt.wantTarget, tt.wantInsecure)
			}
		})
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), Config{Endpoint: "http://"}, nil); err == nil {
		t.Fatal("NewProviders with missing host should return error")
	}
}

func TestSetGlobal(t *testing.T) {
	oldTP := otel.GetTracerProvider()
	oldMP := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	}()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	(&Providers{TracerProvider: tp}).SetGlobal()

	if otel.GetTracerProvider() == oldTP {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() != oldMP {
		t.Error("MeterProvider should not change when nil")
	}

	// Should not panic
	(&Providers{}).SetGlobal()
}
