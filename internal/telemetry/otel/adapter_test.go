package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"greenline/backend/internal/telemetry/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &domain.Event{OrgID: "org1"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &domain.Event{
		OrgID:     "org1",
		UserID:    "user1",
		EventType: "route_denied",
		Source:    "audit",
		Metadata:  []byte(`{"path":"/quotes"}`),
		CreatedAt: at,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec
	if got := string(rec.Body().AsBytes()); got != `{"path":"/quotes"}` {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{"org_id": "org1", "user_id": "user1", "event_type": "route_denied", "source": "audit"}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %s = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["session_id"]; ok {
		t.Error("empty session_id should not be set")
	}
}

func TestEmit_DefaultTimestamp(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	if err := em.Emit(context.Background(), &domain.Event{EventType: "sign_in"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if capture.rec.Timestamp().IsZero() {
		t.Error("timestamp should default to now")
	}
	if !capture.rec.Body().Empty() {
		t.Error("body should be empty without metadata")
	}
}
