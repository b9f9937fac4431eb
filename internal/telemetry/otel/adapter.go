package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"greenline/backend/internal/telemetry"
	"greenline/backend/internal/telemetry/domain"
)

// RecordEmitter is the part of an OTel log.Logger used by the event emitter.
type RecordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("greenline.audit")}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to l.
func NewEventEmitterWithLogger(l RecordEmitter) telemetry.EventEmitter {
	if l == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	attrs := []struct{ key, value string }{
		{"org_id", event.OrgID},
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"event_type", event.EventType},
		{"source", event.Source},
	}
	for _, a := range attrs {
		if a.value != "" {
			rec.AddAttributes(otellog.String(a.key, a.value))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
