// Package audit records best-effort audit events for sign-in, tenancy and authorization decisions.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"greenline/backend/internal/audit/domain"
	auditrepo "greenline/backend/internal/audit/repository"
	"greenline/backend/internal/telemetry"
	telemetrydomain "greenline/backend/internal/telemetry/domain"
)

// Actions recorded by the core.
const (
	ActionSignIn             = "sign_in"
	ActionSignOut            = "sign_out"
	ActionSignUp             = "sign_up"
	ActionOrganizationCreate = "organization_created"
	ActionOrganizationUpdate = "organization_updated"
	ActionInvitationSent     = "invitation_sent"
	ActionInvitationAccepted = "invitation_accepted"
	ActionRouteDenied        = "route_denied"
	ActionQuoteStatus        = "quote_status_changed"
	ActionDocumentAccess     = "document_permissions_changed"
)

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource string, metadata map[string]string)
}

// Nop returns an AuditLogger that drops every event.
func Nop() AuditLogger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) LogEvent(context.Context, string, string, string, string, map[string]string) {}

// Logger implements AuditLogger using the audit repository and an optional telemetry emitter.
type Logger struct {
	repo    auditrepo.Repository
	emitter telemetry.EventEmitter
	log     *zap.Logger
	now     func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and, when emitter is non-nil, also
// emits each event asynchronously. repo may be nil to only emit.
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, emitter: emitter, log: logger, now: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource string, metadata map[string]string) {
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.Warn("audit: failed to log event",
				zap.String("action", action), zap.String("resource", resource), zap.Error(err))
		}
	}
	if l.emitter != nil {
		telemetry.EmitAsync(l.emitter, l.log, toEvent(entry))
	}
}

func toEvent(a *domain.AuditLog) *telemetrydomain.Event {
	ev := &telemetrydomain.Event{
		OrgID:     a.OrgID,
		UserID:    a.UserID,
		EventType: a.Action,
		Source:    "audit:" + a.Resource,
		CreatedAt: a.CreatedAt,
	}
	if len(a.Metadata) > 0 {
		if b, err := json.Marshal(a.Metadata); err == nil {
			ev.Metadata = b
		}
	}
	return ev
}
