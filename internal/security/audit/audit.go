package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/tenantonboard/internal/observability/requestid"
)

// Outcome values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Logger writes audit records for prospectus lifecycle events
type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("log_type", "audit")), now: time.Now}
}

// LogAction records one action against a prospectus
func (al *Logger) LogAction(ctx context.Context, action, prospectusID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", "tenant_prospectus"),
		slog.String("resource_id", prospectusID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestid.From(ctx)),
		slog.Time("timestamp", al.now()),
	)
}

func (al *Logger) LogCreated(ctx context.Context, prospectusID, slug string) {
	al.LogAction(ctx, "create", prospectusID, StatusSuccess, "slug="+slug)
}

func (al *Logger) LogTransition(ctx context.Context, prospectusID, from, to, status string) {
	al.LogAction(ctx, "promote", prospectusID, status, from+" -> "+to)
}

func (al *Logger) LogActivationIssued(ctx context.Context, prospectusID string) {
	al.LogAction(ctx, "identity_activation", prospectusID, StatusSuccess, "")
}

func (al *Logger) LogVerification(ctx context.Context, prospectusID, status, reason string) {
	al.LogAction(ctx, "identity_verification", prospectusID, status, reason)
}
