package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/ibistek-uty/incubation-api/internal/events"
)

// StartAuditWorker subscribes an audit logger to every auth event so account
// activity leaves a structured trail.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}

	audit := logger.Named("audit")
	handler := func(_ context.Context, event events.Event) error {
		audit.Info(string(event.Type),
			zap.String("event_id", event.ID),
			zap.String("user_id", event.UserID),
			zap.String("role", string(event.Role)),
			zap.Time("at", event.Timestamp),
			zap.Any("payload", event.Payload),
		)
		return nil
	}

	for _, eventType := range []events.EventType{
		events.EventUserRegistered,
		events.EventUserLoggedIn,
		events.EventUserDeleted,
		events.EventPasswordResetRequested,
		events.EventPasswordChanged,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
}
