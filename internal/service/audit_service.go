package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/config"
	"github.com/spec-kit/user-directory/internal/events"
)

// AuditService records user lifecycle events for traceability.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventUserCreated,
		events.EventUserUpdated,
		events.EventUserDeleted,
		events.EventUserStatusChanged,
		events.EventUserRoleChanged,
		events.EventUserLogin,
	} {
		a.dispatcher.Subscribe(eventType, a.record)
	}
}

func (a *AuditService) record(ctx context.Context, event events.Event) error {
	a.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.String("actor_id", event.ActorID),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload))
	a.sendWebhookStub(ctx, event)
	return nil
}

func (a *AuditService) sendWebhookStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID))
}
