package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/events"
)

// AuditService records auth lifecycle events as structured audit logs.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventPrincipalRegistered, a.handlePrincipalRegistered)
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleTokenRefreshed)
}

func (a *AuditService) handlePrincipalRegistered(ctx context.Context, event events.Event) error {
	a.logger.Info("PrincipalRegistered",
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleLoginSucceeded(ctx context.Context, event events.Event) error {
	a.logger.Info("LoginSucceeded",
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleTokenRefreshed(ctx context.Context, event events.Event) error {
	a.logger.Info("TokenRefreshed",
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	return nil
}
