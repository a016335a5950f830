package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/config"
	"github.com/spec-kit/dispute-engine/internal/events"
)

// NotificationService informs the external dispatcher of dispute and
// offer transitions. Delivery is best-effort and never blocks a
// transition.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDisputeFiled, n.handleDisputeFiled)
	n.dispatcher.Subscribe(events.EventDisputeStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventDisputePriorityChanged, n.handlePriorityChanged)
	n.dispatcher.Subscribe(events.EventMessageAdded, n.handleMessageAdded)
	n.dispatcher.Subscribe(events.EventEvidenceAdded, n.handleEvidenceAdded)
	n.dispatcher.Subscribe(events.EventOfferCreated, n.handleOfferCreated)
	n.dispatcher.Subscribe(events.EventOfferResolved, n.handleOfferResolved)
	n.dispatcher.Subscribe(events.EventSettlementEmitted, n.handleSettlementEmitted)
}

func (n *NotificationService) handleDisputeFiled(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeFiled", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeStatusChanged", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePriorityChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputePriorityChanged", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMessageAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeMessageAdded", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEvidenceAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeEvidenceAdded", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleOfferCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("SettlementOfferCreated", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleOfferResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("SettlementOfferResolved", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSettlementEmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("SettlementInstructionEmitted", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}
