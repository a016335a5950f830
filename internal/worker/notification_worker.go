package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/service"
)

// StartNotificationWorker registers notification handlers on the event
// dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	notificationService.RegisterHandlers()
	logger.Info("notification worker registered")
}
