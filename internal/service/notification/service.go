package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evura/portal-api/internal/email"
	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/messaging"
	"github.com/evura/portal-api/pkg/metrics"
)

const DefaultChannel = "notifications"

// Notifier is what the workflow services depend on.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

type Config struct {
	Channel        string
	EnqueueTimeout time.Duration
}

// Service persists notifications and hands them to the dispatcher queue.
// Delivery itself happens in pkg/worker.
type Service struct {
	repo    repository.NotificationRepository
	broker  messaging.Broker
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, broker messaging.Broker, config Config, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = 2 * time.Second
	}
	return &Service{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Service) Notify(ctx context.Context, n *model.Notification) error {
	if err := validateNotification(n); err != nil {
		return apperrors.NewNotification(fmt.Errorf("invalid notification: %w", err))
	}
	if n.Subject == "" {
		n.Subject = email.Subject(n.Event)
	}
	n.Status = model.NotificationStatusPending

	err := s.repo.Create(ctx, n)
	s.metrics.ObserveDB("create_notification", err)
	if err != nil {
		return apperrors.NewNotification(fmt.Errorf("failed to create notification: %w", err))
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.config.EnqueueTimeout)
	defer cancel()
	if err := s.broker.Publish(pubCtx, s.config.Channel, n); err != nil {
		// Nothing will pick the row up, so it must not stay pending.
		if markErr := s.repo.MarkFailed(ctx, n.ID, "enqueue failed: "+err.Error()); markErr != nil {
			s.logger.Error(markErr, "Failed to mark unqueued notification", "notification_id", n.ID.String())
		}
		return apperrors.NewNotification(fmt.Errorf("failed to enqueue notification: %w", err))
	}

	s.metrics.NotificationsEnqueued.WithLabelValues(string(n.Event)).Inc()
	s.logger.Debug("Notification enqueued", "notification_id", n.ID.String(), "event", string(n.Event))
	return nil
}

func validateNotification(n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification is nil")
	}
	if n.Event == "" {
		return fmt.Errorf("event is required")
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	return nil
}
