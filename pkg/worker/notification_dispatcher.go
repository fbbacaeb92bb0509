package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evura/portal-api/internal/email"
	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/pkg/circuitbreaker"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/messaging"
	"github.com/evura/portal-api/pkg/metrics"
)

type NotificationDispatcherConfig struct {
	Channel     string
	SendTimeout time.Duration
}

// Renderer builds the subject and HTML body of a notification.
type Renderer interface {
	Render(event model.NotificationEvent, data map[string]string) (string, string, error)
}

// NotificationDispatcher consumes queued notifications and hands them to the
// mail transport. Each message gets one delivery attempt; the outcome is
// written back to the notification row.
type NotificationDispatcher struct {
	repo     repository.NotificationRepository
	broker   messaging.Broker
	renderer Renderer
	sender   email.Sender
	breaker  *circuitbreaker.CircuitBreaker
	config   NotificationDispatcherConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewNotificationDispatcher(
	repo repository.NotificationRepository,
	broker messaging.Broker,
	renderer Renderer,
	sender email.Sender,
	config NotificationDispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *NotificationDispatcher {
	if config.Channel == "" {
		panic("Channel must be set")
	}
	if config.SendTimeout <= 0 {
		panic("SendTimeout must be greater than 0")
	}

	return &NotificationDispatcher{
		repo:     repo,
		broker:   broker,
		renderer: renderer,
		sender:   sender,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "mail-sender",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start blocks until ctx is cancelled or the subscription ends.
func (d *NotificationDispatcher) Start(ctx context.Context) error {
	msgs, err := d.broker.Subscribe(ctx, d.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", d.config.Channel, err)
	}

	d.logger.Info("Starting notification dispatcher", "channel", d.config.Channel)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutting down notification dispatcher")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				d.logger.Warn("Notification subscription closed")
				return nil
			}
			if err := d.Handle(ctx, payload); err != nil {
				d.logger.Error(err, "Failed to dispatch notification")
			}
		}
	}
}

// Handle delivers one queued notification.
func (d *NotificationDispatcher) Handle(ctx context.Context, payload []byte) error {
	timer := prometheus.NewTimer(d.metrics.NotificationDispatch)
	defer timer.ObserveDuration()

	var n model.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		d.metrics.NotificationsFailed.Inc()
		return fmt.Errorf("failed to decode notification: %w", err)
	}

	subject, body, err := d.renderer.Render(n.Event, n.Data)
	if err != nil {
		return d.fail(ctx, &n, err)
	}
	if n.Subject != "" {
		subject = n.Subject
	}

	err = d.breaker.Execute(func() error {
		sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
		defer cancel()
		return d.sender.Send(sendCtx, &email.Message{To: n.Recipient, Subject: subject, HTML: body})
	})
	if err != nil {
		return d.fail(ctx, &n, err)
	}

	d.metrics.NotificationsSent.Inc()
	err = d.repo.MarkSent(ctx, n.ID, d.now())
	d.metrics.ObserveDB("mark_notification_sent", err)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s sent: %w", n.ID, err)
	}
	d.logger.Debug("Notification sent", "notification_id", n.ID.String(), "event", string(n.Event))
	return nil
}

func (d *NotificationDispatcher) fail(ctx context.Context, n *model.Notification, cause error) error {
	d.metrics.NotificationsFailed.Inc()
	reason := cause.Error()
	if errors.Is(cause, circuitbreaker.ErrOpen) {
		reason = "mail transport unavailable: " + reason
	}
	err := d.repo.MarkFailed(ctx, n.ID, reason)
	d.metrics.ObserveDB("mark_notification_failed", err)
	if err != nil {
		d.logger.Error(err, "Failed to update notification status", "notification_id", n.ID.String())
	}
	return fmt.Errorf("notification %s (%s): %w", n.ID, n.Event, cause)
}
