package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, event, recipient, subject, data, status, created_at, updated_at)
		VALUES (:id, :event, :recipient, :subject, :data, :status, :created_at, :updated_at)
	`, n)
	return mapError("create notification", err)
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, `SELECT * FROM notifications WHERE id = $1`, id); err != nil {
		return nil, mapError("get notification", err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = $1, sent_at = $2, last_error = NULL, updated_at = $2
		WHERE id = $3
	`, model.NotificationStatusSent, at, id)
	if err != nil {
		return mapError("mark notification sent", err)
	}
	return expectRows("mark notification sent", res)
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4
	`, model.NotificationStatusFailed, reason, time.Now().UTC(), id)
	if err != nil {
		return mapError("mark notification failed", err)
	}
	return expectRows("mark notification failed", res)
}

func (r *notificationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE created_at < $1 AND status <> $2`,
		cutoff, model.NotificationStatusPending)
	if err != nil {
		return 0, mapError("delete old notifications", err)
	}
	n, err := res.RowsAffected()
	return n, mapError("delete old notifications", err)
}
