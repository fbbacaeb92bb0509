package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type notificationRepository struct{ db *database }

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n.ID = newID(n.ID)
	now := r.db.now()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}
	cp := *n
	r.db.notifications[n.ID] = &cp
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	n, ok := r.db.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.Status = model.NotificationStatusSent
	n.SentAt = &at
	n.LastError = nil
	n.UpdatedAt = at
	return nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.Status = model.NotificationStatusFailed
	n.LastError = &reason
	n.UpdatedAt = r.db.now()
	return nil
}

func (r *notificationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted int64
	for id, n := range r.db.notifications {
		if n.CreatedAt.Before(cutoff) && n.Status != model.NotificationStatusPending {
			delete(r.db.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

type auditRepository struct{ db *database }

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	log.ID = newID(log.ID)
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.db.now()
	}
	cp := *log
	r.db.auditLogs = append(r.db.auditLogs, &cp)
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]*model.AuditLog, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.AuditLog{}
	for i := len(r.db.auditLogs) - 1; i >= 0; i-- {
		l := r.db.auditLogs[i]
		if filter.ActorID != nil && (l.ActorID == nil || *l.ActorID != *filter.ActorID) {
			continue
		}
		if filter.EntityType != "" && l.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && l.EntityID != filter.EntityID {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.auditLogs[:0]
	var deleted int64
	for _, l := range r.db.auditLogs {
		if l.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	r.db.auditLogs = kept
	return deleted, nil
}
