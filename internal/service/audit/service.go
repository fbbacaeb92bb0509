package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

type LogOptions struct {
	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
}

// Log creates an audit log entry. A nil actor records an anonymous access.
func (s *Service) Log(ctx context.Context, actor *model.Principal, action, entityType, entityID string, opts *LogOptions) error {
	if opts == nil {
		opts = &LogOptions{}
	}
	log := &model.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   model.JSONMap(opts.Metadata),
		IPAddress:  opts.IPAddress,
		UserAgent:  opts.UserAgent,
		CreatedAt:  s.now(),
	}
	if actor != nil {
		id := actor.UserID
		log.ActorID = &id
		log.ActorRole = string(actor.Role)
	}
	return s.repo.Create(ctx, log)
}

func (s *Service) List(ctx context.Context, filter repository.AuditFilter) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, filter)
}
