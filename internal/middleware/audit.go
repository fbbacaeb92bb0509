package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/service/audit"
)

// AuditLogger is the part of the audit service the middleware needs.
type AuditLogger interface {
	Log(ctx context.Context, actor *model.Principal, action, entityType, entityID string, opts *audit.LogOptions) error
}

type AuditMiddleware struct {
	auditSvc AuditLogger
}

func NewAuditMiddleware(auditSvc AuditLogger) *AuditMiddleware {
	return &AuditMiddleware{auditSvc: auditSvc}
}

// Record writes an audit entry after the handler ran. The entity id comes
// from the idParam route parameter, or is the caller's own id when idParam is
// empty. Failing to write the entry never fails the request.
func (m *AuditMiddleware) Record(entityType, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		principal, _ := PrincipalFrom(c)
		entityID := ""
		switch {
		case idParam != "":
			entityID = c.Param(idParam)
		case principal != nil:
			entityID = principal.UserID.String()
		}

		ctx := context.WithoutCancel(c.Request.Context())
		err := m.auditSvc.Log(ctx, principal, actionFor(c.Request.Method), entityType, entityID, &audit.LogOptions{
			Metadata: map[string]interface{}{
				"path":       c.FullPath(),
				"status":     c.Writer.Status(),
				"request_id": c.GetString(ContextRequestID),
			},
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("entity_type", entityType).
				Str("entity_id", entityID).
				Msg("Failed to write audit log")
		}
	}
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return model.AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return model.AuditActionUpdate
	case http.MethodDelete:
		return model.AuditActionDelete
	}
	return model.AuditActionRead
}
