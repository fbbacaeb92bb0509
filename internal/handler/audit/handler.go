package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

type Lister interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]*model.AuditLog, error)
}

// Handler lets a patient see who accessed their records.
type Handler struct {
	service Lister
}

func NewHandler(service Lister) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/me/access-log", middleware.PatientOnly(), middleware.NoStore(), h.AccessLog)
}

// AccessLog lists audit entries about the caller, newest first, as JSON or
// as a CSV attachment.
func (h *Handler) AccessLog(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "csv" && format != "json" {
		handler.Error(c, apperrors.NewValidation("unsupported format"))
		return
	}
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handler.Error(c, apperrors.NewValidation("limit must be a positive number"))
			return
		}
		limit = min(n, maxLimit)
	}

	principal, _ := middleware.PrincipalFrom(c)
	logs, err := h.service.List(c.Request.Context(), repository.AuditFilter{
		EntityID: principal.UserID.String(),
		Limit:    limit,
	})
	if err != nil {
		handler.Error(c, apperrors.NewStorage("list access log", err))
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
		return
	}

	filename := fmt.Sprintf("access_log_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"ID", "Actor ID", "Actor Role", "Action", "Entity Type", "Created At"})
	for _, log := range logs {
		actor := ""
		if log.ActorID != nil {
			actor = log.ActorID.String()
		}
		_ = writer.Write([]string{
			log.ID.String(),
			actor,
			log.ActorRole,
			log.Action,
			log.EntityType,
			log.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
}
