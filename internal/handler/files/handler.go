package files

import (
	"context"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/service/records"
)

type Downloader interface {
	DownloadFile(ctx context.Context, fileID uuid.UUID, principal *model.Principal) (*records.Download, error)
}

type Handler struct {
	records Downloader
	audit   *middleware.AuditMiddleware
}

func NewHandler(records Downloader, audit *middleware.AuditMiddleware) *Handler {
	return &Handler{records: records, audit: audit}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/files/:id", middleware.NoStore(), h.audit.Record(model.AuditEntityMedicalFile, "id"), h.Download)
}

// Download streams the file as an attachment under its original name.
func (h *Handler) Download(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	dl, err := h.records.DownloadFile(c.Request.Context(), id, principal)
	if err != nil {
		handler.Error(c, err)
		return
	}
	defer dl.Content.Close()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": dl.OriginalFilename}),
		"X-Content-Type-Options": "nosniff",
	}
	c.DataFromReader(http.StatusOK, dl.Size, contentType, dl.Content, headers)
}
