package patient

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/service/records"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

type Identity interface {
	Patient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatientProfile(ctx context.Context, id uuid.UUID, req *model.UpdatePatientProfileRequest) (*model.Patient, error)
}

type Appointments interface {
	PatientDashboard(ctx context.Context, patientID uuid.UUID) (*model.PatientDashboard, error)
	ConsultationRecords(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error)
}

type Records interface {
	BuildTimeline(ctx context.Context, patientID uuid.UUID) (*model.Timeline, error)
	UploadSelfRecord(ctx context.Context, patientID uuid.UUID, form *model.UploadRecordForm, file *records.Upload) (*model.UploadResult, error)
}

type Handler struct {
	identity     Identity
	appointments Appointments
	records      Records
	audit        *middleware.AuditMiddleware
	maxFileBytes int64
}

func NewHandler(identity Identity, appointments Appointments, records Records, audit *middleware.AuditMiddleware, maxFileBytes int64) *Handler {
	return &Handler{
		identity:     identity,
		appointments: appointments,
		records:      records,
		audit:        audit,
		maxFileBytes: maxFileBytes,
	}
}

// UploadPath is the upload route; it carries its own body limit.
const UploadPath = "/patients/me/records"

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	me := r.Group("/patients/me", middleware.PatientOnly(), middleware.NoStore())
	{
		me.GET("", h.GetProfile)
		me.PUT("", h.UpdateProfile)
		me.GET("/dashboard", h.Dashboard)
		me.GET("/records", h.audit.Record(model.AuditEntityPatientHistory, ""), h.Timeline)
		me.GET("/consultations", h.audit.Record(model.AuditEntityMedicalRecord, ""), h.Consultations)
		me.POST("/records",
			middleware.SizeLimit(middleware.UploadLimit(h.maxFileBytes)),
			h.audit.Record(model.AuditEntityMedicalFile, ""),
			h.Upload,
		)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	patient, err := h.identity.Patient(c.Request.Context(), principal.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdatePatientProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	patient, err := h.identity.UpdatePatientProfile(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("profile updated", patient))
}

func (h *Handler) Dashboard(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	dashboard, err := h.appointments.PatientDashboard(c.Request.Context(), principal.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(dashboard))
}

func (h *Handler) Timeline(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	timeline, err := h.records.BuildTimeline(c.Request.Context(), principal.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(timeline))
}

func (h *Handler) Consultations(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	recs, err := h.appointments.ConsultationRecords(c.Request.Context(), principal.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(recs))
}

// Upload accepts a multipart form with an optional "file" part and an
// optional test result.
func (h *Handler) Upload(c *gin.Context) {
	var form model.UploadRecordForm
	if err := c.ShouldBind(&form); err != nil {
		handler.BindError(c, err)
		return
	}

	var upload *records.Upload
	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		handler.Error(c, apperrors.NewBadRequest("invalid multipart upload", err))
		return
	default:
		f, err := fh.Open()
		if err != nil {
			handler.Error(c, apperrors.NewBadRequest("unreadable upload", err))
			return
		}
		defer f.Close()
		upload = &records.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}
	}

	principal, _ := middleware.PrincipalFrom(c)
	res, err := h.records.UploadSelfRecord(c.Request.Context(), principal.UserID, &form, upload)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewMessageResponse("record uploaded", res))
}
