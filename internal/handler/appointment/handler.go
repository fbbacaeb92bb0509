package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/model"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

// Service is the appointment workflow as seen by the HTTP layer.
type Service interface {
	Book(ctx context.Context, patientID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, appointmentID, doctorID uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
	AddConsultationRecord(ctx context.Context, appointmentID, doctorID uuid.UUID, req *model.ConsultationRecordRequest) (*model.MedicalRecord, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
}

type Handler struct {
	service Service
	audit   *middleware.AuditMiddleware
}

func NewHandler(service Service, audit *middleware.AuditMiddleware) *Handler {
	return &Handler{service: service, audit: audit}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", middleware.PatientOnly(), h.Book)
		appointments.GET("", h.List)
		appointments.PUT("/:id/status", middleware.DoctorOnly(),
			h.audit.Record(model.AuditEntityAppointment, "id"), h.UpdateStatus)
		appointments.POST("/:id/records", middleware.DoctorOnly(),
			h.audit.Record(model.AuditEntityMedicalRecord, "id"), h.AddRecord)
	}
}

func (h *Handler) Book(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	apt, err := h.service.Book(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewMessageResponse("appointment booked", apt))
}

// List returns the caller's appointments, as patient or as doctor.
func (h *Handler) List(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var (
		apts []*model.Appointment
		err  error
	)
	switch principal.Role {
	case model.RolePatient:
		apts, err = h.service.ListForPatient(c.Request.Context(), principal.UserID)
	case model.RoleDoctor:
		apts, err = h.service.ListForDoctor(c.Request.Context(), principal.UserID)
	default:
		err = apperrors.NewForbidden("")
	}
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apts))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	apt, err := h.service.UpdateStatus(c.Request.Context(), id, principal.UserID, req.Status)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("appointment updated", apt))
}

func (h *Handler) AddRecord(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ConsultationRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	record, err := h.service.AddConsultationRecord(c.Request.Context(), id, principal.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewMessageResponse("consultation record added", record))
}
