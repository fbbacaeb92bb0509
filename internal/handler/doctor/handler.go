package doctor

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/model"
)

type Identity interface {
	UpdateDoctorProfile(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorProfileRequest) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
	DoctorProfile(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error)
}

type Appointments interface {
	DoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*model.DoctorDashboard, error)
}

type Records interface {
	ViewAsDoctor(ctx context.Context, doctorID, patientID uuid.UUID) (*model.Timeline, error)
	AddDoctorNote(ctx context.Context, patientID, doctorID uuid.UUID, req *model.DoctorNoteRequest) (model.ClinicalRecord, error)
}

type Handler struct {
	identity     Identity
	appointments Appointments
	records      Records
	audit        *middleware.AuditMiddleware
}

func NewHandler(identity Identity, appointments Appointments, records Records, audit *middleware.AuditMiddleware) *Handler {
	return &Handler{identity: identity, appointments: appointments, records: records, audit: audit}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", middleware.PatientOnly(), h.List)
		doctors.GET("/:id", h.Get)
	}

	me := doctors.Group("/me", middleware.DoctorOnly(), middleware.NoStore())
	{
		me.GET("", h.GetProfile)
		me.PUT("", h.UpdateProfile)
		me.GET("/dashboard", h.Dashboard)
		me.GET("/patients/:patientId/records",
			h.audit.Record(model.AuditEntityPatientHistory, "patientId"), h.PatientRecords)
		me.POST("/patients/:patientId/notes",
			h.audit.Record(model.AuditEntityClinicalNote, "patientId"), h.AddNote)
	}
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.identity.ListDoctors(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	profile, err := h.identity.DoctorProfile(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) GetProfile(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	profile, err := h.identity.DoctorProfile(c.Request.Context(), principal.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdateDoctorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	doctor, err := h.identity.UpdateDoctorProfile(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("profile updated", doctor))
}

func (h *Handler) Dashboard(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	dashboard, err := h.appointments.DoctorDashboard(c.Request.Context(), principal.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(dashboard))
}

func (h *Handler) PatientRecords(c *gin.Context) {
	patientID, ok := handler.ParamID(c, "patientId")
	if !ok {
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	timeline, err := h.records.ViewAsDoctor(c.Request.Context(), principal.UserID, patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(timeline))
}

// AddNote answers 200 with no data when the record type is not one doctors
// can write.
func (h *Handler) AddNote(c *gin.Context) {
	patientID, ok := handler.ParamID(c, "patientId")
	if !ok {
		return
	}
	var req model.DoctorNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, _ := middleware.PrincipalFrom(c)
	record, err := h.records.AddDoctorNote(c.Request.Context(), patientID, principal.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusOK, handler.NewMessageResponse("no record created", nil))
		return
	}
	c.JSON(http.StatusCreated, handler.NewMessageResponse("record added", record))
}
