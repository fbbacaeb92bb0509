package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/middleware"
	"github.com/evura/portal-api/internal/model"
	authsvc "github.com/evura/portal-api/internal/service/auth"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

// Identity is the account side of authentication.
type Identity interface {
	RegisterPatient(ctx context.Context, req *model.RegisterRequest) (*model.Patient, error)
	RegisterDoctor(ctx context.Context, req *model.RegisterDoctorRequest) (*model.Doctor, error)
	Authenticate(ctx context.Context, role model.Role, email, password string) (*model.Principal, error)
}

type Handler struct {
	identity     Identity
	tokens       *authsvc.Service
	authenticate gin.HandlerFunc
}

func NewHandler(identity Identity, tokens *authsvc.Service, authenticate gin.HandlerFunc) *Handler {
	return &Handler{identity: identity, tokens: tokens, authenticate: authenticate}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register/patient", h.RegisterPatient)
		auth.POST("/register/doctor", h.RegisterDoctor)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.authenticate, h.Logout)
	}
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	patient, err := h.identity.RegisterPatient(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewMessageResponse("registration successful", patient))
}

func (h *Handler) RegisterDoctor(c *gin.Context) {
	var req model.RegisterDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	doctor, err := h.identity.RegisterDoctor(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewMessageResponse("registration successful", doctor))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	principal, err := h.identity.Authenticate(c.Request.Context(), req.Role, req.Email, req.Password)
	if err != nil {
		handler.Error(c, err)
		return
	}
	resp, err := h.tokens.Issue(principal)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		handler.Error(c, apperrors.NewUnauthorized("missing bearer token", nil))
		return
	}
	if err := h.tokens.Revoke(token); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("logged out", nil))
}
