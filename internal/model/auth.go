package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Principal identifies the caller of a request. It is derived from the bearer
// token and lives only for the duration of the request.
type Principal struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	Username string    `json:"username"`
}

func (p *Principal) IsPatient() bool { return p != nil && p.Role == RolePatient }
func (p *Principal) IsDoctor() bool  { return p != nil && p.Role == RoleDoctor }

// AuthRequest types
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Normalize trims the input and lower-cases the email.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type RegisterDoctorRequest struct {
	RegisterRequest
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	Hospital       string `json:"hospital"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=patient doctor"`
}

// AuthResponse types
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Principal   Principal `json:"principal"`
}
