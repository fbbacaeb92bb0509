package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole  string     `json:"actor_role" db:"actor_role"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	Metadata   JSONMap    `json:"metadata" db:"metadata"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionRead   = "read"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"

	// Entity types
	AuditEntityPatientHistory = "patient_history"
	AuditEntityMedicalFile    = "medical_file"
	AuditEntityClinicalNote   = "clinical_note"
	AuditEntityMedicalRecord  = "medical_record"
	AuditEntityAppointment    = "appointment"
)
