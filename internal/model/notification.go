package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type NotificationEvent string

const (
	EventAppointmentRequest   NotificationEvent = "appointment_request"
	EventAppointmentConfirmed NotificationEvent = "appointment_confirmed"
	EventAppointmentRejected  NotificationEvent = "appointment_rejected"
	EventAppointmentCompleted NotificationEvent = "appointment_completed"
)

// Notification is an email waiting for, or past, delivery. Data holds the
// template substitutions.
type Notification struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	Event     NotificationEvent  `db:"event" json:"event"`
	Recipient string             `db:"recipient" json:"recipient"`
	Subject   string             `db:"subject" json:"subject"`
	Data      StringMap          `db:"data" json:"data"`
	Status    NotificationStatus `db:"status" json:"status"`
	LastError *string            `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
	SentAt    *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}
