package model

import "github.com/google/uuid"

// MedicalRecord is a doctor's consultation note, optionally tied to the
// appointment it was written for.
type MedicalRecord struct {
	Base
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID    *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis        string     `db:"diagnosis" json:"diagnosis"`
	Treatment        string     `db:"treatment" json:"treatment"`
	Prescription     string     `db:"prescription" json:"prescription"`
	Notes            string     `db:"notes" json:"notes"`
	VisitDate        string     `db:"visit_date" json:"visit_date"`
	FollowUpRequired bool       `db:"follow_up_required" json:"follow_up_required"`

	DoctorName string `db:"doctor_name" json:"doctor_name,omitempty"`
}
