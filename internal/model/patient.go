package model

import "strings"

type Patient struct {
	Base
	Username          string `json:"username" db:"username"`
	Email             string `json:"email" db:"email"`
	PasswordHash      string `json:"-" db:"password_hash"`
	Phone             string `json:"phone" db:"phone"`
	DateOfBirth       string `json:"date_of_birth" db:"date_of_birth"`
	Address           string `json:"address" db:"address"`
	BloodType         string `json:"blood_type" db:"blood_type"`
	Allergies         string `json:"allergies" db:"allergies"`
	ChronicConditions string `json:"chronic_conditions" db:"chronic_conditions"`
	EmergencyContact  string `json:"emergency_contact" db:"emergency_contact"`
}

// HasChronicConditions reports whether the patient listed any ongoing
// condition. Booking notifications disclose the list only in that case.
func (p *Patient) HasChronicConditions() bool {
	return strings.TrimSpace(p.ChronicConditions) != ""
}

type UpdatePatientProfileRequest struct {
	Phone             string `json:"phone" binding:"max=32"`
	DateOfBirth       string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address           string `json:"address" binding:"max=500"`
	BloodType         string `json:"blood_type" binding:"max=8"`
	Allergies         string `json:"allergies"`
	ChronicConditions string `json:"chronic_conditions"`
	EmergencyContact  string `json:"emergency_contact" binding:"max=200"`
}

// Apply copies the trimmed profile fields onto p.
func (r *UpdatePatientProfileRequest) Apply(p *Patient) {
	p.Phone = strings.TrimSpace(r.Phone)
	p.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	p.Address = strings.TrimSpace(r.Address)
	p.BloodType = strings.TrimSpace(r.BloodType)
	p.Allergies = strings.TrimSpace(r.Allergies)
	p.ChronicConditions = strings.TrimSpace(r.ChronicConditions)
	p.EmergencyContact = strings.TrimSpace(r.EmergencyContact)
}

type PatientDashboard struct {
	Patient      *Patient         `json:"patient"`
	Appointments []*Appointment   `json:"appointments"`
	Records      []*MedicalRecord `json:"recent_records"`
	Doctors      []*Doctor        `json:"doctors"`
}
