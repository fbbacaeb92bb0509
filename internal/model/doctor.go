package model

import "strings"

type Doctor struct {
	Base
	Username        string `json:"username" db:"username"`
	Email           string `json:"email" db:"email"`
	PasswordHash    string `json:"-" db:"password_hash"`
	Phone           string `json:"phone" db:"phone"`
	Specialization  string `json:"specialization" db:"specialization"`
	LicenseNumber   string `json:"license_number" db:"license_number"`
	Hospital        string `json:"hospital" db:"hospital"`
	YearsExperience int    `json:"years_experience" db:"years_experience"`
}

type UpdateDoctorProfileRequest struct {
	Phone           string `json:"phone" binding:"max=32"`
	Specialization  string `json:"specialization" binding:"max=100"`
	Hospital        string `json:"hospital" binding:"max=200"`
	YearsExperience *int   `json:"years_experience"`
}

// Apply copies the trimmed profile fields onto d. Years of experience are
// only taken when present and non-negative.
func (r *UpdateDoctorProfileRequest) Apply(d *Doctor) {
	d.Phone = strings.TrimSpace(r.Phone)
	d.Specialization = strings.TrimSpace(r.Specialization)
	d.Hospital = strings.TrimSpace(r.Hospital)
	if r.YearsExperience != nil && *r.YearsExperience >= 0 {
		d.YearsExperience = *r.YearsExperience
	}
}

type DoctorStats struct {
	TotalPatients         int `json:"total_patients" db:"total_patients"`
	TotalAppointments     int `json:"total_appointments" db:"total_appointments"`
	CompletedAppointments int `json:"completed_appointments" db:"completed_appointments"`
}

type DoctorProfile struct {
	Doctor *Doctor     `json:"doctor"`
	Stats  DoctorStats `json:"stats"`
}

type DoctorDashboard struct {
	Doctor       *Doctor        `json:"doctor"`
	Appointments []*Appointment `json:"appointments"`
	Patients     []*Patient     `json:"patients"`
}
