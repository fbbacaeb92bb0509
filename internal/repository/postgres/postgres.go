package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/evura/portal-api/internal/repository"
)

// NewStore wires every postgres repository onto db.
func NewStore(db *sqlx.DB) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Patients:       NewPatientRepository(base),
		Doctors:        NewDoctorRepository(base),
		Appointments:   NewAppointmentRepository(base),
		MedicalRecords: NewMedicalRecordRepository(base),
		Clinical:       NewClinicalRepository(base),
		Notifications:  NewNotificationRepository(base),
		Audit:          NewAuditRepository(base),
		Ping:           db.PingContext,
	}
}
