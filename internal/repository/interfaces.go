package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrSlotTaken means an active appointment already holds the
	// (doctor, date, time) slot.
	ErrSlotTaken = errors.New("appointment slot taken")
)

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		EmailExists(ctx context.Context, email string) (bool, error)
		UsernameExists(ctx context.Context, username string) (bool, error)
		Update(ctx context.Context, patient *model.Patient) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		EmailExists(ctx context.Context, email string) (bool, error)
		UsernameExists(ctx context.Context, username string) (bool, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	AppointmentRepository interface {
		// CreateIfSlotFree inserts the appointment unless an active one holds
		// the same slot, in which case it returns ErrSlotTaken.
		CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error
		// AddConsultation stores the record and copies its notes onto the
		// appointment in one transaction.
		AddConsultation(ctx context.Context, appointmentID uuid.UUID, record *model.MedicalRecord) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		// HasRelationship reports whether the doctor has any appointment, of
		// any status, with the patient.
		HasRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
		PatientsOfDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Patient, error)
		DoctorStats(ctx context.Context, doctorID uuid.UUID) (*model.DoctorStats, error)
	}

	MedicalRecordRepository interface {
		// ListByPatient returns consultation records newest first. A limit of
		// zero returns all of them.
		ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.MedicalRecord, error)
	}

	// ClinicalRepository stores the append-only clinical record kinds. Lists
	// are ordered by logical date, newest first.
	ClinicalRepository interface {
		CreateFile(ctx context.Context, file *model.MedicalFile) error
		CreateTestResult(ctx context.Context, result *model.TestResult) error
		CreateProcedure(ctx context.Context, procedure *model.Procedure) error
		CreatePrescription(ctx context.Context, prescription *model.Prescription) error
		GetFile(ctx context.Context, id uuid.UUID) (*model.MedicalFile, error)
		ListFiles(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalFile, error)
		ListTestResults(ctx context.Context, patientID uuid.UUID) ([]*model.TestResult, error)
		ListProcedures(ctx context.Context, patientID uuid.UUID) ([]*model.Procedure, error)
		ListPrescriptions(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

type AuditFilter struct {
	ActorID    *uuid.UUID
	EntityType string
	EntityID   string
	Limit      int
}

// Store bundles the repositories of one backend.
type Store struct {
	Patients       PatientRepository
	Doctors        DoctorRepository
	Appointments   AppointmentRepository
	MedicalRecords MedicalRecordRepository
	Clinical       ClinicalRepository
	Notifications  NotificationRepository
	Audit          AuditRepository

	// Ping checks the backend is reachable.
	Ping func(ctx context.Context) error
}
