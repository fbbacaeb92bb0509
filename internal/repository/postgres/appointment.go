package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const appointmentColumns = `a.id, a.patient_id, a.doctor_id, a.date, a.time, a.reason,
	a.status, a.notes, a.created_at, a.updated_at`

func (r *appointmentRepository) CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var held []uuid.UUID
		err := tx.SelectContext(ctx, &held, `
			SELECT id FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND time = $3
				AND status IN ('pending', 'confirmed')
			FOR UPDATE
		`, appointment.DoctorID, appointment.Date, appointment.Time)
		if err != nil {
			return mapError("check appointment slot", err)
		}
		if len(held) > 0 {
			return repository.ErrSlotTaken
		}

		// The partial unique index settles races between concurrent inserts.
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO appointments (
				id, patient_id, doctor_id, date, time, reason,
				status, notes, created_at, updated_at
			) VALUES (
				:id, :patient_id, :doctor_id, :date, :time, :reason,
				:status, :notes, :created_at, :updated_at
			)
		`, appointment)
		return mapError("create appointment", err)
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	if err != nil {
		return nil, mapError("get appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return mapError("update appointment status", err)
	}
	return expectRows("update appointment status", res)
}

func (r *appointmentRepository) AddConsultation(ctx context.Context, appointmentID uuid.UUID, record *model.MedicalRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.AppointmentID = &appointmentID
	record.CreatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO medical_records (
				id, patient_id, doctor_id, appointment_id, diagnosis, treatment,
				prescription, notes, visit_date, follow_up_required, created_at
			) VALUES (
				:id, :patient_id, :doctor_id, :appointment_id, :diagnosis, :treatment,
				:prescription, :notes, :visit_date, :follow_up_required, :created_at
			)
		`, record)
		if err != nil {
			return mapError("create medical record", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE appointments SET notes = $1, updated_at = $2 WHERE id = $3`,
			record.Notes, record.CreatedAt, appointmentID)
		if err != nil {
			return mapError("update appointment notes", err)
		}
		return expectRows("update appointment notes", res)
	})
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(ctx, "list patient appointments", `a.patient_id = $1`, patientID)
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(ctx, "list doctor appointments", `a.doctor_id = $1`, doctorID)
}

func (r *appointmentRepository) list(ctx context.Context, op, where string, id uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `, p.username AS patient_name, d.username AS doctor_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		WHERE ` + where + `
		ORDER BY a.created_at DESC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, id); err != nil {
		return nil, mapError(op, err)
	}
	return appointments, nil
}

func (r *appointmentRepository) HasRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1 AND patient_id = $2)`,
		doctorID, patientID)
	return exists, mapError("check doctor patient relationship", err)
}

func (r *appointmentRepository) PatientsOfDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE id IN (SELECT DISTINCT patient_id FROM appointments WHERE doctor_id = $1)
		ORDER BY username
	`
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, doctorID); err != nil {
		return nil, mapError("list doctor patients", err)
	}
	return patients, nil
}

func (r *appointmentRepository) DoctorStats(ctx context.Context, doctorID uuid.UUID) (*model.DoctorStats, error) {
	var stats model.DoctorStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(DISTINCT patient_id) AS total_patients,
			COUNT(*) AS total_appointments,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_appointments
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, mapError("get doctor stats", err)
	}
	return &stats, nil
}
