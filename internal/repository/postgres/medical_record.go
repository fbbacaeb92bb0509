package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type medicalRecordRepository struct {
	BaseRepository
}

func NewMedicalRecordRepository(base BaseRepository) repository.MedicalRecordRepository {
	return &medicalRecordRepository{base}
}

func (r *medicalRecordRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.MedicalRecord, error) {
	query := `
		SELECT m.id, m.patient_id, m.doctor_id, m.appointment_id, m.diagnosis, m.treatment,
			m.prescription, m.notes, m.visit_date, m.follow_up_required, m.created_at,
			d.username AS doctor_name
		FROM medical_records m
		JOIN doctors d ON d.id = m.doctor_id
		WHERE m.patient_id = $1
		ORDER BY m.created_at DESC
	`
	args := []interface{}{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	records := []*model.MedicalRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, mapError("list medical records", err)
	}
	return records, nil
}
