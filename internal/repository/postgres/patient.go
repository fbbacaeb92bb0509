package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const patientColumns = `id, username, email, password_hash, phone, date_of_birth, address,
	blood_type, allergies, chronic_conditions, emergency_contact, created_at`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (:id, :username, :email, :password_hash, :phone, :date_of_birth, :address,
			:blood_type, :allergies, :chronic_conditions, :emergency_contact, :created_at)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx, query, patient)
	return mapError("create patient", err)
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if err != nil {
		return nil, mapError("get patient", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `SELECT `+patientColumns+` FROM patients WHERE email = $1`, email)
	if err != nil {
		return nil, mapError("get patient by email", err)
	}
	return &patient, nil
}

func (r *patientRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM patients WHERE email = $1)`, email)
	return exists, mapError("check patient email", err)
}

func (r *patientRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM patients WHERE username = $1)`, username)
	return exists, mapError("check patient username", err)
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET phone = :phone, date_of_birth = :date_of_birth, address = :address,
			blood_type = :blood_type, allergies = :allergies,
			chronic_conditions = :chronic_conditions, emergency_contact = :emergency_contact
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, patient)
	if err != nil {
		return mapError("update patient", err)
	}
	return expectRows("update patient", res)
}
