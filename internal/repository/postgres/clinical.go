package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type clinicalRepository struct {
	BaseRepository
}

func NewClinicalRepository(base BaseRepository) repository.ClinicalRepository {
	return &clinicalRepository{base}
}

const clinicalBaseColumns = `id, patient_id, doctor_id, hospital_name, is_chronic_related, chronic_condition, created_at`

const clinicalBaseValues = `:id, :patient_id, :doctor_id, :hospital_name, :is_chronic_related, :chronic_condition, :created_at`

func stamp(b *model.ClinicalBase) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now().UTC()
}

func (r *clinicalRepository) CreateFile(ctx context.Context, file *model.MedicalFile) error {
	stamp(&file.ClinicalBase)
	if file.UploadedAt.IsZero() {
		file.UploadedAt = file.CreatedAt
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO medical_files (`+clinicalBaseColumns+`, filename, original_filename, file_type,
			file_category, description, diagnosis, content_type, size_bytes, test_date, uploaded_at)
		VALUES (`+clinicalBaseValues+`, :filename, :original_filename, :file_type,
			:file_category, :description, :diagnosis, :content_type, :size_bytes, :test_date, :uploaded_at)
	`, file)
	return mapError("create medical file", err)
}

func (r *clinicalRepository) CreateTestResult(ctx context.Context, result *model.TestResult) error {
	stamp(&result.ClinicalBase)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO test_results (`+clinicalBaseColumns+`, test_name, test_type, result_value,
			normal_range, interpretation, medical_file_id, test_date)
		VALUES (`+clinicalBaseValues+`, :test_name, :test_type, :result_value,
			:normal_range, :interpretation, :medical_file_id, :test_date)
	`, result)
	return mapError("create test result", err)
}

func (r *clinicalRepository) CreateProcedure(ctx context.Context, procedure *model.Procedure) error {
	stamp(&procedure.ClinicalBase)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO procedures (`+clinicalBaseColumns+`, procedure_name, procedure_type, description,
			outcome, complications, procedure_date)
		VALUES (`+clinicalBaseValues+`, :procedure_name, :procedure_type, :description,
			:outcome, :complications, :procedure_date)
	`, procedure)
	return mapError("create procedure", err)
}

func (r *clinicalRepository) CreatePrescription(ctx context.Context, prescription *model.Prescription) error {
	stamp(&prescription.ClinicalBase)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO prescriptions (`+clinicalBaseColumns+`, medication_name, dosage, frequency, duration,
			reason, instructions, effectiveness, side_effects, prescribed_date, start_date, end_date)
		VALUES (`+clinicalBaseValues+`, :medication_name, :dosage, :frequency, :duration,
			:reason, :instructions, :effectiveness, :side_effects, :prescribed_date, :start_date, :end_date)
	`, prescription)
	return mapError("create prescription", err)
}

func (r *clinicalRepository) GetFile(ctx context.Context, id uuid.UUID) (*model.MedicalFile, error) {
	var file model.MedicalFile
	if err := r.db.GetContext(ctx, &file, `SELECT * FROM medical_files WHERE id = $1`, id); err != nil {
		return nil, mapError("get medical file", err)
	}
	return &file, nil
}

func (r *clinicalRepository) ListFiles(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalFile, error) {
	files := []*model.MedicalFile{}
	err := r.db.SelectContext(ctx, &files,
		`SELECT * FROM medical_files WHERE patient_id = $1 ORDER BY test_date DESC, created_at ASC`, patientID)
	if err != nil {
		return nil, mapError("list medical files", err)
	}
	return files, nil
}

func (r *clinicalRepository) ListTestResults(ctx context.Context, patientID uuid.UUID) ([]*model.TestResult, error) {
	results := []*model.TestResult{}
	err := r.db.SelectContext(ctx, &results,
		`SELECT * FROM test_results WHERE patient_id = $1 ORDER BY test_date DESC, created_at ASC`, patientID)
	if err != nil {
		return nil, mapError("list test results", err)
	}
	return results, nil
}

func (r *clinicalRepository) ListProcedures(ctx context.Context, patientID uuid.UUID) ([]*model.Procedure, error) {
	procedures := []*model.Procedure{}
	err := r.db.SelectContext(ctx, &procedures,
		`SELECT * FROM procedures WHERE patient_id = $1 ORDER BY procedure_date DESC, created_at ASC`, patientID)
	if err != nil {
		return nil, mapError("list procedures", err)
	}
	return procedures, nil
}

func (r *clinicalRepository) ListPrescriptions(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	prescriptions := []*model.Prescription{}
	err := r.db.SelectContext(ctx, &prescriptions,
		`SELECT * FROM prescriptions WHERE patient_id = $1 ORDER BY prescribed_date DESC, created_at ASC`, patientID)
	if err != nil {
		return nil, mapError("list prescriptions", err)
	}
	return prescriptions, nil
}
