package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type clinicalRepository struct{ db *database }

func (r *clinicalRepository) stamp(b *model.ClinicalBase) {
	b.ID = newID(b.ID)
	b.CreatedAt = r.db.now()
}

func (r *clinicalRepository) CreateFile(ctx context.Context, file *model.MedicalFile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[file.PatientID]; !ok {
		return repository.ErrNotFound
	}
	r.stamp(&file.ClinicalBase)
	if file.UploadedAt.IsZero() {
		file.UploadedAt = file.CreatedAt
	}
	cp := *file
	r.db.files = append(r.db.files, &cp)
	return nil
}

func (r *clinicalRepository) CreateTestResult(ctx context.Context, result *model.TestResult) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[result.PatientID]; !ok {
		return repository.ErrNotFound
	}
	r.stamp(&result.ClinicalBase)
	cp := *result
	r.db.testResults = append(r.db.testResults, &cp)
	return nil
}

func (r *clinicalRepository) CreateProcedure(ctx context.Context, procedure *model.Procedure) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[procedure.PatientID]; !ok {
		return repository.ErrNotFound
	}
	r.stamp(&procedure.ClinicalBase)
	cp := *procedure
	r.db.procedures = append(r.db.procedures, &cp)
	return nil
}

func (r *clinicalRepository) CreatePrescription(ctx context.Context, prescription *model.Prescription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[prescription.PatientID]; !ok {
		return repository.ErrNotFound
	}
	r.stamp(&prescription.ClinicalBase)
	cp := *prescription
	r.db.prescriptions = append(r.db.prescriptions, &cp)
	return nil
}

func (r *clinicalRepository) GetFile(ctx context.Context, id uuid.UUID) (*model.MedicalFile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, f := range r.db.files {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// listNewest copies the patient's records, newest logical date first. Equal
// dates keep insertion order.
func listNewest[T model.ClinicalRecord](items []T, patientID uuid.UUID, clone func(T) T) []T {
	out := []T{}
	for _, item := range items {
		if item.Common().PatientID == patientID {
			out = append(out, clone(item))
		}
	}
	sortBy(out, func(a, b T) bool { return a.LogicalDate().After(b.LogicalDate()) })
	return out
}

func (r *clinicalRepository) ListFiles(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalFile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return listNewest(r.db.files, patientID, func(f *model.MedicalFile) *model.MedicalFile {
		cp := *f
		return &cp
	}), nil
}

func (r *clinicalRepository) ListTestResults(ctx context.Context, patientID uuid.UUID) ([]*model.TestResult, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return listNewest(r.db.testResults, patientID, func(t *model.TestResult) *model.TestResult {
		cp := *t
		return &cp
	}), nil
}

func (r *clinicalRepository) ListProcedures(ctx context.Context, patientID uuid.UUID) ([]*model.Procedure, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return listNewest(r.db.procedures, patientID, func(p *model.Procedure) *model.Procedure {
		cp := *p
		return &cp
	}), nil
}

func (r *clinicalRepository) ListPrescriptions(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return listNewest(r.db.prescriptions, patientID, func(p *model.Prescription) *model.Prescription {
		cp := *p
		return &cp
	}), nil
}
