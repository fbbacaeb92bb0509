// Package memory implements the repositories on in-process maps. It backs
// the "memory" database driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type database struct {
	mu sync.RWMutex

	patients       map[uuid.UUID]*model.Patient
	doctors        map[uuid.UUID]*model.Doctor
	appointments   []*model.Appointment
	medicalRecords []*model.MedicalRecord
	files          []*model.MedicalFile
	testResults    []*model.TestResult
	procedures     []*model.Procedure
	prescriptions  []*model.Prescription
	notifications  map[uuid.UUID]*model.Notification
	auditLogs      []*model.AuditLog

	now func() time.Time
}

// NewStore returns a Store whose repositories share one in-memory database.
func NewStore() *repository.Store {
	db := &database{
		patients:      make(map[uuid.UUID]*model.Patient),
		doctors:       make(map[uuid.UUID]*model.Doctor),
		notifications: make(map[uuid.UUID]*model.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
	return &repository.Store{
		Patients:       &patientRepository{db},
		Doctors:        &doctorRepository{db},
		Appointments:   &appointmentRepository{db},
		MedicalRecords: &medicalRecordRepository{db},
		Clinical:       &clinicalRepository{db},
		Notifications:  &notificationRepository{db},
		Audit:          &auditRepository{db},
		Ping:           func(context.Context) error { return nil },
	}
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

type patientRepository struct{ db *database }

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.patients {
		if p.Email == patient.Email || p.Username == patient.Username {
			return repository.ErrDuplicate
		}
	}
	patient.ID = newID(patient.ID)
	patient.CreatedAt = r.db.now()
	cp := *patient
	r.db.patients[patient.ID] = &cp
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.patients {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *patientRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *patientRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.patients {
		if p.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.patients[patient.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *patient
	r.db.patients[patient.ID] = &cp
	return nil
}

type doctorRepository struct{ db *database }

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.doctors {
		if d.Email == doctor.Email || d.Username == doctor.Username {
			return repository.ErrDuplicate
		}
	}
	doctor.ID = newID(doctor.ID)
	doctor.CreatedAt = r.db.now()
	cp := *doctor
	r.db.doctors[doctor.ID] = &cp
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, d := range r.db.doctors {
		if d.Email == email {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *doctorRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *doctorRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, d := range r.db.doctors {
		if d.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.doctors[doctor.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *doctor
	r.db.doctors[doctor.ID] = &cp
	return nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	doctors := make([]*model.Doctor, 0, len(r.db.doctors))
	for _, d := range r.db.doctors {
		cp := *d
		doctors = append(doctors, &cp)
	}
	sortBy(doctors, func(a, b *model.Doctor) bool { return a.Username < b.Username })
	return doctors, nil
}
