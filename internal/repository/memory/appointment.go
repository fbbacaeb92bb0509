package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

type appointmentRepository struct{ db *database }

func (r *appointmentRepository) CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.appointments {
		if a.DoctorID == appointment.DoctorID && a.Date == appointment.Date &&
			a.Time == appointment.Time && a.Status.Active() {
			return repository.ErrSlotTaken
		}
	}

	appointment.ID = newID(appointment.ID)
	now := r.db.now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	cp := *appointment
	r.db.appointments = append(r.db.appointments, &cp)
	return nil
}

func (r *appointmentRepository) find(id uuid.UUID) *model.Appointment {
	for _, a := range r.db.appointments {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a := r.find(id)
	if a == nil {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := r.find(id)
	if a == nil {
		return repository.ErrNotFound
	}
	if status.Active() && !a.Status.Active() {
		for _, other := range r.db.appointments {
			if other.ID != a.ID && other.DoctorID == a.DoctorID && other.Date == a.Date &&
				other.Time == a.Time && other.Status.Active() {
				return repository.ErrSlotTaken
			}
		}
	}
	a.Status = status
	a.UpdatedAt = r.db.now()
	return nil
}

func (r *appointmentRepository) AddConsultation(ctx context.Context, appointmentID uuid.UUID, record *model.MedicalRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := r.find(appointmentID)
	if a == nil {
		return repository.ErrNotFound
	}

	record.ID = newID(record.ID)
	record.AppointmentID = &appointmentID
	record.CreatedAt = r.db.now()
	cp := *record
	r.db.medicalRecords = append(r.db.medicalRecords, &cp)

	a.Notes = record.Notes
	a.UpdatedAt = record.CreatedAt
	return nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(func(a *model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

// list returns matching appointments newest first with the joined names
// filled in.
func (r *appointmentRepository) list(match func(*model.Appointment) bool) []*model.Appointment {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.Appointment{}
	for i := len(r.db.appointments) - 1; i >= 0; i-- {
		a := r.db.appointments[i]
		if !match(a) {
			continue
		}
		cp := *a
		if p, ok := r.db.patients[a.PatientID]; ok {
			cp.PatientName = p.Username
		}
		if d, ok := r.db.doctors[a.DoctorID]; ok {
			cp.DoctorName = d.Username
		}
		out = append(out, &cp)
	}
	sortBy(out, func(a, b *model.Appointment) bool { return a.CreatedAt.After(b.CreatedAt) })
	return out
}

func (r *appointmentRepository) HasRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.appointments {
		if a.DoctorID == doctorID && a.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepository) PatientsOfDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Patient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	patients := []*model.Patient{}
	for _, a := range r.db.appointments {
		if a.DoctorID != doctorID || seen[a.PatientID] {
			continue
		}
		seen[a.PatientID] = true
		if p, ok := r.db.patients[a.PatientID]; ok {
			cp := *p
			patients = append(patients, &cp)
		}
	}
	sortBy(patients, func(a, b *model.Patient) bool { return a.Username < b.Username })
	return patients, nil
}

func (r *appointmentRepository) DoctorStats(ctx context.Context, doctorID uuid.UUID) (*model.DoctorStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var stats model.DoctorStats
	seen := make(map[uuid.UUID]bool)
	for _, a := range r.db.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		stats.TotalAppointments++
		if a.Status == model.AppointmentStatusCompleted {
			stats.CompletedAppointments++
		}
		if !seen[a.PatientID] {
			seen[a.PatientID] = true
			stats.TotalPatients++
		}
	}
	return &stats, nil
}

type medicalRecordRepository struct{ db *database }

func (r *medicalRecordRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.MedicalRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.MedicalRecord{}
	for i := len(r.db.medicalRecords) - 1; i >= 0; i-- {
		m := r.db.medicalRecords[i]
		if m.PatientID != patientID {
			continue
		}
		cp := *m
		if d, ok := r.db.doctors[m.DoctorID]; ok {
			cp.DoctorName = d.Username
		}
		out = append(out, &cp)
	}
	sortBy(out, func(a, b *model.MedicalRecord) bool { return a.CreatedAt.After(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
