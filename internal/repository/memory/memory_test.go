package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

func seed(t *testing.T, store *repository.Store) (*model.Patient, *model.Doctor) {
	t.Helper()
	ctx := context.Background()
	p := &model.Patient{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, store.Patients.Create(ctx, p))
	d := &model.Doctor{Username: "drbob", Email: "bob@example.com", Hospital: "General"}
	require.NoError(t, store.Doctors.Create(ctx, d))
	return p, d
}

func TestDuplicateAccounts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seed(t, store)

	err := store.Patients.Create(ctx, &model.Patient{Username: "other", Email: "alice@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// Same email in the other role's table is fine.
	err = store.Doctors.Create(ctx, &model.Doctor{Username: "alice", Email: "alice@example.com"})
	assert.NoError(t, err)
}

func TestCreateIfSlotFree(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p, d := seed(t, store)

	first := &model.Appointment{PatientID: p.ID, DoctorID: d.ID, Date: "2025-03-01", Time: "10:00", Status: model.AppointmentStatusPending}
	require.NoError(t, store.Appointments.CreateIfSlotFree(ctx, first))

	second := &model.Appointment{PatientID: p.ID, DoctorID: d.ID, Date: "2025-03-01", Time: "10:00", Status: model.AppointmentStatusPending}
	assert.ErrorIs(t, store.Appointments.CreateIfSlotFree(ctx, second), repository.ErrSlotTaken)

	require.NoError(t, store.Appointments.UpdateStatus(ctx, first.ID, model.AppointmentStatusCancelled))
	assert.NoError(t, store.Appointments.CreateIfSlotFree(ctx, second))

	// Reviving the cancelled one would double book the slot.
	err := store.Appointments.UpdateStatus(ctx, first.ID, model.AppointmentStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrSlotTaken)
}

func TestCreateIfSlotFreeConcurrent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p, d := seed(t, store)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Appointments.CreateIfSlotFree(ctx, &model.Appointment{
				PatientID: p.ID, DoctorID: d.ID, Date: "2025-03-01", Time: "10:00",
				Status: model.AppointmentStatusPending,
			})
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, repository.ErrSlotTaken)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestAddConsultationCopiesNotes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p, d := seed(t, store)

	a := &model.Appointment{PatientID: p.ID, DoctorID: d.ID, Date: "2025-03-01", Time: "10:00", Status: model.AppointmentStatusConfirmed}
	require.NoError(t, store.Appointments.CreateIfSlotFree(ctx, a))

	rec := &model.MedicalRecord{PatientID: p.ID, DoctorID: d.ID, Diagnosis: "flu", Notes: "rest", VisitDate: a.Date}
	require.NoError(t, store.Appointments.AddConsultation(ctx, a.ID, rec))

	got, err := store.Appointments.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "rest", got.Notes)

	records, err := store.MedicalRecords.ListByPatient(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "drbob", records[0].DoctorName)
	assert.Equal(t, a.ID, *records[0].AppointmentID)

	err = store.Appointments.AddConsultation(ctx, uuid.New(), &model.MedicalRecord{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDoctorStats(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p, d := seed(t, store)
	p2 := &model.Patient{Username: "carol", Email: "carol@example.com"}
	require.NoError(t, store.Patients.Create(ctx, p2))

	for i, pid := range []uuid.UUID{p.ID, p.ID, p2.ID} {
		a := &model.Appointment{PatientID: pid, DoctorID: d.ID, Date: "2025-03-01", Time: []string{"09:00", "10:00", "11:00"}[i], Status: model.AppointmentStatusPending}
		require.NoError(t, store.Appointments.CreateIfSlotFree(ctx, a))
		if i == 0 {
			require.NoError(t, store.Appointments.UpdateStatus(ctx, a.ID, model.AppointmentStatusCompleted))
		}
	}

	stats, err := store.Appointments.DoctorStats(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStats{TotalPatients: 2, TotalAppointments: 3, CompletedAppointments: 1}, *stats)

	patients, err := store.Appointments.PatientsOfDoctor(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "alice", patients[0].Username)
}

func TestClinicalListsNewestFirst(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p, _ := seed(t, store)
	day := func(d int) time.Time { return time.Date(2025, 2, d, 0, 0, 0, 0, time.UTC) }

	for _, d := range []int{3, 10, 5} {
		r := &model.TestResult{TestDate: day(d)}
		r.PatientID = p.ID
		require.NoError(t, store.Clinical.CreateTestResult(ctx, r))
	}

	results, err := store.Clinical.ListTestResults(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, day(10), results[0].TestDate)
	assert.Equal(t, day(5), results[1].TestDate)
	assert.Equal(t, day(3), results[2].TestDate)

	other, err := store.Clinical.ListTestResults(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestClinicalListsKeepInsertionOrderOnTies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p, _ := seed(t, store)
	date := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"first.pdf", "second.pdf", "third.pdf"} {
		f := &model.MedicalFile{OriginalFilename: name, TestDate: date}
		f.PatientID = p.ID
		require.NoError(t, store.Clinical.CreateFile(ctx, f))
	}

	files, err := store.Clinical.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "first.pdf", files[0].OriginalFilename)
	assert.Equal(t, "second.pdf", files[1].OriginalFilename)
	assert.Equal(t, "third.pdf", files[2].OriginalFilename)
}

func TestNotificationLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	n := &model.Notification{Event: model.EventAppointmentConfirmed, Recipient: "a@example.com"}
	require.NoError(t, store.Notifications.Create(ctx, n))
	assert.Equal(t, model.NotificationStatusPending, n.Status)

	require.NoError(t, store.Notifications.MarkFailed(ctx, n.ID, "smtp down"))
	got, err := store.Notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusFailed, got.Status)
	assert.Equal(t, "smtp down", *got.LastError)

	deleted, err := store.Notifications.DeleteBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
