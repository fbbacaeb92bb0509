package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/internal/repository/memory"
	"github.com/evura/portal-api/internal/service/notification"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/metrics"
)

type MockNotifier struct {
	NotifyFunc func(ctx context.Context, n *model.Notification) error

	mu   sync.Mutex
	sent []*model.Notification
}

var _ notification.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, n)
	}
	return nil
}

func (m *MockNotifier) Sent() []*model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Notification(nil), m.sent...)
}

type fixture struct {
	svc      *Service
	store    *repository.Store
	notifier *MockNotifier
	patient  *model.Patient
	doctor   *model.Doctor
}

func setup(t *testing.T, chronic, hospital string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	p := &model.Patient{Username: "alice", Email: "alice@example.com", ChronicConditions: chronic}
	require.NoError(t, store.Patients.Create(ctx, p))
	d := &model.Doctor{Username: "house", Email: "house@example.com", Hospital: hospital}
	require.NoError(t, store.Doctors.Create(ctx, d))

	n := &MockNotifier{}
	svc := NewService(store.Appointments, store.MedicalRecords, store.Patients, store.Doctors, n, logger.Nop(), metrics.Nop())
	return &fixture{svc: svc, store: store, notifier: n, patient: p, doctor: d}
}

func (f *fixture) book(t *testing.T, date, tm string) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Book(context.Background(), f.patient.ID, &model.CreateAppointmentRequest{DoctorID: f.doctor.ID, Date: date, Time: tm})
	require.NoError(t, err)
	return apt
}

func TestBookNotifiesDoctor(t *testing.T) {
	f := setup(t, "diabetes", "")

	apt := f.book(t, "2025-03-01", "10:00")
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, model.EventAppointmentRequest, sent[0].Event)
	assert.Equal(t, "house@example.com", sent[0].Recipient)
	assert.Equal(t, "General consultation", sent[0].Data["reason"])
	assert.Equal(t, "diabetes", sent[0].Data["chronic_conditions"])
	assert.Equal(t, "alice", sent[0].Data["patient_name"])
}

func TestBookOmitsChronicConditionsWhenBlank(t *testing.T) {
	f := setup(t, "   ", "")
	f.book(t, "2025-03-01", "10:00")

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	_, ok := sent[0].Data["chronic_conditions"]
	assert.False(t, ok)
}

func TestBookUnknownDoctor(t *testing.T) {
	f := setup(t, "", "")
	_, err := f.svc.Book(context.Background(), f.patient.ID, &model.CreateAppointmentRequest{DoctorID: uuid.New(), Date: "2025-03-01", Time: "10:00"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, f.notifier.Sent())
}

func TestBookSlotConflict(t *testing.T) {
	f := setup(t, "", "")
	ctx := context.Background()
	first := f.book(t, "2025-03-01", "10:00")

	_, err := f.svc.Book(ctx, f.patient.ID, &model.CreateAppointmentRequest{DoctorID: f.doctor.ID, Date: "2025-03-01", Time: "10:00"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	// A cancelled appointment frees its slot.
	_, err = f.svc.UpdateStatus(ctx, first.ID, f.doctor.ID, model.AppointmentStatusCancelled)
	require.NoError(t, err)
	f.book(t, "2025-03-01", "10:00")
}

func TestBookSurvivesNotifierFailure(t *testing.T) {
	f := setup(t, "", "")
	f.notifier.NotifyFunc = func(context.Context, *model.Notification) error {
		return apperrors.NewNotification(errors.New("redis down"))
	}

	apt := f.book(t, "2025-03-01", "10:00")
	got, err := f.store.Appointments.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, got.Status)
}

func TestUpdateStatusAccess(t *testing.T) {
	f := setup(t, "", "")
	ctx := context.Background()
	apt := f.book(t, "2025-03-01", "10:00")

	_, err := f.svc.UpdateStatus(ctx, uuid.New(), f.doctor.ID, model.AppointmentStatusConfirmed)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.UpdateStatus(ctx, apt.ID, uuid.New(), model.AppointmentStatusConfirmed)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.UpdateStatus(ctx, apt.ID, f.doctor.ID, model.AppointmentStatus("archived"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestUpdateStatusNotifications(t *testing.T) {
	tests := []struct {
		status   model.AppointmentStatus
		event    model.NotificationEvent
		notified bool
	}{
		{model.AppointmentStatusConfirmed, model.EventAppointmentConfirmed, true},
		{model.AppointmentStatusCancelled, model.EventAppointmentRejected, true},
		{model.AppointmentStatusCompleted, model.EventAppointmentCompleted, true},
		{model.AppointmentStatusPending, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := setup(t, "", "")
			apt := f.book(t, "2025-03-01", "10:00")

			got, err := f.svc.UpdateStatus(context.Background(), apt.ID, f.doctor.ID, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)

			sent := f.notifier.Sent()
			if !tt.notified {
				assert.Len(t, sent, 1)
				return
			}
			require.Len(t, sent, 2)
			assert.Equal(t, tt.event, sent[1].Event)
			assert.Equal(t, "alice@example.com", sent[1].Recipient)
		})
	}
}

func TestConfirmedHospitalFallsBackToTBD(t *testing.T) {
	f := setup(t, "", "")
	apt := f.book(t, "2025-03-01", "10:00")
	_, err := f.svc.UpdateStatus(context.Background(), apt.ID, f.doctor.ID, model.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, "TBD", f.notifier.Sent()[1].Data["hospital"])

	f = setup(t, "", "St. Mary")
	apt = f.book(t, "2025-03-01", "10:00")
	_, err = f.svc.UpdateStatus(context.Background(), apt.ID, f.doctor.ID, model.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, "St. Mary", f.notifier.Sent()[1].Data["hospital"])
}

func TestStatusChangesArePermissive(t *testing.T) {
	f := setup(t, "", "")
	ctx := context.Background()
	apt := f.book(t, "2025-03-01", "10:00")

	for _, s := range []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusPending,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusConfirmed,
	} {
		_, err := f.svc.UpdateStatus(ctx, apt.ID, f.doctor.ID, s)
		require.NoError(t, err, s)
	}
}

func TestAddConsultationRecord(t *testing.T) {
	f := setup(t, "", "")
	ctx := context.Background()
	apt := f.book(t, "2025-03-01", "10:00")

	_, err := f.svc.AddConsultationRecord(ctx, apt.ID, f.doctor.ID, &model.ConsultationRecordRequest{Diagnosis: "  "})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = f.svc.AddConsultationRecord(ctx, apt.ID, uuid.New(), &model.ConsultationRecordRequest{Diagnosis: "flu"})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	rec, err := f.svc.AddConsultationRecord(ctx, apt.ID, f.doctor.ID, &model.ConsultationRecordRequest{
		Diagnosis: "flu", Notes: "rest and fluids", FollowUpRequired: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", rec.VisitDate)
	require.NotNil(t, rec.AppointmentID)
	assert.Equal(t, apt.ID, *rec.AppointmentID)

	got, err := f.store.Appointments.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "rest and fluids", got.Notes)

	records, err := f.svc.ConsultationRecords(ctx, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "house", records[0].DoctorName)
}

func TestPatientDashboardLimitsRecords(t *testing.T) {
	f := setup(t, "", "")
	ctx := context.Background()
	apt := f.book(t, "2025-03-01", "10:00")
	for i := 0; i < 7; i++ {
		_, err := f.svc.AddConsultationRecord(ctx, apt.ID, f.doctor.ID, &model.ConsultationRecordRequest{Diagnosis: "check"})
		require.NoError(t, err)
	}

	dash, err := f.svc.PatientDashboard(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, dash.Records, 5)
	assert.Len(t, dash.Appointments, 1)
	assert.Len(t, dash.Doctors, 1)

	ddash, err := f.svc.DoctorDashboard(ctx, f.doctor.ID)
	require.NoError(t, err)
	require.Len(t, ddash.Patients, 1)
	assert.Equal(t, f.patient.ID, ddash.Patients[0].ID)
}
