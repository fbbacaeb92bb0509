package appointment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/internal/service/notification"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/metrics"
)

const (
	defaultReason    = "General consultation"
	hospitalUnknown  = "TBD"
	dashboardRecords = 5
)

type Service struct {
	appointments repository.AppointmentRepository
	records      repository.MedicalRecordRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	notifier     notification.Notifier
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(
	appointments repository.AppointmentRepository,
	records repository.MedicalRecordRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	notifier notification.Notifier,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		appointments: appointments,
		records:      records,
		patients:     patients,
		doctors:      doctors,
		notifier:     notifier,
		logger:       logger,
		metrics:      metrics,
	}
}

// Book creates a pending appointment in a free slot and tells the doctor.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	date := strings.TrimSpace(req.Date)
	tm := strings.TrimSpace(req.Time)
	if date == "" || tm == "" {
		return nil, apperrors.NewValidation("date and time are required")
	}

	doctor, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, lookupError("doctor", err)
	}
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, lookupError("patient", err)
	}

	apt := &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctor.ID,
		Date:      date,
		Time:      tm,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    model.AppointmentStatusPending,
	}
	err = s.appointments.CreateIfSlotFree(ctx, apt)
	s.metrics.ObserveDB("create_appointment", err)
	if err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.metrics.SlotConflicts.Inc()
			return nil, apperrors.NewSlotConflict()
		}
		return nil, apperrors.NewStorage("book appointment", err)
	}
	s.metrics.AppointmentsBooked.Inc()
	apt.PatientName = patient.Username
	apt.DoctorName = doctor.Username

	reason := apt.Reason
	if reason == "" {
		reason = defaultReason
	}
	data := model.StringMap{
		"doctor_name":  doctor.Username,
		"patient_name": patient.Username,
		"date":         apt.Date,
		"time":         apt.Time,
		"reason":       reason,
	}
	if patient.HasChronicConditions() {
		data["chronic_conditions"] = patient.ChronicConditions
	}
	s.notify(ctx, apt.ID, &model.Notification{
		Event:     model.EventAppointmentRequest,
		Recipient: doctor.Email,
		Data:      data,
	})
	return apt, nil
}

// UpdateStatus sets any known status on one of the doctor's appointments.
// There is no transition table.
func (s *Service) UpdateStatus(ctx context.Context, appointmentID, doctorID uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidation("invalid status")
	}
	apt, err := s.owned(ctx, appointmentID, doctorID)
	if err != nil {
		return nil, err
	}

	err = s.appointments.UpdateStatus(ctx, apt.ID, status)
	s.metrics.ObserveDB("update_appointment_status", err)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			s.metrics.SlotConflicts.Inc()
			return nil, apperrors.NewSlotConflict()
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, apperrors.NewStorage("update appointment", err)
	}
	apt.Status = status
	s.metrics.AppointmentStatuses.WithLabelValues(string(status)).Inc()

	s.notifyPatient(ctx, apt)
	return apt, nil
}

func (s *Service) notifyPatient(ctx context.Context, apt *model.Appointment) {
	var event model.NotificationEvent
	switch apt.Status {
	case model.AppointmentStatusConfirmed:
		event = model.EventAppointmentConfirmed
	case model.AppointmentStatusCancelled:
		event = model.EventAppointmentRejected
	case model.AppointmentStatusCompleted:
		event = model.EventAppointmentCompleted
	default:
		return
	}

	patient, err := s.patients.Get(ctx, apt.PatientID)
	if err != nil {
		s.logger.Error(err, "Failed to load patient for notification", "appointment_id", apt.ID.String())
		return
	}
	doctor, err := s.doctors.Get(ctx, apt.DoctorID)
	if err != nil {
		s.logger.Error(err, "Failed to load doctor for notification", "appointment_id", apt.ID.String())
		return
	}
	apt.PatientName = patient.Username
	apt.DoctorName = doctor.Username

	data := model.StringMap{
		"patient_name": patient.Username,
		"doctor_name":  doctor.Username,
		"date":         apt.Date,
		"time":         apt.Time,
	}
	if event == model.EventAppointmentConfirmed {
		data["hospital"] = hospitalUnknown
		if h := strings.TrimSpace(doctor.Hospital); h != "" {
			data["hospital"] = h
		}
	}
	s.notify(ctx, apt.ID, &model.Notification{Event: event, Recipient: patient.Email, Data: data})
}

// notify never fails the caller; enqueue errors are only logged.
func (s *Service) notify(ctx context.Context, appointmentID uuid.UUID, n *model.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error(err, "Failed to enqueue notification",
			"appointment_id", appointmentID.String(),
			"event", string(n.Event))
	}
}

// AddConsultationRecord writes the doctor's record for the appointment and
// copies its notes onto the appointment.
func (s *Service) AddConsultationRecord(ctx context.Context, appointmentID, doctorID uuid.UUID, req *model.ConsultationRecordRequest) (*model.MedicalRecord, error) {
	apt, err := s.owned(ctx, appointmentID, doctorID)
	if err != nil {
		return nil, err
	}
	diagnosis := strings.TrimSpace(req.Diagnosis)
	if diagnosis == "" {
		return nil, apperrors.NewValidation("diagnosis is required")
	}

	record := &model.MedicalRecord{
		PatientID:        apt.PatientID,
		DoctorID:         apt.DoctorID,
		Diagnosis:        diagnosis,
		Treatment:        strings.TrimSpace(req.Treatment),
		Prescription:     strings.TrimSpace(req.Prescription),
		Notes:            strings.TrimSpace(req.Notes),
		VisitDate:        apt.Date,
		FollowUpRequired: req.FollowUpRequired,
	}
	err = s.appointments.AddConsultation(ctx, apt.ID, record)
	s.metrics.ObserveDB("add_consultation", err)
	if err != nil {
		return nil, lookupError("appointment", err)
	}
	return record, nil
}

// owned loads the appointment and checks it belongs to the acting doctor.
func (s *Service) owned(ctx context.Context, appointmentID, doctorID uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, lookupError("appointment", err)
	}
	if apt.DoctorID != doctorID {
		return nil, apperrors.NewForbidden("appointment belongs to another doctor")
	}
	return apt, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	list, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewStorage("list appointments", err)
	}
	return list, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	list, err := s.appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewStorage("list appointments", err)
	}
	return list, nil
}

func (s *Service) ConsultationRecords(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error) {
	records, err := s.records.ListByPatient(ctx, patientID, 0)
	if err != nil {
		return nil, apperrors.NewStorage("list consultation records", err)
	}
	return records, nil
}

func (s *Service) PatientDashboard(ctx context.Context, patientID uuid.UUID) (*model.PatientDashboard, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, lookupError("patient", err)
	}
	appointments, err := s.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByPatient(ctx, patientID, dashboardRecords)
	if err != nil {
		return nil, apperrors.NewStorage("list consultation records", err)
	}
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorage("list doctors", err)
	}
	return &model.PatientDashboard{
		Patient:      patient,
		Appointments: appointments,
		Records:      records,
		Doctors:      doctors,
	}, nil
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*model.DoctorDashboard, error) {
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, lookupError("doctor", err)
	}
	appointments, err := s.ListForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	patients, err := s.appointments.PatientsOfDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewStorage("list doctor patients", err)
	}
	return &model.DoctorDashboard{Doctor: doctor, Appointments: appointments, Patients: patients}, nil
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, err)
	}
	return apperrors.NewStorage("load "+resource, err)
}
