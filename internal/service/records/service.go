// Package records aggregates a patient's clinical history and handles the
// uploads and notes that feed it.
package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/pkg/blobstore"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/metrics"
)

// Upload is the file part of a self upload.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Download is an opened medical file. The caller closes Content.
type Download struct {
	Content          io.ReadCloser
	OriginalFilename string
	ContentType      string
	Size             int64
}

type Service struct {
	clinical     repository.ClinicalRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	blobs        blobstore.Store
	maxFileBytes int64
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	clinical repository.ClinicalRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	blobs blobstore.Store,
	maxFileBytes int64,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if maxFileBytes <= 0 || maxFileBytes > blobstore.MaxUploadSize {
		maxFileBytes = blobstore.MaxUploadSize
	}
	return &Service{
		clinical:     clinical,
		patients:     patients,
		doctors:      doctors,
		appointments: appointments,
		blobs:        blobs,
		maxFileBytes: maxFileBytes,
		logger:       logger,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// BuildTimeline loads the four record kinds for the patient and merges them.
func (s *Service) BuildTimeline(ctx context.Context, patientID uuid.UUID) (*model.Timeline, error) {
	var (
		t   model.Timeline
		err error
	)
	if t.Files, err = s.clinical.ListFiles(ctx, patientID); err != nil {
		return nil, apperrors.NewStorage("list medical files", err)
	}
	if t.TestResults, err = s.clinical.ListTestResults(ctx, patientID); err != nil {
		return nil, apperrors.NewStorage("list test results", err)
	}
	if t.Procedures, err = s.clinical.ListProcedures(ctx, patientID); err != nil {
		return nil, apperrors.NewStorage("list procedures", err)
	}
	if t.Prescriptions, err = s.clinical.ListPrescriptions(ctx, patientID); err != nil {
		return nil, apperrors.NewStorage("list prescriptions", err)
	}
	merge(&t)
	return &t, nil
}

// ViewAsDoctor returns the patient's timeline to a doctor who has had at
// least one appointment with them.
func (s *Service) ViewAsDoctor(ctx context.Context, doctorID, patientID uuid.UUID) (*model.Timeline, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, lookupError("patient", err)
	}
	if err := s.requireRelationship(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	return s.BuildTimeline(ctx, patientID)
}

func (s *Service) requireRelationship(ctx context.Context, doctorID, patientID uuid.UUID) error {
	ok, err := s.appointments.HasRelationship(ctx, doctorID, patientID)
	if err != nil {
		return apperrors.NewStorage("check doctor access", err)
	}
	if !ok {
		return apperrors.NewForbidden("no appointment with this patient")
	}
	return nil
}

// AddDoctorNote records a test result, prescription or procedure written by
// the doctor. An unknown kind creates nothing and returns (nil, nil).
func (s *Service) AddDoctorNote(ctx context.Context, patientID, doctorID uuid.UUID, req *model.DoctorNoteRequest) (model.ClinicalRecord, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, lookupError("patient", err)
	}
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, lookupError("doctor", err)
	}

	now := s.now()
	base := model.ClinicalBase{PatientID: patientID, DoctorID: &doctor.ID}
	base.SetChronic(req.IsChronicRelated, req.ChronicCondition)

	var record model.ClinicalRecord
	switch req.RecordType {
	case model.NoteKindTestResult:
		if strings.TrimSpace(req.TestName) == "" {
			return nil, apperrors.NewValidation("test_name is required")
		}
		base.HospitalName = doctor.Hospital
		r := &model.TestResult{
			ClinicalBase:   base,
			TestName:       strings.TrimSpace(req.TestName),
			TestType:       req.TestType,
			ResultValue:    req.ResultValue,
			NormalRange:    req.NormalRange,
			Interpretation: req.Interpretation,
			TestDate:       now,
		}
		record = r
		err = s.clinical.CreateTestResult(ctx, r)
	case model.NoteKindPrescription:
		if strings.TrimSpace(req.MedicationName) == "" {
			return nil, apperrors.NewValidation("medication_name is required")
		}
		r := &model.Prescription{
			ClinicalBase:   base,
			MedicationName: strings.TrimSpace(req.MedicationName),
			Dosage:         req.Dosage,
			Frequency:      req.Frequency,
			Duration:       req.Duration,
			Reason:         req.Reason,
			Instructions:   req.Instructions,
			PrescribedDate: now,
			StartDate:      now,
		}
		record = r
		err = s.clinical.CreatePrescription(ctx, r)
	case model.NoteKindProcedure:
		if strings.TrimSpace(req.ProcedureName) == "" {
			return nil, apperrors.NewValidation("procedure_name is required")
		}
		base.HospitalName = doctor.Hospital
		r := &model.Procedure{
			ClinicalBase:  base,
			ProcedureName: strings.TrimSpace(req.ProcedureName),
			ProcedureType: req.ProcedureType,
			Description:   req.Description,
			Outcome:       req.Outcome,
			Complications: req.Complications,
			ProcedureDate: now,
		}
		record = r
		err = s.clinical.CreateProcedure(ctx, r)
	default:
		s.logger.Debug("Ignoring doctor note of unknown kind", "record_type", req.RecordType)
		return nil, nil
	}

	s.metrics.ObserveDB("create_"+req.RecordType, err)
	if err != nil {
		return nil, apperrors.NewStorage("save "+strings.ReplaceAll(req.RecordType, "_", " "), err)
	}
	s.metrics.NotesAdded.WithLabelValues(req.RecordType).Inc()
	return record, nil
}

// uploadPlan is a fully validated self upload, ready to write.
type uploadPlan struct {
	key      string
	fileDate time.Time
	result   *model.TestResult
}

// UploadSelfRecord stores a patient's own document and/or test result.
// Everything is validated before the first write; the rows then commit
// independently.
func (s *Service) UploadSelfRecord(ctx context.Context, patientID uuid.UUID, form *model.UploadRecordForm, file *Upload) (*model.UploadResult, error) {
	plan, err := s.planUpload(patientID, form, file)
	if err != nil {
		return nil, err
	}

	var res model.UploadResult
	if file != nil {
		mf, err := s.storeFile(ctx, patientID, form, file, plan)
		if err != nil {
			return nil, err
		}
		res.File = mf
	}

	if plan.result != nil {
		if res.File != nil {
			plan.result.MedicalFileID = &res.File.ID
		}
		err := s.clinical.CreateTestResult(ctx, plan.result)
		s.metrics.ObserveDB("create_test_result", err)
		if err != nil {
			return nil, apperrors.NewStorage("save test result", err)
		}
		res.TestResult = plan.result
	}
	return &res, nil
}

func (s *Service) planUpload(patientID uuid.UUID, form *model.UploadRecordForm, file *Upload) (*uploadPlan, error) {
	if file == nil && !form.AddTestResult {
		return nil, apperrors.NewValidation("attach a file or add a test result")
	}

	plan := &uploadPlan{}
	if file != nil {
		if !blobstore.ExtensionAllowed(file.Filename) {
			return nil, apperrors.NewValidation("file type not allowed")
		}
		if file.Size > s.maxFileBytes {
			return nil, apperrors.NewValidation(fmt.Sprintf("file exceeds %d MiB", s.maxFileBytes>>20))
		}
		date, err := parseDate("test_date", form.TestDate)
		if err != nil {
			return nil, err
		}
		key, err := blobstore.GenerateKey(s.now(), file.Filename)
		if err != nil {
			return nil, apperrors.NewValidation("invalid filename")
		}
		plan.key, plan.fileDate = key, date
	}

	if form.AddTestResult {
		raw := form.ResultTestDate
		if strings.TrimSpace(raw) == "" {
			raw = form.TestDate
		}
		date, err := parseDate("result_test_date", raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(form.TestName) == "" {
			return nil, apperrors.NewValidation("test_name is required")
		}
		r := &model.TestResult{
			ClinicalBase:   model.ClinicalBase{PatientID: patientID, HospitalName: strings.TrimSpace(form.HospitalName)},
			TestName:       strings.TrimSpace(form.TestName),
			TestType:       form.TestType,
			ResultValue:    form.ResultValue,
			NormalRange:    form.NormalRange,
			Interpretation: form.Interpretation,
			TestDate:       date,
		}
		r.SetChronic(form.IsChronicRelated, form.ChronicCondition)
		plan.result = r
	}
	return plan, nil
}

// storeFile writes the blob, then the row. A failed insert removes the blob.
func (s *Service) storeFile(ctx context.Context, patientID uuid.UUID, form *model.UploadRecordForm, file *Upload, plan *uploadPlan) (*model.MedicalFile, error) {
	obj, err := s.blobs.Put(ctx, plan.key, file.Content)
	if err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) {
			return nil, apperrors.NewValidation(fmt.Sprintf("file exceeds %d MiB", s.maxFileBytes>>20))
		}
		return nil, apperrors.NewStorage("store file", err)
	}
	s.metrics.UploadBytes.Observe(float64(obj.Size))

	mf := &model.MedicalFile{
		ClinicalBase:     model.ClinicalBase{PatientID: patientID, HospitalName: strings.TrimSpace(form.HospitalName)},
		Filename:         obj.Key,
		OriginalFilename: blobstore.SanitizeFilename(file.Filename),
		FileType:         form.FileType,
		FileCategory:     form.FileCategory,
		Description:      form.Description,
		Diagnosis:        form.Diagnosis,
		ContentType:      obj.ContentType,
		SizeBytes:        obj.Size,
		TestDate:         plan.fileDate,
		UploadedAt:       s.now(),
	}
	mf.SetChronic(form.IsChronicRelated, form.ChronicCondition)

	err = s.clinical.CreateFile(ctx, mf)
	s.metrics.ObserveDB("create_medical_file", err)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, obj.Key); delErr != nil {
			s.logger.Error(delErr, "Failed to remove orphaned blob", "key", obj.Key)
		}
		return nil, apperrors.NewStorage("save medical file", err)
	}
	return mf, nil
}

// DownloadFile opens a medical file for its owner or a doctor who has seen
// the owner.
func (s *Service) DownloadFile(ctx context.Context, fileID uuid.UUID, principal *model.Principal) (*Download, error) {
	mf, err := s.clinical.GetFile(ctx, fileID)
	if err != nil {
		return nil, lookupError("file", err)
	}

	switch principal.Role {
	case model.RolePatient:
		if mf.PatientID != principal.UserID {
			return nil, apperrors.NewForbidden("file belongs to another patient")
		}
	case model.RoleDoctor:
		if err := s.requireRelationship(ctx, principal.UserID, mf.PatientID); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewForbidden("")
	}

	rc, err := s.blobs.Open(ctx, mf.Filename)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, apperrors.NewNotFound("file content", err)
		}
		return nil, apperrors.NewStorage("open file", err)
	}
	return &Download{
		Content:          rc,
		OriginalFilename: mf.OriginalFilename,
		ContentType:      mf.ContentType,
		Size:             mf.SizeBytes,
	}, nil
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperrors.NewValidation(field + " is required")
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidation(field + " must be YYYY-MM-DD")
	}
	return t, nil
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, err)
	}
	return apperrors.NewStorage("load "+resource, err)
}
