package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RecordKind string

// Kinds are listed in timeline tie-break order.
const (
	RecordKindFile         RecordKind = "file"
	RecordKindTestResult   RecordKind = "test"
	RecordKindProcedure    RecordKind = "procedure"
	RecordKindPrescription RecordKind = "prescription"
)

// ClinicalRecord is implemented by the four append-only record kinds that
// make up a patient's medical history.
type ClinicalRecord interface {
	Kind() RecordKind
	// LogicalDate is the date the record is filed under in the timeline.
	LogicalDate() time.Time
	Common() *ClinicalBase
}

// ClinicalBase holds the fields shared by every clinical record.
type ClinicalBase struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	HospitalName     string     `db:"hospital_name" json:"hospital_name"`
	IsChronicRelated bool       `db:"is_chronic_related" json:"is_chronic_related"`
	ChronicCondition *string    `db:"chronic_condition" json:"chronic_condition,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

func (b *ClinicalBase) Common() *ClinicalBase { return b }

// SetChronic tags the record. The condition name is dropped unless the record
// is chronic related.
func (b *ClinicalBase) SetChronic(related bool, condition string) {
	b.IsChronicRelated = related
	b.ChronicCondition = nil
	if related {
		if c := strings.TrimSpace(condition); c != "" {
			b.ChronicCondition = &c
		}
	}
}

type MedicalFile struct {
	ClinicalBase
	Filename         string    `db:"filename" json:"filename"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	FileType         string    `db:"file_type" json:"file_type"`
	FileCategory     string    `db:"file_category" json:"file_category"`
	Description      string    `db:"description" json:"description"`
	Diagnosis        string    `db:"diagnosis" json:"diagnosis"`
	ContentType      string    `db:"content_type" json:"content_type"`
	SizeBytes        int64     `db:"size_bytes" json:"size_bytes"`
	TestDate         time.Time `db:"test_date" json:"test_date"`
	UploadedAt       time.Time `db:"uploaded_at" json:"uploaded_at"`
}

func (f *MedicalFile) Kind() RecordKind       { return RecordKindFile }
func (f *MedicalFile) LogicalDate() time.Time { return f.TestDate }

type TestResult struct {
	ClinicalBase
	TestName       string     `db:"test_name" json:"test_name"`
	TestType       string     `db:"test_type" json:"test_type"`
	ResultValue    string     `db:"result_value" json:"result_value"`
	NormalRange    string     `db:"normal_range" json:"normal_range"`
	Interpretation string     `db:"interpretation" json:"interpretation"`
	MedicalFileID  *uuid.UUID `db:"medical_file_id" json:"medical_file_id,omitempty"`
	TestDate       time.Time  `db:"test_date" json:"test_date"`
}

func (t *TestResult) Kind() RecordKind       { return RecordKindTestResult }
func (t *TestResult) LogicalDate() time.Time { return t.TestDate }

type Procedure struct {
	ClinicalBase
	ProcedureName string    `db:"procedure_name" json:"procedure_name"`
	ProcedureType string    `db:"procedure_type" json:"procedure_type"`
	Description   string    `db:"description" json:"description"`
	Outcome       string    `db:"outcome" json:"outcome"`
	Complications string    `db:"complications" json:"complications"`
	ProcedureDate time.Time `db:"procedure_date" json:"procedure_date"`
}

func (p *Procedure) Kind() RecordKind       { return RecordKindProcedure }
func (p *Procedure) LogicalDate() time.Time { return p.ProcedureDate }

type Prescription struct {
	ClinicalBase
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Frequency      string     `db:"frequency" json:"frequency"`
	Duration       string     `db:"duration" json:"duration"`
	Reason         string     `db:"reason" json:"reason"`
	Instructions   string     `db:"instructions" json:"instructions"`
	Effectiveness  string     `db:"effectiveness" json:"effectiveness"`
	SideEffects    string     `db:"side_effects" json:"side_effects"`
	PrescribedDate time.Time  `db:"prescribed_date" json:"prescribed_date"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
}

func (p *Prescription) Kind() RecordKind       { return RecordKindPrescription }
func (p *Prescription) LogicalDate() time.Time { return p.PrescribedDate }

var (
	_ ClinicalRecord = (*MedicalFile)(nil)
	_ ClinicalRecord = (*TestResult)(nil)
	_ ClinicalRecord = (*Procedure)(nil)
	_ ClinicalRecord = (*Prescription)(nil)
)

type TimelineEntry struct {
	Kind   RecordKind     `json:"kind"`
	Date   time.Time      `json:"date"`
	Record ClinicalRecord `json:"record"`
}

// Timeline is a patient's merged history plus the per-kind lists it was
// built from.
type Timeline struct {
	Entries       []TimelineEntry `json:"entries"`
	Files         []*MedicalFile  `json:"files"`
	TestResults   []*TestResult   `json:"test_results"`
	Procedures    []*Procedure    `json:"procedures"`
	Prescriptions []*Prescription `json:"prescriptions"`
}

// DoctorNote kinds accepted from doctors.
const (
	NoteKindTestResult   = "test_result"
	NoteKindPrescription = "prescription"
	NoteKindProcedure    = "procedure"
)

type DoctorNoteRequest struct {
	RecordType       string `json:"record_type"`
	IsChronicRelated bool   `json:"is_chronic_related"`
	ChronicCondition string `json:"chronic_condition" binding:"max=200"`

	TestName       string `json:"test_name"`
	TestType       string `json:"test_type"`
	ResultValue    string `json:"result_value"`
	NormalRange    string `json:"normal_range"`
	Interpretation string `json:"interpretation"`

	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
	Reason         string `json:"reason"`
	Instructions   string `json:"instructions"`

	ProcedureName string `json:"procedure_name"`
	ProcedureType string `json:"procedure_type"`
	Description   string `json:"description"`
	Outcome       string `json:"outcome"`
	Complications string `json:"complications"`
}

// UploadRecordForm is the multipart form of a patient self upload. The file
// part is read separately.
type UploadRecordForm struct {
	FileType         string `form:"file_type"`
	FileCategory     string `form:"file_category"`
	Description      string `form:"description"`
	Diagnosis        string `form:"diagnosis"`
	HospitalName     string `form:"hospital_name"`
	IsChronicRelated bool   `form:"is_chronic_related"`
	ChronicCondition string `form:"chronic_condition" binding:"max=200"`
	TestDate         string `form:"test_date"`

	AddTestResult  bool   `form:"add_test_result"`
	TestName       string `form:"test_name"`
	TestType       string `form:"test_type"`
	ResultValue    string `form:"result_value"`
	NormalRange    string `form:"normal_range"`
	Interpretation string `form:"interpretation"`
	// ResultTestDate falls back to TestDate when empty.
	ResultTestDate string `form:"result_test_date"`
}

// UploadResult lists the rows a self upload created.
type UploadResult struct {
	File       *MedicalFile `json:"file,omitempty"`
	TestResult *TestResult  `json:"test_result,omitempty"`
}
