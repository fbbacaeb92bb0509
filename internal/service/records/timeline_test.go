package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evura/portal-api/internal/model"
)

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

func TestProject(t *testing.T) {
	p := &model.Procedure{ProcedureName: "MRI", ProcedureDate: day(3)}
	e := Project(p)
	assert.Equal(t, model.RecordKindProcedure, e.Kind)
	assert.Equal(t, day(3), e.Date)
	assert.Same(t, p, e.Record)
}

func TestMergeOrdersByDateThenKind(t *testing.T) {
	tl := &model.Timeline{
		Files:         []*model.MedicalFile{{Filename: "f", TestDate: day(5)}},
		TestResults:   []*model.TestResult{{TestName: "t1", TestDate: day(9)}, {TestName: "t2", TestDate: day(5)}},
		Procedures:    []*model.Procedure{{ProcedureName: "p", ProcedureDate: day(1)}},
		Prescriptions: []*model.Prescription{{MedicationName: "rx", PrescribedDate: day(5)}},
	}
	merge(tl)

	var kinds []model.RecordKind
	for _, e := range tl.Entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []model.RecordKind{
		model.RecordKindTestResult,
		model.RecordKindFile,
		model.RecordKindTestResult,
		model.RecordKindPrescription,
		model.RecordKindProcedure,
	}, kinds)
	assert.Equal(t, "t2", tl.Entries[2].Record.(*model.TestResult).TestName)
}

func TestMergeEmpty(t *testing.T) {
	tl := &model.Timeline{}
	merge(tl)
	assert.NotNil(t, tl.Entries)
	assert.Empty(t, tl.Entries)
}
