package records

import (
	"slices"

	"github.com/evura/portal-api/internal/model"
)

// Project maps any clinical record onto its timeline entry.
func Project(r model.ClinicalRecord) model.TimelineEntry {
	return model.TimelineEntry{Kind: r.Kind(), Date: r.LogicalDate(), Record: r}
}

func projectAll[T model.ClinicalRecord](entries []model.TimelineEntry, records []T) []model.TimelineEntry {
	for _, r := range records {
		entries = append(entries, Project(r))
	}
	return entries
}

// merge builds the timeline from the per-kind lists. Entries are newest
// first; equal dates keep kind order and then list order.
func merge(t *model.Timeline) {
	n := len(t.Files) + len(t.TestResults) + len(t.Procedures) + len(t.Prescriptions)
	entries := make([]model.TimelineEntry, 0, n)
	entries = projectAll(entries, t.Files)
	entries = projectAll(entries, t.TestResults)
	entries = projectAll(entries, t.Procedures)
	entries = projectAll(entries, t.Prescriptions)

	slices.SortStableFunc(entries, func(a, b model.TimelineEntry) int {
		return b.Date.Compare(a.Date)
	})
	t.Entries = entries
}
