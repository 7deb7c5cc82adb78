package report

import (
	"fmt"

	"github.com/temirov/ghmigrate/internal/migration"
)

const summaryTemplateConstant = "total=%d succeeded=%d failed=%d errored=%d"

// BatchReport summarizes the outcome of a whole migration batch. Results
// retains the submission order of the batch.
type BatchReport struct {
	Total     int
	Succeeded int
	Failed    int
	Errored   int
	Results   []migration.JobResult
}

// BatchFailed reports whether any job ended in a non-success state.
func (batchReport BatchReport) BatchFailed() bool {
	return batchReport.Failed > 0 || batchReport.Errored > 0
}

// Summary renders a compact one-line account of the batch.
func (batchReport BatchReport) Summary() string {
	return fmt.Sprintf(
		summaryTemplateConstant,
		batchReport.Total,
		batchReport.Succeeded,
		batchReport.Failed,
		batchReport.Errored,
	)
}

// Aggregate tallies results without reordering or mutating them.
func Aggregate(results []migration.JobResult) BatchReport {
	batchReport := BatchReport{
		Total:   len(results),
		Results: results,
	}

	for _, result := range results {
		switch result.Status {
		case migration.JobStatusSucceeded:
			batchReport.Succeeded++
		case migration.JobStatusFailed:
			batchReport.Failed++
		case migration.JobStatusErrored:
			batchReport.Errored++
		}
	}

	return batchReport
}
