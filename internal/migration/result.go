package migration

import (
	"time"
	"unicode/utf8"

	"github.com/temirov/ghmigrate/internal/batch"
)

const (
	jobStatusSucceededStringConstant = "succeeded"
	jobStatusFailedStringConstant    = "failed"
	jobStatusErroredStringConstant   = "errored"
	logExcerptLimitConstant          = 2048
)

// JobStatus classifies the terminal state of one migration job.
type JobStatus string

// Job status enumerations. Failed means the migration ran and reported a
// domain error; Errored means the migration never ran to completion.
const (
	JobStatusSucceeded JobStatus = JobStatus(jobStatusSucceededStringConstant)
	JobStatusFailed    JobStatus = JobStatus(jobStatusFailedStringConstant)
	JobStatusErrored   JobStatus = JobStatus(jobStatusErroredStringConstant)
)

// JobResult captures the immutable outcome of one migration job.
type JobResult struct {
	Descriptor    batch.JobDescriptor
	Status        JobStatus
	Transcript    string
	LogExcerpt    string
	FailureReason string
	Duration      time.Duration
}

// Succeeded reports whether the job completed without failure.
func (result JobResult) Succeeded() bool {
	return result.Status == JobStatusSucceeded
}

// buildLogExcerpt keeps the tail of the transcript for compact reporting.
// The cut point advances to the next rune boundary so a multibyte character
// straddling the limit is dropped whole rather than split.
func buildLogExcerpt(transcript string) string {
	if len(transcript) <= logExcerptLimitConstant {
		return transcript
	}
	excerptStart := len(transcript) - logExcerptLimitConstant
	for excerptStart < len(transcript) && !utf8.RuneStart(transcript[excerptStart]) {
		excerptStart++
	}
	return transcript[excerptStart:]
}
