// Package artifacts persists per-job migration transcripts so that every
// job, including failed and errored ones, leaves an inspectable trace.
package artifacts
